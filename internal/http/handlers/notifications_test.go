package handlers

import (
	"strings"
	"testing"
)

func TestWaiterMessageFor(t *testing.T) {
	cases := []struct {
		name          string
		notifType     string
		tableNumber   int
		customerName  string
		paymentMethod string
		expected      string
	}{
		{"new order with name", "new_order", 4, "Ana", "", "Table 4: new order from Ana"},
		{"new order anonymous", "new_order", 4, "", "", "Table 4: new order"},
		{"assistance with name", "assistance", 2, "Luis", "", "Table 2: Luis needs assistance"},
		{"assistance anonymous", "assistance", 2, " ", "", "Table 2 needs assistance"},
		{"bill cash", "bill_request", 7, "", "cash", "Table 7: bill requested, paying with cash"},
		{"bill terminal", "bill_request", 7, "", "terminal", "Table 7: bill requested, paying by card terminal"},
		{"bill unknown method", "bill_request", 7, "", "", "Table 7: bill requested"},
		{"table freed", "table_freed", 9, "", "", "Table 9 is now available"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := waiterMessageFor(tc.notifType, tc.tableNumber, tc.customerName, tc.paymentMethod)
			if got != tc.expected {
				t.Fatalf("waiterMessageFor = %q, expected %q", got, tc.expected)
			}
		})
	}
}

func TestWaiterMessageForUnknownTypeStillNamesTable(t *testing.T) {
	got := waiterMessageFor("something_else", 3, "", "")
	if !strings.Contains(got, "3") {
		t.Fatalf("message %q should mention the table number", got)
	}
}
