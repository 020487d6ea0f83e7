package handlers

import (
	"strings"
	"testing"
)

// A table being charged usually still has an open cart with items: every
// send-to-kitchen opens a fresh pending order. The close-out sweep must clear
// those rows too, or the orders delete trips the order_items foreign key and
// the sent orders survive to be charged twice.
func TestChargeCleanupSweepsOpenCarts(t *testing.T) {
	if !strings.Contains(chargeCleanupItemsSQL, "select id from orders where table_id = $1") {
		t.Fatalf("item sweep must cover every order at the table, got:\n%s", chargeCleanupItemsSQL)
	}
	if strings.Contains(chargeCleanupItemsSQL, "any(") {
		t.Fatalf("item sweep must not be limited to the snapshotted orders:\n%s", chargeCleanupItemsSQL)
	}
	if !strings.Contains(chargeCleanupOrdersSQL, "where table_id = $1") {
		t.Fatalf("orders sweep must be table scoped, got:\n%s", chargeCleanupOrdersSQL)
	}
}

func TestAggregateCharge(t *testing.T) {
	orders := []chargeOrder{
		{
			ID:           "a",
			CustomerName: "Ana",
			Items: []chargeItem{
				{ProductName: "Burger", Price: 10, Quantity: 2},
			},
		},
		{
			ID:           "b",
			CustomerName: "Luis",
			Items: []chargeItem{
				{ProductName: "Soda", Price: 5, Quantity: 1},
			},
		},
	}

	total, orderCount, itemCount := aggregateCharge(orders)
	if total != 25 {
		t.Fatalf("total = %v, expected 25", total)
	}
	if orderCount != 2 {
		t.Fatalf("orderCount = %d, expected 2", orderCount)
	}
	if itemCount != 3 {
		t.Fatalf("itemCount = %d, expected 3", itemCount)
	}
}

func TestAggregateChargeEmpty(t *testing.T) {
	total, orderCount, itemCount := aggregateCharge(nil)
	if total != 0 || orderCount != 0 || itemCount != 0 {
		t.Fatalf("expected zeros, got %v %d %d", total, orderCount, itemCount)
	}
}

func TestCanAdvanceItemStatus(t *testing.T) {
	cases := []struct {
		from     string
		to       string
		expected bool
	}{
		{"ordered", "preparing", true},
		{"ordered", "served", true},
		{"preparing", "ready", true},
		{"ready", "served", true},
		{"served", "ready", false},
		{"preparing", "ordered", false},
		{"ready", "ready", false},
		{"ordered", "cancelled", false},
		{"unknown", "served", false},
	}

	for _, tc := range cases {
		if got := canAdvanceItemStatus(tc.from, tc.to); got != tc.expected {
			t.Fatalf("canAdvanceItemStatus(%q, %q) = %v, expected %v", tc.from, tc.to, got, tc.expected)
		}
	}
}
