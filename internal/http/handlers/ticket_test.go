package handlers

import "testing"

func TestComputeBillTotals(t *testing.T) {
	cases := []struct {
		subtotal float64
		tax      float64
		total    float64
	}{
		{0, 0, 0},
		{100, 8, 108},
		{25, 2, 27},
		{8.50, 0.68, 9.18},
	}

	for _, tc := range cases {
		tax, total := computeBillTotals(tc.subtotal)
		if tax != tc.tax {
			t.Fatalf("tax for %v = %v, expected %v", tc.subtotal, tax, tc.tax)
		}
		if total != tc.total {
			t.Fatalf("total for %v = %v, expected %v", tc.subtotal, total, tc.total)
		}
	}
}

func TestMoneyFormat(t *testing.T) {
	if got := money(8.5); got != "$8.50" {
		t.Fatalf("money(8.5) = %q", got)
	}
	if got := money(0); got != "$0.00" {
		t.Fatalf("money(0) = %q", got)
	}
}

func TestRenderTicketPDF(t *testing.T) {
	data := ticketTemplateData{
		TableNumber: 4,
		GeneratedAt: "2026-01-02 13:45",
		Diners:      []string{"Ana"},
		Lines: []ticketLine{
			{CustomerName: "Ana", ProductName: "Burger", Quantity: 2, Price: "$10.00", Subtotal: "$20.00", Notes: "no onions"},
		},
		Subtotal: "$20.00",
		Tax:      "$1.60",
		Total:    "$21.60",
	}

	buf, err := renderTicketPDF(data)
	if err != nil {
		t.Fatalf("renderTicketPDF failed: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("expected PDF bytes")
	}
}
