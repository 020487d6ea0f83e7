package handlers

import "testing"

func TestBuildInvoicePayload(t *testing.T) {
	orders := []chargeOrder{
		{
			ID:           "a",
			CustomerName: "Ana",
			Items: []chargeItem{
				{ProductName: "Burger", Price: 10, Quantity: 2},
				{ProductName: "Fries", Price: 5, Quantity: 1},
			},
		},
	}

	payload := buildInvoicePayload(orders, 6, invoiceRequest{
		CustomerName: "  Ana Garcia ",
		Email:        " ana@example.com ",
		TaxID:        " xaxx010101000 ",
	})

	if payload.TableNumber != 6 {
		t.Fatalf("tableNumber = %d, expected 6", payload.TableNumber)
	}
	if payload.CustomerName != "Ana Garcia" {
		t.Fatalf("customerName = %q", payload.CustomerName)
	}
	if payload.Email != "ana@example.com" {
		t.Fatalf("email = %q", payload.Email)
	}
	if payload.TaxID != "XAXX010101000" {
		t.Fatalf("taxId = %q, expected uppercased", payload.TaxID)
	}
	if len(payload.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(payload.Lines))
	}
	if payload.Subtotal != 25 {
		t.Fatalf("subtotal = %v, expected 25", payload.Subtotal)
	}
	if payload.Tax != 2 {
		t.Fatalf("tax = %v, expected 2", payload.Tax)
	}
	if payload.Total != 27 {
		t.Fatalf("total = %v, expected 27", payload.Total)
	}
	if len(payload.Diners) != 1 {
		t.Fatalf("expected 1 diner summary, got %d", len(payload.Diners))
	}
	if payload.Diners[0].Name != "Ana" || payload.Diners[0].ItemCount != 3 || payload.Diners[0].Subtotal != 25 {
		t.Fatalf("diner summary = %+v", payload.Diners[0])
	}
}

func TestValidInvoiceEmail(t *testing.T) {
	cases := []struct {
		email    string
		expected bool
	}{
		{"ana@example.com", true},
		{" ana@example.com ", true},
		{"ana+facturas@example.com.mx", true},
		{"not-an-email", false},
		{"ana@", false},
		{"@example.com", false},
		{"Ana <ana@example.com>", false},
		{"", false},
	}

	for _, tc := range cases {
		if got := validInvoiceEmail(tc.email); got != tc.expected {
			t.Fatalf("validInvoiceEmail(%q) = %v, expected %v", tc.email, got, tc.expected)
		}
	}
}

func TestBuildInvoicePayloadLineSubtotals(t *testing.T) {
	orders := []chargeOrder{
		{ID: "a", Items: []chargeItem{{ProductName: "Taco", Price: 3.33, Quantity: 3}}},
	}

	payload := buildInvoicePayload(orders, 1, invoiceRequest{})
	if payload.Lines[0].Subtotal != 9.99 {
		t.Fatalf("line subtotal = %v, expected 9.99", payload.Lines[0].Subtotal)
	}
}
