package handlers

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestSalesWindowExplicitRange(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/admin/sales?from=2026-03-01&to=2026-03-05", nil)
	from, to, err := salesWindow(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if from.Format("2006-01-02") != "2026-03-01" {
		t.Errorf("from = %s", from.Format("2006-01-02"))
	}
	// "to" is inclusive, so the upper bound is the next day.
	if to.Format("2006-01-02") != "2026-03-06" {
		t.Errorf("to = %s", to.Format("2006-01-02"))
	}
}

func TestSalesWindowDefaultsToLastThirtyDays(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/admin/sales", nil)
	from, to, err := salesWindow(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	span := to.Sub(from)
	if span < 29*24*time.Hour || span > 31*24*time.Hour {
		t.Errorf("default window = %v, expected about 30 days", span)
	}
}

func TestSalesWindowRejectsBadDate(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/admin/sales?from=03-01-2026", nil)
	if _, _, err := salesWindow(r); err == nil {
		t.Fatal("expected an error for a malformed date")
	}
}
