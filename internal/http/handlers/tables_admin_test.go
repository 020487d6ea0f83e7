package handlers

import "testing"

func TestTableQRURL(t *testing.T) {
	tests := []struct {
		baseURL string
		number  int
		want    string
	}{
		{"https://vortice.example.com", 7, "https://vortice.example.com/customer?table=7"},
		{"http://localhost:3000", 12, "http://localhost:3000/customer?table=12"},
	}
	for _, tt := range tests {
		if got := tableQRURL(tt.baseURL, tt.number); got != tt.want {
			t.Errorf("tableQRURL(%q, %d) = %q, expected %q", tt.baseURL, tt.number, got, tt.want)
		}
	}
}
