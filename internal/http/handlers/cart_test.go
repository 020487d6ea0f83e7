package handlers

import "testing"

func TestComputeOrderTotal(t *testing.T) {
	cases := []struct {
		name     string
		lines    []cartLine
		expected float64
	}{
		{"empty cart", nil, 0},
		{"single line", []cartLine{{Price: 8.50, Quantity: 2}}, 17},
		{"mixed lines", []cartLine{
			{Price: 10, Quantity: 2},
			{Price: 5, Quantity: 1},
		}, 25},
		{"cent rounding", []cartLine{
			{Price: 3.33, Quantity: 3},
			{Price: 0.01, Quantity: 1},
		}, 10},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := computeOrderTotal(tc.lines); got != tc.expected {
				t.Fatalf("computeOrderTotal = %v, expected %v", got, tc.expected)
			}
		})
	}
}

func TestLineContribution(t *testing.T) {
	if got := lineContribution(8.50, 2); got != 17 {
		t.Fatalf("expected 17, got %v", got)
	}
	if got := lineContribution(3.335, 2); got != 6.67 {
		t.Fatalf("expected 6.67, got %v", got)
	}
}

func TestComputeOrderTotalMatchesIncrementalBumps(t *testing.T) {
	lines := []cartLine{
		{Price: 12.25, Quantity: 1},
		{Price: 4.75, Quantity: 3},
		{Price: 2.10, Quantity: 2},
	}

	var incremental float64
	for _, line := range lines {
		incremental += lineContribution(line.Price, line.Quantity)
	}

	if full := computeOrderTotal(lines); full != incremental {
		t.Fatalf("full recompute %v diverges from incremental bumps %v", full, incremental)
	}
}
