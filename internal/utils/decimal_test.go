package utils

import "testing"

func TestRoundMoney(t *testing.T) {
	cases := []struct {
		in       float64
		expected float64
	}{
		{0, 0},
		{8.505, 8.51},
		{8.504, 8.5},
		{19.999, 20},
		{-3.005, -3.01},
	}

	for _, tc := range cases {
		if got := RoundMoney(tc.in); got != tc.expected {
			t.Fatalf("RoundMoney(%v) = %v, expected %v", tc.in, got, tc.expected)
		}
	}
}
