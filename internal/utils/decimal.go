package utils

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
)

func NumericToFloat64(value pgtype.Numeric) float64 {
	if !value.Valid {
		return 0
	}
	f, err := value.Float64Value()
	if err == nil {
		return f.Float64
	}
	// fallback to string parse
	text, err := value.MarshalJSON()
	if err != nil {
		return 0
	}
	var out float64
	if _, err := fmt.Sscan(string(text), &out); err != nil {
		return 0
	}
	return out
}

// RoundMoney keeps amounts at cent precision before they are persisted or
// compared against stored totals.
func RoundMoney(value float64) float64 {
	if value < 0 {
		return float64(int64(value*100-0.5)) / 100
	}
	return float64(int64(value*100+0.5)) / 100
}
