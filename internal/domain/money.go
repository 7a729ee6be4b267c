package domain

import (
	"github.com/shopspring/decimal"
)

// Amount is a currency value kept at two fractional digits.
// It scans from and binds to numeric columns through the embedded decimal.
type Amount struct {
	decimal.Decimal
}

// MaxAmount is the largest value a numeric(14,2) column holds.
var MaxAmount = MustAmount("999999999999.99")

// Storable reports whether a fits the amount columns.
func (a Amount) Storable() bool {
	return a.LessThanOrEqual(MaxAmount.Decimal)
}

// NewAmount rounds d to cents.
func NewAmount(d decimal.Decimal) Amount {
	return Amount{Decimal: d.Round(2)}
}

// MustAmount parses s and panics on malformed input. Intended for constants and tests.
func MustAmount(s string) Amount {
	return NewAmount(decimal.RequireFromString(s))
}

// MarshalJSON renders the amount as a bare JSON number with two decimals (500.00).
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.StringFixed(2)), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}
	a.Decimal = d.Round(2)
	return nil
}

func (a Amount) String() string { return a.StringFixed(2) }
