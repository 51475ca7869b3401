package money

import (
	"bytes"
	"fmt"

	"github.com/shopspring/decimal"
)

// Paise is an amount of Indian rupees in minor units. All storefront
// arithmetic happens on Paise; rupee decimals only exist at the wire boundary.
type Paise int64

const (
	// Currency is the ISO code every amount is denominated in.
	Currency = "INR"

	paisePerRupee = 100
)

var hundred = decimal.NewFromInt(paisePerRupee)

// FromRupees converts a rupee decimal into paise, rounding half away from zero.
func FromRupees(rupees decimal.Decimal) Paise {
	return Paise(rupees.Mul(hundred).Round(0).IntPart())
}

// ParseRupees parses a rupee amount such as "1049.50".
func ParseRupees(value string) (Paise, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, fmt.Errorf("invalid rupee amount %q: %w", value, err)
	}
	return FromRupees(d), nil
}

// Rupees returns p as a rupee decimal.
func (p Paise) Rupees() decimal.Decimal {
	return decimal.New(int64(p), -2)
}

// Int64 returns the raw paise value, e.g. for gateway payloads.
func (p Paise) Int64() int64 {
	return int64(p)
}

// Times multiplies p by a quantity.
func (p Paise) Times(qty int) Paise {
	return p * Paise(qty)
}

// Percent returns pct percent of p rounded to the nearest paisa.
func (p Paise) Percent(pct decimal.Decimal) Paise {
	return Paise(decimal.NewFromInt(int64(p)).Mul(pct).Div(hundred).Round(0).IntPart())
}

// Min returns the smaller of a and b.
func Min(a, b Paise) Paise {
	if a < b {
		return a
	}
	return b
}

// Clamp bounds p to [lo, hi].
func Clamp(p, lo, hi Paise) Paise {
	if p < lo {
		return lo
	}
	if p > hi {
		return hi
	}
	return p
}

// String renders the amount for messages, e.g. ₹1049.50.
func (p Paise) String() string {
	return "₹" + p.Rupees().StringFixed(2)
}

// MarshalJSON encodes the amount as a rupee JSON number.
func (p Paise) MarshalJSON() ([]byte, error) {
	return []byte(p.Rupees().String()), nil
}

// UnmarshalJSON accepts rupee numbers or numeric strings.
func (p *Paise) UnmarshalJSON(data []byte) error {
	trimmed := bytes.Trim(bytes.TrimSpace(data), `"`)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*p = 0
		return nil
	}
	parsed, err := ParseRupees(string(trimmed))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
