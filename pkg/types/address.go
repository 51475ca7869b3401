package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
)

// ShippingAddress is the delivery address captured at checkout. It is stored
// as a jsonb document on orders.
type ShippingAddress struct {
	Name    string `json:"name" validate:"required,max=120"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone" validate:"required,min=10,max=15"`
	Address string `json:"address" validate:"required,max=500"`
	City    string `json:"city" validate:"required,max=80"`
	State   string `json:"state" validate:"required,max=80"`
	Pincode string `json:"pincode" validate:"required,len=6,numeric"`
}

// Normalize trims every field.
func (a ShippingAddress) Normalize() ShippingAddress {
	return ShippingAddress{
		Name:    strings.TrimSpace(a.Name),
		Email:   strings.ToLower(strings.TrimSpace(a.Email)),
		Phone:   strings.TrimSpace(a.Phone),
		Address: strings.TrimSpace(a.Address),
		City:    strings.TrimSpace(a.City),
		State:   strings.TrimSpace(a.State),
		Pincode: strings.TrimSpace(a.Pincode),
	}
}

// PhoneDigits strips everything but digits from a phone number.
func PhoneDigits(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Value marshals the address into JSON.
func (a ShippingAddress) Value() (driver.Value, error) {
	raw, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("shipping address: %w", err)
	}
	return string(raw), nil
}

// Scan decodes a JSON document.
func (a *ShippingAddress) Scan(value interface{}) error {
	if value == nil {
		*a = ShippingAddress{}
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("shipping address: unsupported scan type %T", value)
	}
	if err := json.Unmarshal(raw, a); err != nil {
		return fmt.Errorf("shipping address: %w", err)
	}
	return nil
}
