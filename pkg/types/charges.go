package types

import "github.com/horologe/storefront-backend/pkg/money"

// AdditionalCharge is a per-unit surcharge attached to a product, such as
// insurance or engraving.
type AdditionalCharge struct {
	Name   string      `json:"name"`
	Amount money.Paise `json:"amount"`
}

// AdditionalCharges is the list stored on products.additional_charges.
type AdditionalCharges []AdditionalCharge

// PerUnit sums every charge for a single unit.
func (c AdditionalCharges) PerUnit() money.Paise {
	var total money.Paise
	for _, charge := range c {
		total += charge.Amount
	}
	return total
}
