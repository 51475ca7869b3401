package types

import (
	"testing"

	"github.com/horologe/storefront-backend/pkg/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShippingAddressValueScan(t *testing.T) {
	addr := ShippingAddress{
		Name:    "Asha Rao",
		Email:   "asha@example.com",
		Phone:   "+91 98765 43210",
		Address: "12 MG Road",
		City:    "Bengaluru",
		State:   "Karnataka",
		Pincode: "560001",
	}

	value, err := addr.Value()
	require.NoError(t, err)

	var scanned ShippingAddress
	require.NoError(t, scanned.Scan([]byte(value.(string))))
	assert.Equal(t, addr, scanned)

	require.NoError(t, scanned.Scan(nil))
	assert.Equal(t, ShippingAddress{}, scanned)

	assert.Error(t, scanned.Scan(42))
}

func TestNormalizeAndPhoneDigits(t *testing.T) {
	addr := ShippingAddress{Name: "  Asha ", Email: " ASHA@Example.com ", Pincode: " 560001 "}.Normalize()
	assert.Equal(t, "Asha", addr.Name)
	assert.Equal(t, "asha@example.com", addr.Email)
	assert.Equal(t, "560001", addr.Pincode)

	assert.Equal(t, "919876543210", PhoneDigits("+91 98765-43210"))
}

func TestAdditionalChargesPerUnit(t *testing.T) {
	charges := AdditionalCharges{{Name: "insurance", Amount: 25000}, {Name: "engraving", Amount: 5000}}
	assert.Equal(t, money.Paise(30000), charges.PerUnit())
	assert.Equal(t, money.Paise(0), AdditionalCharges(nil).PerUnit())
}
