package settings

import (
	"github.com/horologe/storefront-backend/pkg/enums"
	pkgerrors "github.com/horologe/storefront-backend/pkg/errors"
	"github.com/horologe/storefront-backend/pkg/money"
)

// Collection decides which charges a cash-on-delivery order pays through the
// gateway at checkout. Online orders always pay everything upfront.
type Collection struct {
	CollectShippingUpfront     bool        `json:"collect_shipping_upfront"`
	CollectOtherChargesUpfront bool        `json:"collect_other_charges_upfront"`
	ShippingCharge             money.Paise `json:"shipping_charge"`
}

// Methods lists which payment methods checkout offers.
type Methods struct {
	CODEnabled           bool `json:"cod_enabled"`
	OnlinePaymentEnabled bool `json:"online_payment_enabled"`
}

// DefaultMethods is used when no payment_settings row exists.
func DefaultMethods() Methods {
	return Methods{CODEnabled: true, OnlinePaymentEnabled: true}
}

// Available returns the enabled methods, online first.
func (m Methods) Available() []enums.PaymentMethod {
	var out []enums.PaymentMethod
	if m.OnlinePaymentEnabled {
		out = append(out, enums.PaymentMethodOnline)
	}
	if m.CODEnabled {
		out = append(out, enums.PaymentMethodCOD)
	}
	return out
}

// Allows reports whether method is enabled.
func (m Methods) Allows(method enums.PaymentMethod) bool {
	switch method {
	case enums.PaymentMethodOnline:
		return m.OnlinePaymentEnabled
	case enums.PaymentMethodCOD:
		return m.CODEnabled
	}
	return false
}

// ResolveMethod picks the method checkout will use. When exactly one method is
// enabled it is selected regardless of the request; otherwise the requested
// method must be valid and enabled.
func (m Methods) ResolveMethod(requested enums.PaymentMethod) (enums.PaymentMethod, error) {
	available := m.Available()
	switch len(available) {
	case 0:
		return "", pkgerrors.New(pkgerrors.CodeValidation, "no payment method is currently available")
	case 1:
		return available[0], nil
	}
	if requested == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "payment method is required")
	}
	if !requested.IsValid() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	if !m.Allows(requested) {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "selected payment method is not available")
	}
	return requested, nil
}
