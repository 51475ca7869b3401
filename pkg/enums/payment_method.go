package enums

// PaymentMethod is how a shopper settles an order.
type PaymentMethod string

const (
	PaymentMethodOnline PaymentMethod = "online"
	PaymentMethodCOD    PaymentMethod = "cod"
)

var paymentMethods = newSet("payment method", PaymentMethodOnline, PaymentMethodCOD)

func (p PaymentMethod) String() string { return string(p) }
func (p PaymentMethod) IsValid() bool  { return paymentMethods.has(p) }

func ParsePaymentMethod(value string) (PaymentMethod, error) { return paymentMethods.parse(value) }
