package razorpay

import (
	"context"
	"errors"
	"fmt"
	"strings"

	rzp "github.com/razorpay/razorpay-go"
	"github.com/razorpay/razorpay-go/utils"

	"github.com/horologe/storefront-backend/pkg/config"
	"github.com/horologe/storefront-backend/pkg/money"
)

const maxReceiptLen = 40

// orderAPI is the slice of the SDK's order resource used here.
type orderAPI interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// Gateway creates gateway orders and verifies payment signatures.
type Gateway interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*Order, error)
	VerifyPaymentSignature(orderID, paymentID, signature string) bool
	KeyID() string
}

// CreateOrderInput describes a gateway order. Receipt is our order id.
type CreateOrderInput struct {
	Amount  money.Paise
	Receipt string
	Notes   map[string]string
}

// Order is the subset of the gateway order returned to the storefront.
type Order struct {
	ID       string
	Amount   money.Paise
	Currency string
	Receipt  string
	Status   string
}

type Client struct {
	orders   orderAPI
	keyID    string
	secret   string
	currency string
}

// New builds a Razorpay client from config.
func New(cfg config.RazorpayConfig) (*Client, error) {
	if strings.TrimSpace(cfg.KeyID) == "" || strings.TrimSpace(cfg.KeySecret) == "" {
		return nil, errors.New("razorpay key id and secret are required")
	}
	sdk := rzp.NewClient(cfg.KeyID, cfg.KeySecret)
	return newClient(sdk.Order, cfg), nil
}

func newClient(orders orderAPI, cfg config.RazorpayConfig) *Client {
	currency := strings.ToUpper(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = money.Currency
	}
	return &Client{
		orders:   orders,
		keyID:    cfg.KeyID,
		secret:   cfg.KeySecret,
		currency: currency,
	}
}

// KeyID is the publishable key the browser checkout widget needs.
func (c *Client) KeyID() string {
	return c.keyID
}

// CreateOrder registers an order with the gateway. Amount is sent in paise.
func (c *Client) CreateOrder(ctx context.Context, input CreateOrderInput) (*Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if input.Amount <= 0 {
		return nil, fmt.Errorf("gateway order amount must be positive, got %d", input.Amount)
	}
	receipt := input.Receipt
	if len(receipt) > maxReceiptLen {
		receipt = receipt[:maxReceiptLen]
	}

	data := map[string]interface{}{
		"amount":   input.Amount.Int64(),
		"currency": c.currency,
		"receipt":  receipt,
	}
	if len(input.Notes) > 0 {
		notes := make(map[string]interface{}, len(input.Notes))
		for k, v := range input.Notes {
			notes[k] = v
		}
		data["notes"] = notes
	}

	body, err := c.orders.Create(data, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay create order: %w", err)
	}
	return parseOrder(body)
}

// VerifyPaymentSignature checks the checkout callback signature for orderID and paymentID.
func (c *Client) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	if orderID == "" || paymentID == "" || signature == "" {
		return false
	}
	params := map[string]interface{}{
		"razorpay_order_id":   orderID,
		"razorpay_payment_id": paymentID,
	}
	return utils.VerifyPaymentSignature(params, signature, c.secret)
}

func parseOrder(body map[string]interface{}) (*Order, error) {
	id, _ := body["id"].(string)
	if id == "" {
		return nil, errors.New("razorpay create order: response missing id")
	}
	order := &Order{ID: id}
	order.Currency, _ = body["currency"].(string)
	order.Receipt, _ = body["receipt"].(string)
	order.Status, _ = body["status"].(string)
	switch amount := body["amount"].(type) {
	case float64:
		order.Amount = money.Paise(amount)
	case int64:
		order.Amount = money.Paise(amount)
	case int:
		order.Amount = money.Paise(amount)
	}
	return order, nil
}
