package types

import (
	"time"

	"github.com/horologe/storefront-backend/pkg/money"
)

// SalesQueryRequest bounds a sales report to [Start, End).
type SalesQueryRequest struct {
	Start time.Time
	End   time.Time
}

// TimeSeriesPoint is a single day of a series.
type TimeSeriesPoint struct {
	Date  string `json:"date"`
	Value int64  `json:"value"`
}

// MoneyPoint is a single day of a money series.
type MoneyPoint struct {
	Date   string      `json:"date"`
	Amount money.Paise `json:"amount"`
}

// LabelValue is a top-N entry such as a coupon code or payment method.
type LabelValue struct {
	Label string `json:"label"`
	Value int64  `json:"value"`
}

// SalesReport backs the admin sales dashboard.
type SalesReport struct {
	Start             time.Time         `json:"start"`
	End               time.Time         `json:"end"`
	Orders            []TimeSeriesPoint `json:"orders"`
	Collected         []MoneyPoint      `json:"collected"`
	Discounts         []MoneyPoint      `json:"discounts"`
	PaymentMix        []LabelValue      `json:"payment_mix"`
	TopCoupons        []LabelValue      `json:"top_coupons"`
	CancelledOrders   int64             `json:"cancelled_orders"`
	AverageOrderValue money.Paise       `json:"average_order_value"`
}
