package analytics

import (
	"context"
	"errors"
	"time"

	"github.com/horologe/storefront-backend/internal/analytics/query"
	"github.com/horologe/storefront-backend/internal/analytics/types"
)

// DefaultWindow is used when a report request omits its bounds.
const DefaultWindow = 30 * 24 * time.Hour

// Service provides admin sales reports built from the order event sink.
type Service interface {
	SalesReport(ctx context.Context, req types.SalesQueryRequest) (*types.SalesReport, error)
}

type service struct {
	sales query.SalesService
	now   func() time.Time
}

// NewService builds an analytics service on top of the sales query service.
func NewService(sales query.SalesService) (Service, error) {
	if sales == nil {
		return nil, errors.New("sales query service required")
	}
	return &service{sales: sales, now: time.Now}, nil
}

// SalesReport fills missing bounds with the trailing DefaultWindow ending now.
func (s *service) SalesReport(ctx context.Context, req types.SalesQueryRequest) (*types.SalesReport, error) {
	if req.End.IsZero() {
		req.End = s.now().UTC()
	}
	if req.Start.IsZero() {
		req.Start = req.End.Add(-DefaultWindow)
	}
	return s.sales.Query(ctx, req)
}
