package query

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	cloudbigquery "cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/horologe/storefront-backend/internal/analytics/types"
	"github.com/horologe/storefront-backend/pkg/bigquery"
	pkgerrors "github.com/horologe/storefront-backend/pkg/errors"
	"github.com/horologe/storefront-backend/pkg/money"
)

// MaxRange bounds a single report.
const MaxRange = 366 * 24 * time.Hour

const (
	ordersSeriesSQL = `
SELECT
  FORMAT_DATE('%%F', DATE(occurred_at)) AS day,
  COUNT(DISTINCT order_id) AS value
FROM %s
WHERE event_type = 'order_created'
  AND order_kind = 'standard'
  AND occurred_at >= @start AND occurred_at < @end
GROUP BY day
ORDER BY day ASC
`

	collectedSeriesSQL = `
SELECT
  FORMAT_DATE('%%F', DATE(occurred_at)) AS day,
  SUM(collected_paise) AS value
FROM %s
WHERE collected_paise IS NOT NULL
  AND occurred_at >= @start AND occurred_at < @end
GROUP BY day
ORDER BY day ASC
`

	discountSeriesSQL = `
SELECT
  FORMAT_DATE('%%F', DATE(occurred_at)) AS day,
  SUM(COALESCE(discount_paise, 0)) AS value
FROM %s
WHERE event_type = 'order_created'
  AND order_kind = 'standard'
  AND occurred_at >= @start AND occurred_at < @end
GROUP BY day
ORDER BY day ASC
`

	paymentMixSQL = `
SELECT payment_method AS label, COUNT(DISTINCT order_id) AS value
FROM %s
WHERE event_type = 'order_created'
  AND order_kind = 'standard'
  AND payment_method IS NOT NULL
  AND occurred_at >= @start AND occurred_at < @end
GROUP BY label
ORDER BY value DESC
`

	topCouponsSQL = `
SELECT coupon_code AS label, COUNT(DISTINCT order_id) AS value
FROM %[1]s
WHERE event_type = 'coupon_redeemed'
  AND coupon_code IS NOT NULL
  AND occurred_at >= @start AND occurred_at < @end
  AND order_id NOT IN (
    SELECT order_id FROM %[1]s WHERE event_type = 'coupon_released'
  )
GROUP BY label
ORDER BY value DESC
LIMIT 5
`

	cancelledSQL = `
SELECT COUNT(DISTINCT order_id) AS value
FROM %s
WHERE event_type IN ('order_status_changed', 'order_gateway_failed')
  AND status = 'cancelled'
  AND occurred_at >= @start AND occurred_at < @end
`

	averageOrderValueSQL = `
SELECT SAFE_DIVIDE(SUM(total_paise), NULLIF(COUNT(DISTINCT order_id), 0)) AS value
FROM %s
WHERE event_type = 'order_created'
  AND order_kind = 'standard'
  AND occurred_at >= @start AND occurred_at < @end
`
)

// RowIterator is the subset of *bigquery.RowIterator the service reads.
type RowIterator interface {
	Next(dst any) error
}

// Querier runs SQL against the order events table.
type Querier interface {
	Query(ctx context.Context, sql string, params []cloudbigquery.QueryParameter) (RowIterator, error)
	TableRef() string
}

type clientQuerier struct {
	client *bigquery.Client
}

// NewClientQuerier adapts the shared BigQuery client.
func NewClientQuerier(client *bigquery.Client) Querier {
	return clientQuerier{client: client}
}

func (q clientQuerier) Query(ctx context.Context, sql string, params []cloudbigquery.QueryParameter) (RowIterator, error) {
	it, err := q.client.Query(ctx, sql, params)
	if err != nil {
		return nil, err
	}
	return it, nil
}

func (q clientQuerier) TableRef() string {
	return q.client.TableRef()
}

// SalesService builds the admin sales report.
type SalesService interface {
	Query(ctx context.Context, req types.SalesQueryRequest) (*types.SalesReport, error)
}

type salesService struct {
	querier  Querier
	tableRef string
}

type seriesRow struct {
	Day   string `bigquery:"day"`
	Value int64  `bigquery:"value"`
}

type labelRow struct {
	Label string `bigquery:"label"`
	Value int64  `bigquery:"value"`
}

type countRow struct {
	Value int64 `bigquery:"value"`
}

type ratioRow struct {
	Value cloudbigquery.NullFloat64 `bigquery:"value"`
}

// NewSalesService builds a report service on top of the querier.
func NewSalesService(querier Querier) (SalesService, error) {
	if querier == nil {
		return nil, errors.New("bigquery querier required")
	}
	ref := querier.TableRef()
	if ref == "" {
		return nil, errors.New("order events table required")
	}
	return &salesService{querier: querier, tableRef: ref}, nil
}

func (s *salesService) Query(ctx context.Context, req types.SalesQueryRequest) (*types.SalesReport, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	params := []cloudbigquery.QueryParameter{
		{Name: "start", Value: req.Start.UTC()},
		{Name: "end", Value: req.End.UTC()},
	}

	orders, err := s.querySeries(ctx, ordersSeriesSQL, params)
	if err != nil {
		return nil, err
	}
	collected, err := s.querySeries(ctx, collectedSeriesSQL, params)
	if err != nil {
		return nil, err
	}
	discounts, err := s.querySeries(ctx, discountSeriesSQL, params)
	if err != nil {
		return nil, err
	}
	mix, err := s.queryLabels(ctx, paymentMixSQL, params)
	if err != nil {
		return nil, err
	}
	coupons, err := s.queryLabels(ctx, topCouponsSQL, params)
	if err != nil {
		return nil, err
	}
	cancelled, err := s.queryCount(ctx, cancelledSQL, params)
	if err != nil {
		return nil, err
	}
	aov, err := s.queryRatio(ctx, averageOrderValueSQL, params)
	if err != nil {
		return nil, err
	}

	return &types.SalesReport{
		Start:             req.Start.UTC(),
		End:               req.End.UTC(),
		Orders:            orders,
		Collected:         toMoneySeries(collected),
		Discounts:         toMoneySeries(discounts),
		PaymentMix:        mix,
		TopCoupons:        coupons,
		CancelledOrders:   cancelled,
		AverageOrderValue: money.Paise(int64(math.Round(aov))),
	}, nil
}

// ValidateRequest checks the reporting window.
func ValidateRequest(req types.SalesQueryRequest) error {
	if req.Start.IsZero() || req.End.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "start and end are required")
	}
	if !req.End.After(req.Start) {
		return pkgerrors.New(pkgerrors.CodeValidation, "end must be after start")
	}
	if req.End.Sub(req.Start) > MaxRange {
		return pkgerrors.New(pkgerrors.CodeValidation, "report range cannot exceed 366 days")
	}
	return nil
}

func (s *salesService) statement(template string) string {
	return fmt.Sprintf(template, s.tableRef)
}

func (s *salesService) querySeries(ctx context.Context, template string, params []cloudbigquery.QueryParameter) ([]types.TimeSeriesPoint, error) {
	it, err := s.querier.Query(ctx, s.statement(template), params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sales series query failed")
	}
	points := []types.TimeSeriesPoint{}
	for {
		var row seriesRow
		if err := it.Next(&row); err != nil {
			if errors.Is(err, iterator.Done) {
				break
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading sales series")
		}
		points = append(points, types.TimeSeriesPoint{Date: row.Day, Value: row.Value})
	}
	return points, nil
}

func (s *salesService) queryLabels(ctx context.Context, template string, params []cloudbigquery.QueryParameter) ([]types.LabelValue, error) {
	it, err := s.querier.Query(ctx, s.statement(template), params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sales breakdown query failed")
	}
	out := []types.LabelValue{}
	for {
		var row labelRow
		if err := it.Next(&row); err != nil {
			if errors.Is(err, iterator.Done) {
				break
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading sales breakdown")
		}
		out = append(out, types.LabelValue{Label: row.Label, Value: row.Value})
	}
	return out, nil
}

func (s *salesService) queryCount(ctx context.Context, template string, params []cloudbigquery.QueryParameter) (int64, error) {
	it, err := s.querier.Query(ctx, s.statement(template), params)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sales count query failed")
	}
	var row countRow
	if err := it.Next(&row); err != nil {
		if errors.Is(err, iterator.Done) {
			return 0, nil
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading sales count")
	}
	return row.Value, nil
}

func (s *salesService) queryRatio(ctx context.Context, template string, params []cloudbigquery.QueryParameter) (float64, error) {
	it, err := s.querier.Query(ctx, s.statement(template), params)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "average order value query failed")
	}
	var row ratioRow
	if err := it.Next(&row); err != nil {
		if errors.Is(err, iterator.Done) {
			return 0, nil
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading average order value")
	}
	if !row.Value.Valid {
		return 0, nil
	}
	return row.Value.Float64, nil
}

func toMoneySeries(points []types.TimeSeriesPoint) []types.MoneyPoint {
	out := make([]types.MoneyPoint, 0, len(points))
	for _, p := range points {
		out = append(out, types.MoneyPoint{Date: p.Date, Amount: money.Paise(p.Value)})
	}
	return out
}
