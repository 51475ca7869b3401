package writer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/horologe/storefront-backend/internal/analytics/types"
)

const (
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 250 * time.Millisecond
	defaultMaximumBackoff = 2 * time.Second
)

// RetryPolicy bounds how hard a streaming insert is retried before the
// Pub/Sub message is nacked.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaximumBackoff time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = defaultInitialBackoff
	}
	if p.MaximumBackoff < p.InitialBackoff {
		p.MaximumBackoff = max(defaultMaximumBackoff, p.InitialBackoff)
	}
	return p
}

type rowInserter interface {
	InsertRows(ctx context.Context, rows []any) error
}

// BigQueryWriter streams order event rows into BigQuery. Rows are written
// synchronously so a message is only acked once its row landed. Each row
// carries its event id as the insert id, which lets BigQuery drop the
// duplicates produced by redelivery.
type BigQueryWriter struct {
	client rowInserter
	retry  RetryPolicy
	sleep  func(context.Context, time.Duration) error
}

func New(client rowInserter, retry RetryPolicy) (*BigQueryWriter, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	return &BigQueryWriter{client: client, retry: retry.withDefaults(), sleep: sleepCtx}, nil
}

// InsertOrderEvent writes one row.
func (w *BigQueryWriter) InsertOrderEvent(ctx context.Context, row types.OrderEventRow) error {
	return w.InsertOrderEvents(ctx, []types.OrderEventRow{row})
}

// InsertOrderEvents writes rows, retrying only the rows BigQuery rejected
// with a transient error.
func (w *BigQueryWriter) InsertOrderEvents(ctx context.Context, rows []types.OrderEventRow) error {
	pending := make([]any, 0, len(rows))
	for i := range rows {
		pending = append(pending, &cbigquery.StructSaver{Struct: &rows[i], InsertID: rows[i].EventID})
	}

	backoff := w.retry.InitialBackoff
	for attempt := 1; len(pending) > 0; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := w.client.InsertRows(ctx, pending)
		if err == nil {
			return nil
		}
		if attempt >= w.retry.MaxAttempts || !isRetryable(err) {
			return fmt.Errorf("insert %d order event rows: %w", len(pending), err)
		}
		pending = failedRows(pending, err)
		if err := w.sleep(ctx, backoff); err != nil {
			return err
		}
		backoff = min(backoff*2, w.retry.MaximumBackoff)
	}
	return nil
}

// failedRows narrows rows to those named by a partial-failure error. Any
// other error means the whole request failed.
func failedRows(rows []any, err error) []any {
	var pme cbigquery.PutMultiError
	if !errors.As(err, &pme) || len(pme) == 0 {
		return rows
	}
	out := make([]any, 0, len(pme))
	for _, rowErr := range pme {
		if rowErr.RowIndex >= 0 && rowErr.RowIndex < len(rows) {
			out = append(out, rows[rowErr.RowIndex])
		}
	}
	if len(out) == 0 {
		return rows
	}
	return out
}

// isRetryable treats a compound error as transient only when every part is.
func isRetryable(err error) bool {
	var pme cbigquery.PutMultiError
	if errors.As(err, &pme) {
		if len(pme) == 0 {
			return false
		}
		for _, rowErr := range pme {
			if len(rowErr.Errors) == 0 || !isRetryable(rowErr.Errors) {
				return false
			}
		}
		return true
	}

	var multi cbigquery.MultiError
	if errors.As(err, &multi) {
		if len(multi) == 0 {
			return false
		}
		for _, inner := range multi {
			if !isRetryable(inner) {
				return false
			}
		}
		return true
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests, http.StatusRequestTimeout,
			http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Aborted, codes.DeadlineExceeded, codes.Internal, codes.ResourceExhausted, codes.Unavailable:
			return true
		}
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// EncodeJSON turns an event payload into a BigQuery JSON column value.
func EncodeJSON(payload any) (cbigquery.NullJSON, error) {
	var raw []byte
	switch value := payload.(type) {
	case nil:
		return cbigquery.NullJSON{}, nil
	case cbigquery.NullJSON:
		return value, nil
	case json.RawMessage:
		raw = value
	case []byte:
		raw = value
	default:
		encoded, err := json.Marshal(payload)
		if err != nil {
			return cbigquery.NullJSON{}, fmt.Errorf("marshal json: %w", err)
		}
		raw = encoded
	}
	if len(raw) == 0 {
		return cbigquery.NullJSON{}, nil
	}
	return cbigquery.NullJSON{Valid: true, JSONVal: string(raw)}, nil
}
