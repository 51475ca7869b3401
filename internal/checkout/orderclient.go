package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/horologe/storefront-backend/internal/orders"
	pkgerrors "github.com/horologe/storefront-backend/pkg/errors"
	"github.com/horologe/storefront-backend/pkg/types"
)

const (
	createOrderPath       = "/api/v1/create-order"
	verifyPaymentPath     = "/api/v1/verify-payment"
	responseBodyReadLimit = 64 << 10
	defaultClientTimeout  = 15 * time.Second
)

// OrderClient is the order-service surface the orchestrator depends on.
// orders.Service satisfies it in-process; HTTPOrderClient talks to a remote
// deployment of the same endpoints.
type OrderClient interface {
	CreateOrder(ctx context.Context, req orders.CreateOrderRequest) (*orders.CreateOrderResponse, error)
	VerifyPayment(ctx context.Context, req orders.VerifyPaymentRequest) (*orders.VerifyPaymentResponse, error)
}

// HTTPOrderClient calls create-order and verify-payment over HTTP.
type HTTPOrderClient struct {
	httpClient *http.Client
	baseURL    string
}

// ClientOption configures optional client behavior.
type ClientOption func(*HTTPOrderClient)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPOrderClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewHTTPOrderClient builds a client for the order service at baseURL.
func NewHTTPOrderClient(baseURL string, timeout time.Duration, opts ...ClientOption) (*HTTPOrderClient, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errors.New("order service url is required")
	}
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}
	client := &HTTPOrderClient{
		baseURL:    trimmed,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

func (c *HTTPOrderClient) CreateOrder(ctx context.Context, req orders.CreateOrderRequest) (*orders.CreateOrderResponse, error) {
	var out orders.CreateOrderResponse
	if err := c.post(ctx, createOrderPath, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPOrderClient) VerifyPayment(ctx context.Context, req orders.VerifyPaymentRequest) (*orders.VerifyPaymentResponse, error) {
	var out orders.VerifyPaymentResponse
	if err := c.post(ctx, verifyPaymentPath, req, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, pkgerrors.New(pkgerrors.CodePaymentVerification, "payment verification failed")
	}
	return &out, nil
}

func (c *HTTPOrderClient) post(ctx context.Context, path string, body, dest any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal order service request")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build order service request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "order service unreachable")
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read order service response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeRemoteError(resp.StatusCode, raw)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode order service response")
	}
	return nil
}

// decodeRemoteError keeps the server's code and message when the body is a
// standard error envelope.
func decodeRemoteError(status int, raw []byte) error {
	var envelope types.ErrorEnvelope
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Message != "" {
		code := pkgerrors.Code(envelope.Error.Code)
		if !code.IsKnown() {
			code = pkgerrors.CodeDependency
		}
		cause := fmt.Errorf("order service status %d", status)
		if envelope.Error.RequestID != "" {
			cause = fmt.Errorf("order service status %d, request %s", status, envelope.Error.RequestID)
		}
		return pkgerrors.Wrap(code, cause, envelope.Error.Message).
			WithDetails(envelope.Error.Details)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency,
		fmt.Errorf("status %d: %s", status, strings.TrimSpace(string(raw))),
		"order service request failed")
}
