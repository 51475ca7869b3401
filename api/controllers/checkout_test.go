package controllers

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"

	checkoutsvc "github.com/horologe/storefront-backend/internal/checkout"
	"github.com/horologe/storefront-backend/pkg/enums"
	pkgerrors "github.com/horologe/storefront-backend/pkg/errors"
)

type stubCheckout struct {
	attempt     *checkoutsvc.Attempt
	err         error
	quoteMethod enums.PaymentMethod
	submitted   checkoutsvc.SubmitInput
	confirmedID uuid.UUID
	payment     checkoutsvc.GatewayPayment
}

func (s *stubCheckout) Quote(_ context.Context, _ uuid.UUID, method enums.PaymentMethod) (*checkoutsvc.QuoteResult, error) {
	s.quoteMethod = method
	return &checkoutsvc.QuoteResult{Method: enums.PaymentMethodOnline}, s.err
}

func (s *stubCheckout) Submit(_ context.Context, in checkoutsvc.SubmitInput) (*checkoutsvc.Attempt, error) {
	s.submitted = in
	return s.attempt, s.err
}

func (s *stubCheckout) ConfirmPayment(_ context.Context, id uuid.UUID, p checkoutsvc.GatewayPayment) (*checkoutsvc.Attempt, error) {
	s.confirmedID = id
	s.payment = p
	return s.attempt, s.err
}

func (s *stubCheckout) Dismiss(context.Context, uuid.UUID) (*checkoutsvc.Attempt, error) {
	return s.attempt, s.err
}

func (s *stubCheckout) Get(context.Context, uuid.UUID) (*checkoutsvc.Attempt, error) {
	return s.attempt, s.err
}

func TestCheckoutQuoteNormalizesMethod(t *testing.T) {
	svc := &stubCheckout{}
	rec := serve(CheckoutQuote(svc, nil),
		newRequest(http.MethodGet, "/carts/x/quote?payment_method=%20COD%20", "", map[string]string{"cartId": uuid.NewString()}))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.quoteMethod != enums.PaymentMethodCOD {
		t.Fatalf("expected cod got %q", svc.quoteMethod)
	}
}

func TestCheckoutSubmitCreatesAttempt(t *testing.T) {
	cartID := uuid.New()
	svc := &stubCheckout{attempt: &checkoutsvc.Attempt{ID: uuid.New(), CartID: cartID, State: checkoutsvc.StateAwaitingFullPayment}}
	body := `{"cart_id":"` + cartID.String() + `","payment_method":"online","shipping_address":{"name":"A","email":"a@horologe.in","phone":"9876543210","address":"1 MG Road","city":"Pune","state":"MH","pincode":"411001"}}`
	rec := serve(CheckoutSubmit(svc, nil), newRequest(http.MethodPost, "/checkout", body, nil))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.submitted.CartID != cartID {
		t.Fatalf("expected cart %s got %s", cartID, svc.submitted.CartID)
	}
	var got checkoutsvc.Attempt
	decodeData(t, rec, &got)
	if got.State != checkoutsvc.StateAwaitingFullPayment {
		t.Fatalf("unexpected state %q", got.State)
	}
}

func TestCheckoutSubmitSurfacesOrderServiceMessage(t *testing.T) {
	svc := &stubCheckout{err: pkgerrors.New(pkgerrors.CodeDependency, "Seamaster is out of stock")}
	body := `{"cart_id":"` + uuid.NewString() + `","payment_method":"cod","shipping_address":{"name":"A","email":"a@horologe.in","phone":"9876543210","address":"1 MG Road","city":"Pune","state":"MH","pincode":"411001"}}`
	rec := serve(CheckoutSubmit(svc, nil), newRequest(http.MethodPost, "/checkout", body, nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", rec.Code)
	}
	if got := decodeError(t, rec); got.Error.Message != "Seamaster is out of stock" {
		t.Fatalf("unexpected message %q", got.Error.Message)
	}
}

func TestCheckoutConfirmPaymentForwardsGatewayFields(t *testing.T) {
	attemptID := uuid.New()
	svc := &stubCheckout{attempt: &checkoutsvc.Attempt{ID: attemptID, State: checkoutsvc.StateOrderPlaced}}
	body := `{"razorpay_order_id":"order_1","razorpay_payment_id":"pay_1","razorpay_signature":"sig"}`
	rec := serve(CheckoutConfirmPayment(svc, nil),
		newRequest(http.MethodPost, "/", body, map[string]string{"attemptId": attemptID.String()}))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.confirmedID != attemptID || svc.payment.PaymentID != "pay_1" || svc.payment.OrderID != "order_1" {
		t.Fatalf("unexpected forwarded values %s %+v", svc.confirmedID, svc.payment)
	}
}

func TestCheckoutConfirmPaymentReconciliationStatus(t *testing.T) {
	svc := &stubCheckout{err: pkgerrors.New(pkgerrors.CodeReconciliationRequired, "COD order failed after upfront payment, please contact support")}
	body := `{"razorpay_order_id":"order_1","razorpay_payment_id":"pay_1"}`
	rec := serve(CheckoutConfirmPayment(svc, nil),
		newRequest(http.MethodPost, "/", body, map[string]string{"attemptId": uuid.NewString()}))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 got %d", rec.Code)
	}
	got := decodeError(t, rec)
	if got.Error.Code != string(pkgerrors.CodeReconciliationRequired) {
		t.Fatalf("unexpected code %q", got.Error.Code)
	}
}

func TestCheckoutDismissRejectsBadID(t *testing.T) {
	rec := serve(CheckoutDismiss(&stubCheckout{}, nil),
		newRequest(http.MethodPost, "/", "", map[string]string{"attemptId": "nope"}))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}
