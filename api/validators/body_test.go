package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/horologe/storefront-backend/pkg/errors"
)

type testAddress struct {
	Phone   string `json:"phone" validate:"required,min=10"`
	Pincode string `json:"pincode" validate:"required,len=6,numeric"`
}

type testOrder struct {
	Quantity int         `json:"quantity" validate:"gt=0"`
	Address  testAddress `json:"shippingAddress" validate:"required"`
}

func decode(t *testing.T, body string) (testOrder, *pkgerrors.Error) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	var dest testOrder
	err := DecodeJSONBody(req, &dest)
	if err == nil {
		return dest, nil
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	return dest, typed
}

func TestDecodeJSONBodyAcceptsValidBody(t *testing.T) {
	got, err := decode(t, `{"quantity":2,"shippingAddress":{"phone":"9876543210","pincode":"411001"}}`)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if got.Quantity != 2 || got.Address.Pincode != "411001" {
		t.Fatalf("unexpected decode %+v", got)
	}
}

func TestDecodeJSONBodyReportsNestedFieldPaths(t *testing.T) {
	_, err := decode(t, `{"quantity":0,"shippingAddress":{"phone":"123","pincode":"4110"}}`)
	if err == nil {
		t.Fatal("expected validation failure")
	}
	details, ok := err.Details().(map[string]string)
	if !ok {
		t.Fatalf("unexpected details %T", err.Details())
	}
	want := map[string]string{
		"quantity":                "must be greater than 0",
		"shippingAddress.phone":   "must be at least 10",
		"shippingAddress.pincode": "must be exactly 6 characters",
	}
	for field, msg := range want {
		if details[field] != msg {
			t.Fatalf("field %s: expected %q got %q (all %v)", field, msg, details[field], details)
		}
	}
}

func TestDecodeJSONBodyRejectsMalformedInput(t *testing.T) {
	cases := map[string]string{
		"empty":          ``,
		"syntax":         `{"quantity":`,
		"unknown field":  `{"quantity":1,"coupon":"X","shippingAddress":{"phone":"9876543210","pincode":"411001"}}`,
		"wrong type":     `{"quantity":"two"}`,
		"trailing value": `{"quantity":1,"shippingAddress":{"phone":"9876543210","pincode":"411001"}} {}`,
		"oversized":      `{"quantity":1,"pad":"` + strings.Repeat("x", MaxBodyBytes) + `"}`,
	}
	for name, body := range cases {
		if _, err := decode(t, body); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestDecodeJSONBodyNamesUnknownField(t *testing.T) {
	_, err := decode(t, `{"quantity":1,"coupon":"X"}`)
	details, _ := err.Details().(map[string]string)
	if details["coupon"] != "is not allowed" {
		t.Fatalf("expected unknown field detail, got %v", err.Details())
	}
}
