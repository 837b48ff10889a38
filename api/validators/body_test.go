package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/dukapay-backend/pkg/errors"
)

type retryBody struct {
	OrderID  string `json:"order_id" validate:"required,uuid"`
	Provider string `json:"payment_provider" validate:"omitempty,payment_provider"`
}

func newRequest(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
}

func TestDecodeJSONBodyAcceptsValidPayload(t *testing.T) {
	id := uuid.NewString()
	var dest retryBody
	if err := DecodeJSONBody(newRequest(`{"order_id":"`+id+`","payment_provider":"mpesa"}`), &dest); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dest.OrderID != id || dest.Provider != "mpesa" {
		t.Fatalf("unexpected decode %+v", dest)
	}
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	var dest retryBody
	err := DecodeJSONBody(newRequest(`{"order_id":"x","amount":10}`), &dest)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDecodeJSONBodyReportsFieldErrors(t *testing.T) {
	var dest retryBody
	err := DecodeJSONBody(newRequest(`{"order_id":"not-a-uuid"}`), &dest)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := typed.Details().(map[string]string)
	if !ok || details["order_id"] != "must be a valid uuid" {
		t.Fatalf("unexpected details %#v", typed.Details())
	}
}

func TestParseUUID(t *testing.T) {
	id := uuid.New()
	got, err := ParseUUID(" "+id.String()+" ", "orderId")
	if err != nil || got != id {
		t.Fatalf("expected %s, got %s (%v)", id, got, err)
	}
	if _, err := ParseUUID("nope", "orderId"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := ParseUUID(uuid.Nil.String(), "orderId"); err == nil {
		t.Fatal("expected nil uuid to be rejected")
	}
}

func TestDecodeJSONBodyRejectsUnsupportedProvider(t *testing.T) {
	var dest retryBody
	err := DecodeJSONBody(newRequest(`{"order_id":"`+uuid.NewString()+`","payment_provider":"paypal"}`), &dest)
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, _ := typed.Details().(map[string]string)
	if details["payment_provider"] != "is not a supported mobile-money network" {
		t.Fatalf("unexpected details %#v", typed.Details())
	}

	if err := DecodeJSONBody(newRequest(`{"order_id":"`+uuid.NewString()+`","payment_provider":"AIRTEL"}`), &dest); err != nil {
		t.Fatalf("provider names are case-insensitive: %v", err)
	}
}

func TestDecodeJSONBodyRejectsEmptyAndTrailingBodies(t *testing.T) {
	var dest retryBody
	err := DecodeJSONBody(newRequest(""), &dest)
	if typed := pkgerrors.As(err); typed == nil || typed.Message() != "request body is required" {
		t.Fatalf("expected empty body error, got %v", err)
	}

	err = DecodeJSONBody(newRequest(`{"order_id":"`+uuid.NewString()+`"} {"order_id":"x"}`), &dest)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected trailing object to be rejected, got %v", err)
	}
}

func TestDecodeJSONBodyRejectsOversizedBody(t *testing.T) {
	var dest retryBody
	huge := `{"order_id":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	err := DecodeJSONBody(newRequest(huge), &dest)
	if typed := pkgerrors.As(err); typed == nil || typed.Message() != "request body too large" {
		t.Fatalf("expected size error, got %v", err)
	}
}
