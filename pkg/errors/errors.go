package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeInvalidToken Code = "INVALID_TOKEN"
	CodeForbidden    Code = "FORBIDDEN"
	CodeNotFound     Code = "NOT_FOUND"
	CodeConflict     Code = "CONFLICT"
	CodeIdempotency  Code = "IDEMPOTENCY_KEY_REUSED"
	CodeInternal     Code = "INTERNAL_ERROR"
	CodeDependency   Code = "DEPENDENCY_ERROR"

	CodeMissingIdempotency  Code = "MISSING_IDEMPOTENCY"
	CodeInvalidAddress      Code = "INVALID_ADDRESS"
	CodeMissingPhone        Code = "MISSING_PHONE"
	CodeCartEmpty           Code = "CART_EMPTY"
	CodeCartNotFound        Code = "CART_NOT_FOUND"
	CodeProductUnavailable  Code = "PRODUCT_UNAVAILABLE"
	CodeOrderNotFound       Code = "ORDER_NOT_FOUND"
	CodeOrderNotPending     Code = "ORDER_NOT_PENDING"
	CodeInvalidAmount       Code = "INVALID_AMOUNT"
	CodeOrderCreateFailed   Code = "ORDER_CREATE_FAILED"
	CodePaymentCreateFailed Code = "PAYMENT_CREATE_FAILED"
)

// Metadata describes how a code is surfaced to API callers.
// ExposeMessage allows the typed error's own message to replace PublicMessage.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
	ExposeMessage  bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation: {
		HTTPStatus:     http.StatusBadRequest,
		PublicMessage:  "validation failed",
		DetailsAllowed: true,
		ExposeMessage:  true,
	},
	CodeUnauthorized: {
		HTTPStatus:    http.StatusUnauthorized,
		PublicMessage: "authentication required",
		ExposeMessage: true,
	},
	CodeInvalidToken: {
		HTTPStatus:    http.StatusUnauthorized,
		PublicMessage: "invalid or expired token",
		ExposeMessage: true,
	},
	CodeForbidden: {
		HTTPStatus:    http.StatusForbidden,
		PublicMessage: "access denied",
		ExposeMessage: true,
	},
	CodeNotFound: {
		HTTPStatus:    http.StatusNotFound,
		PublicMessage: "resource not found",
		ExposeMessage: true,
	},
	CodeConflict: {
		HTTPStatus:    http.StatusConflict,
		PublicMessage: "conflict detected",
		ExposeMessage: true,
	},
	CodeIdempotency: {
		HTTPStatus:     http.StatusConflict,
		PublicMessage:  "idempotency key reused",
		DetailsAllowed: true,
		ExposeMessage:  true,
	},
	CodeInternal: {
		HTTPStatus:    http.StatusInternalServerError,
		Retryable:     true,
		PublicMessage: "internal server error",
	},
	CodeDependency: {
		HTTPStatus:     http.StatusServiceUnavailable,
		Retryable:      true,
		PublicMessage:  "dependency unavailable",
		DetailsAllowed: true,
	},
	CodeMissingIdempotency: {
		HTTPStatus:    http.StatusBadRequest,
		PublicMessage: "Idempotency-Key header required",
		ExposeMessage: true,
	},
	CodeInvalidAddress: {
		HTTPStatus:    http.StatusBadRequest,
		PublicMessage: "Shipping address required",
		ExposeMessage: true,
	},
	CodeMissingPhone: {
		HTTPStatus:    http.StatusBadRequest,
		PublicMessage: "A valid payer phone number is required",
		ExposeMessage: true,
	},
	CodeCartEmpty: {
		HTTPStatus:    http.StatusBadRequest,
		PublicMessage: "Cart is empty",
		ExposeMessage: true,
	},
	CodeCartNotFound: {
		HTTPStatus:    http.StatusBadRequest,
		PublicMessage: "Cart not found",
		ExposeMessage: true,
	},
	CodeProductUnavailable: {
		HTTPStatus:     http.StatusBadRequest,
		PublicMessage:  "One or more products are unavailable",
		DetailsAllowed: true,
		ExposeMessage:  true,
	},
	CodeOrderNotFound: {
		HTTPStatus:    http.StatusNotFound,
		PublicMessage: "Order not found",
		ExposeMessage: true,
	},
	CodeOrderNotPending: {
		HTTPStatus:     http.StatusBadRequest,
		PublicMessage:  "Order is not awaiting payment",
		DetailsAllowed: true,
		ExposeMessage:  true,
	},
	CodeInvalidAmount: {
		HTTPStatus:    http.StatusBadRequest,
		PublicMessage: "Order amount is invalid",
		ExposeMessage: true,
	},
	CodeOrderCreateFailed: {
		HTTPStatus:    http.StatusInternalServerError,
		Retryable:     true,
		PublicMessage: "Failed to create order",
	},
	CodePaymentCreateFailed: {
		HTTPStatus:     http.StatusInternalServerError,
		Retryable:      true,
		PublicMessage:  "Order created but payment could not be started",
		DetailsAllowed: true,
	},
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsCode reports whether err carries the given typed code anywhere in its chain.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}
