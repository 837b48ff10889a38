package providers

import "fmt"

// Kind tags the outcome of a push-payment request.
type Kind string

const (
	KindAccepted       Kind = "accepted"
	KindRejected       Kind = "rejected"
	KindAmbiguous      Kind = "ambiguous"
	KindMalformed      Kind = "malformed"
	KindNotImplemented Kind = "not_implemented"
	KindUnauthorized   Kind = "unauthorized"
)

const (
	CodeNotImplemented = "NOT_IMPLEMENTED"
	CodeAuthRefused    = "AUTH_REFUSED"
	CodeTimeout        = "TIMEOUT"
	CodeTransport      = "TRANSPORT_ERROR"
	CodeProviderError  = "PROVIDER_ERROR"
	CodeMalformed      = "MALFORMED_RESPONSE"
	CodeRejected       = "REJECTED"
)

// Result is the tagged outcome of RequestPayment. CorrelationID is set whenever
// the provider returned one, including on failures.
type Result struct {
	Kind          Kind
	CorrelationID string
	ErrorCode     string
	ErrorMessage  string
}

// Accepted builds a result for a push the provider queued.
func Accepted(correlationID string) Result {
	return Result{Kind: KindAccepted, CorrelationID: correlationID}
}

// Rejected builds an explicit provider refusal.
func Rejected(correlationID, code, message string) Result {
	if code == "" {
		code = CodeRejected
	}
	return Result{Kind: KindRejected, CorrelationID: correlationID, ErrorCode: code, ErrorMessage: message}
}

// Ambiguous builds a result for outcomes where the provider may still act.
func Ambiguous(code, message string) Result {
	return Result{Kind: KindAmbiguous, ErrorCode: code, ErrorMessage: message}
}

// Malformed builds a result for a response whose shape could not be interpreted.
func Malformed(correlationID, message string) Result {
	return Result{Kind: KindMalformed, CorrelationID: correlationID, ErrorCode: CodeMalformed, ErrorMessage: message}
}

// NotImplemented is returned for providers that are declared but not wired.
func NotImplemented(name string) Result {
	return Result{Kind: KindNotImplemented, ErrorCode: CodeNotImplemented, ErrorMessage: fmt.Sprintf("provider %s is not implemented", name)}
}

// Unauthorized signals the provider rejected the bearer token.
func Unauthorized(message string) Result {
	return Result{Kind: KindUnauthorized, ErrorCode: CodeAuthRefused, ErrorMessage: message}
}

// IsFailure reports whether the attempt must be marked failed. Ambiguous and
// malformed responses never fail an attempt since the provider may still charge.
func (r Result) IsFailure() bool {
	switch r.Kind {
	case KindRejected, KindNotImplemented, KindUnauthorized:
		return true
	default:
		return false
	}
}

// IsAccepted reports whether the provider queued the push.
func (r Result) IsAccepted() bool {
	return r.Kind == KindAccepted
}

// Message returns a human readable summary for partial-success responses.
func (r Result) Message() string {
	if r.ErrorMessage != "" {
		return r.ErrorMessage
	}
	switch r.Kind {
	case KindAccepted:
		return "payment request sent"
	case KindAmbiguous, KindMalformed:
		return "payment provider did not confirm the request"
	default:
		return "payment request failed"
	}
}
