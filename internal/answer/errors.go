package answer

import "fmt"

// Kind classifies orchestration failures. Every kind maps to a
// human-readable message shown directly to the end user.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindMissingCredential Kind = "missing_credential"
	KindTimeout           Kind = "timeout"
	KindRateLimited       Kind = "rate_limited"
	KindProviderError     Kind = "provider_error"
	KindEmptyResponse     Kind = "empty_response"
	KindInvalidResponse   Kind = "invalid_response"
	KindInternal          Kind = "internal"
)

type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// AsError unwraps an orchestration error; unexpected error types are
// reported as internal failures so callers always get a kind.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	if typed, ok := err.(*Error); ok {
		return typed
	}
	return &Error{Kind: KindInternal, Message: err.Error()}
}
