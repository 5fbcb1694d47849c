package llm

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrUnsupportedProvider struct {
	Kind Kind
}

func (e ErrUnsupportedProvider) Error() string {
	return fmt.Sprintf("unsupported provider: %s", e.Kind)
}

// StatusError carries a non-2xx provider response so callers can branch on
// the status code, most importantly 429 for the fallback chain.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider request failed: status %d - %s", e.Code, e.Body)
}

func IsRateLimited(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Code == http.StatusTooManyRequests
}

var (
	ErrMissingAPIKey = errors.New("missing API key")
	ErrNoChoices     = errors.New("provider response had no choices")
	ErrEmptyReply    = errors.New("provider returned an empty answer")
)
