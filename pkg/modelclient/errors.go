package modelclient

import (
	"errors"
	"fmt"
	"time"
)

// ErrEmptyInput marks a document with no usable text. Callers treat it as a
// warning outcome, not a failure.
var ErrEmptyInput = errors.New("document has no usable text")

// RateLimitError is a 429 from the model service. Always retried after the
// server-provided delay.
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("model service rate limited (retry after %s): %s", e.RetryAfter, e.Message)
}

// TransientError is a 5xx from the model service, retried with exponential
// backoff.
type TransientError struct {
	Status  int
	Message string
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("model service error %d: %s", e.Status, e.Message)
}

// FatalError is a non-retryable failure: a 4xx other than 429, a malformed
// response body, or exhausted retries.
type FatalError struct {
	Status  int
	Message string
}

func (e *FatalError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("model request failed with status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("model request failed: %s", e.Message)
}

// IsRetryable reports whether err should be retried by the client's retry
// loop. Rate limits and transient server errors qualify; everything else is
// fatal for the call.
func IsRetryable(err error) bool {
	var rateErr *RateLimitError
	var transientErr *TransientError
	return errors.As(err, &rateErr) || errors.As(err, &transientErr)
}
