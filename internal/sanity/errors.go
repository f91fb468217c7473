package sanity

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/sony/gobreaker"
)

// ErrUnavailable wraps recoverable failures: the CMS could not be reached
// or answered with a server error. Callers degrade instead of failing.
var ErrUnavailable = errors.New("sanity: content temporarily unavailable")

// APIError is a non-2xx answer from the query API.
type APIError struct {
	StatusCode  int
	Description string
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("sanity: api status %d", e.StatusCode)
	}
	return fmt.Sprintf("sanity: api status %d: %s", e.StatusCode, e.Description)
}

// IsRecoverable reports whether err is transient: network errors, timeouts,
// 5xx answers and an open circuit. 4xx answers, decode errors, cancellation
// by the caller and anything unrecognised are not.
func IsRecoverable(err error) bool {
	// A canceled request arrives as a *url.Error, which is a net.Error.
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrUnavailable) ||
		errors.Is(err, gobreaker.ErrOpenState) ||
		errors.Is(err, gobreaker.ErrTooManyRequests) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500 && apiErr.StatusCode < 600
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
