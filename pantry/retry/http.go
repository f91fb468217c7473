// retry/http.go
package retry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// StatusError is a non-2xx HTTP answer from an upstream.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream status %d", e.Code)
	}
	return fmt.Sprintf("upstream status %d: %s", e.Code, e.Body)
}

// IsRetryableStatus reports whether an HTTP status is worth retrying:
// 429 and the transient 5xx codes.
func IsRetryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// IsRetryableError classifies an error from an HTTP exchange. Cancellation
// and Permanent errors are final; a *StatusError defers to IsRetryableStatus;
// anything else, per-attempt timeouts included, is a transport failure and
// is retried. Do stops on its own once the caller's context ends.
func IsRetryableError(err error) bool {
	if err == nil || IsPermanent(err) || errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return IsRetryableStatus(se.Code)
	}
	return true
}
