package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// StatusError reports a non-200 HTTP response.
type StatusError struct {
	URL        string
	StatusCode int
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d fetching %s", e.StatusCode, e.URL)
}

// IsRetryable reports whether an error is worth retrying: network errors
// and timeouts are, as are HTTP 5xx and 429 responses. Other HTTP statuses
// (404, 403, ...) and context cancellation are permanent for our purposes.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= http.StatusInternalServerError ||
			statusErr.StatusCode == http.StatusTooManyRequests
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	// url.Error and transport errors wrap net errors inconsistently; treat
	// any remaining non-HTTP failure as transient.
	return true
}
