package core

import (
	"errors"
	"net"
	"strings"
)

// isRetryable classifies a ProviderStream failure as transient (429/5xx,
// network timeouts) versus fatal (auth, bad request, unsupported model).
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"429", "rate limit", "too many requests",
		"500", "502", "503", "504",
		"timeout", "temporarily unavailable", "connection reset",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// isRateLimited reports whether err looks like a 429-class rate-limit error,
// the trigger for an opportunistic credential rotation before retrying.
func isRateLimited(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests")
}
