package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// TransientError marks an error as safe to retry regardless of its
// underlying type. The CRM client classifies its own responses; this
// wrapper exists for callers that already know a failure is transient.
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps err as transient, carrying the HTTP status
// that triggered it when one is known (0 otherwise).
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// IsTransient reports whether err looks worth retrying: an explicit
// TransientError anywhere in the chain, a network timeout, a dropped
// connection, or one of the flaky-transport messages net/http surfaces
// as plain strings.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// net/http wraps several transport failures as bare strings, so a
	// substring check is the only handle left on them.
	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
		"transport connection broken",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsTransientHTTPStatus reports whether statusCode indicates a
// server-side hiccup worth retrying. 429 covers the CRM's rate limit;
// the rest are timeouts and gateway failures.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408,
		429,
		500,
		502,
		503,
		504:
		return true
	default:
		return false
	}
}
