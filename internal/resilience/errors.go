package resilience

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// TransportError is a timeout or connection failure on a single HTTP call.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error (%s): %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ServerError is an HTTP 5xx answer from the remote side.
type ServerError struct {
	URL        string
	StatusCode int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("HTTP %d (%s)", e.StatusCode, e.URL)
}

// IsTransient reports whether err (or any error in its chain) is worth
// another attempt: a ServerError, a TransportError wrapping a timeout or
// connection failure, or a bare network error of the same kind.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var se *ServerError
	if errors.As(err, &se) {
		return true
	}

	var te *TransportError
	if errors.As(err, &te) {
		return isNetworkFailure(te.Err)
	}

	return isNetworkFailure(err)
}

func isNetworkFailure(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// String-based heuristics for wrapped errors from HTTP clients.
	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection reset by peer",
		"connection refused",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"deadline exceeded",
		"server closed idle connection",
		"transport connection broken",
		"unexpected eof",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsServerStatus reports whether an HTTP status code is a retryable server
// failure.
func IsServerStatus(statusCode int) bool {
	return statusCode >= 500 && statusCode <= 599
}
