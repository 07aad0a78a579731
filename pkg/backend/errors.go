package backend

import (
	"context"
	"net"
	"net/url"

	"github.com/pkg/errors"
)

// BackendError reports a failure the backend itself signaled, either a
// non-200 status or a success=false envelope.
type BackendError struct {
	// Status is the HTTP status code, 0 when the envelope reported the
	// failure on a 200 response.
	Status int
	Reason string
}

func (e *BackendError) Error() string {
	return e.Reason
}

// MalformedResponseError wraps a response body that could not be decoded
// as an envelope at all. Missing fields inside a decodable envelope are
// not errors.
type MalformedResponseError struct {
	Cause error
}

func (e *MalformedResponseError) Error() string {
	return "malformed backend response: " + e.Cause.Error()
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Cause
}

// FailureKind buckets turn failures for apology selection and logging.
type FailureKind string

const (
	FailureNone      FailureKind = ""
	FailureTimeout   FailureKind = "timeout"
	FailureTransport FailureKind = "transport"
	FailureBackend   FailureKind = "backend"
	FailureMalformed FailureKind = "malformed"
	FailureInternal  FailureKind = "internal"
)

// Classify buckets an error from a turn request. Timeout detection runs
// first because transport errors wrap the context deadline on expiry.
func Classify(err error) FailureKind {
	if err == nil {
		return FailureNone
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}

	var backendErr *BackendError
	if errors.As(err, &backendErr) {
		return FailureBackend
	}

	var malformedErr *MalformedResponseError
	if errors.As(err, &malformedErr) {
		return FailureMalformed
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) || errors.As(err, &netErr) {
		return FailureTransport
	}
	// http.Client wraps transport failures in url.Error; the net checks
	// above unwrap through it, but DNS and proxy errors may not carry a
	// net.Error, so treat any remaining client error as transport.
	if isURLError(err) {
		return FailureTransport
	}

	return FailureInternal
}

func isURLError(err error) bool {
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
