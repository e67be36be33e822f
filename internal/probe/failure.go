// Package probe implements the five page measurement probes. Each probe is
// isolated: a failure inside one produces an error or skip marker in its
// result and never aborts the others.
package probe

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"syscall"
)

// FailureKind classifies an external-call failure so callers can branch on a
// machine-checkable kind instead of matching error strings.
type FailureKind int

// Failure kinds produced at external-call boundaries.
const (
	FailureUnknown FailureKind = iota
	FailureConnectionRefused
	FailureTimeout
	FailureRateLimited
)

// String returns the kind's wire name.
func (k FailureKind) String() string {
	switch k {
	case FailureConnectionRefused:
		return "connection_refused"
	case FailureTimeout:
		return "timeout"
	case FailureRateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

// Classify maps an error from an HTTP or network call to a FailureKind.
func Classify(err error) FailureKind {
	if err == nil {
		return FailureUnknown
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return FailureConnectionRefused
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}
	return FailureUnknown
}

// ClassifyStatus maps an HTTP status code to a FailureKind for non-2xx
// responses. 2xx codes classify as unknown since they are not failures.
func ClassifyStatus(code int) FailureKind {
	if code == http.StatusTooManyRequests {
		return FailureRateLimited
	}
	return FailureUnknown
}
