package caller

import (
	"errors"
	"fmt"

	"github.com/skillsenselab/meshkit/registry"
)

// Sentinel errors for the pre-network failure modes.
var (
	// ErrCircuitOpen means the breaker denied the call before any
	// network attempt. The dependency is degraded; retry later or fall
	// back.
	ErrCircuitOpen = errors.New("circuit open for service")

	// ErrNoHealthyInstance means discovery found no healthy instance
	// for the target service.
	ErrNoHealthyInstance = registry.ErrNoHealthyInstance
)

// Reason classifies remote-call failures.
type Reason int

const (
	// ReasonConnection indicates the host could not be reached.
	ReasonConnection Reason = iota
	// ReasonTimeout indicates the call exceeded its deadline.
	ReasonTimeout
	// ReasonStatus indicates the host answered with HTTP status >=400.
	ReasonStatus
)

// String returns the reason name.
func (r Reason) String() string {
	switch r {
	case ReasonConnection:
		return "connection"
	case ReasonTimeout:
		return "timeout"
	case ReasonStatus:
		return "status"
	default:
		return "unknown"
	}
}

// CallError is a remote call that reached (or tried to reach) a host and
// failed. It preserves the HTTP status or transport cause for the caller.
type CallError struct {
	// Service is the downstream service name.
	Service string
	// Reason classifies the failure.
	Reason Reason
	// StatusCode is the HTTP status (0 for transport-level failures).
	StatusCode int
	// Body is the response body for status failures (may be nil).
	Body []byte
	// Err is the underlying transport error.
	Err error
}

// Error implements the error interface.
func (e *CallError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("call %s: %s (HTTP %d)", e.Service, e.Reason, e.StatusCode)
	}
	return fmt.Sprintf("call %s: %s: %v", e.Service, e.Reason, e.Err)
}

// Unwrap returns the underlying error.
func (e *CallError) Unwrap() error { return e.Err }

// IsTimeout reports whether err is a remote-call timeout.
func IsTimeout(err error) bool {
	var e *CallError
	return errors.As(err, &e) && e.Reason == ReasonTimeout
}

// IsStatus reports whether err is an HTTP status failure.
func IsStatus(err error) bool {
	var e *CallError
	return errors.As(err, &e) && e.Reason == ReasonStatus
}
