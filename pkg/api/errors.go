package api

import (
	"context"
	"errors"
	"fmt"
)

type (
	// AdapterError is a classified failure from an external service call.
	// Transient failures (network, timeout, 5xx) are eligible for retry;
	// permanent ones (4xx, malformed input) are surfaced immediately
	AdapterError struct {
		Service    string
		Op         string
		StatusCode int
		Transient  bool
		Message    string
	}

	// FlowError is a flow's terminal failed state, preserving where in
	// the state graph the failure occurred
	FlowError struct {
		Flow  FlowName
		State FlowStateName
		Err   error
	}
)

var (
	// ErrValidation marks malformed or missing intent/flow parameters.
	// Reported immediately, with no side effects and no retry
	ErrValidation = errors.New("validation failed")

	// ErrAuth marks a missing or invalid API key, rejected before any
	// core logic runs
	ErrAuth = errors.New("authentication failed")

	// ErrDuplicateOperation marks a mutating adapter call repeated for a
	// correlation ID whose side effect was already applied
	ErrDuplicateOperation = errors.New("operation already applied")

	// ErrCancelled marks actions abandoned by flow cancellation
	ErrCancelled = errors.New("flow cancelled")
)

func (e *AdapterError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s %s: HTTP %d (%s): %s",
			e.Service, e.Op, e.StatusCode, kind, e.Message)
	}
	return fmt.Sprintf("%s %s (%s): %s", e.Service, e.Op, kind, e.Message)
}

func (e *FlowError) Error() string {
	return fmt.Sprintf("flow %s failed at %s: %v", e.Flow, e.State, e.Err)
}

func (e *FlowError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether an error is eligible for retry under the
// configured retry budget
func IsTransient(err error) bool {
	var ae *AdapterError
	if errors.As(err, &ae) {
		return ae.Transient
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// IsValidation reports whether an error belongs to the validation taxonomy
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
