// Package retry wraps one unit of pipeline work with bounded retries,
// exponential backoff, and failure classification.
package retry

import (
	"context"
	"errors"
	"fmt"

	"github.com/rowanhealth/clinsight/internal/transcript"
)

// Class is the failure taxonomy used by the retry policy.
type Class int

const (
	// ClassTransient covers rate limiting, network/server errors, and
	// timeouts. Retried per policy.
	ClassTransient Class = iota
	// ClassValidation covers structurally malformed reasoning output.
	// Retried per policy, then terminal.
	ClassValidation
	// ClassPermanent covers missing or invalid required input. Never
	// retried regardless of remaining budget.
	ClassPermanent
)

func (c Class) String() string {
	switch c {
	case ClassValidation:
		return "validation"
	case ClassPermanent:
		return "permanent"
	default:
		return "transient"
	}
}

// classedError carries a failure class alongside the wrapped error.
type classedError struct {
	class Class
	err   error
}

func (e *classedError) Error() string { return fmt.Sprintf("%s: %v", e.class, e.err) }
func (e *classedError) Unwrap() error { return e.err }

// Transient marks err as a transient failure.
func Transient(err error) error { return &classedError{class: ClassTransient, err: err} }

// Validation marks err as a structured-output validation failure.
func Validation(err error) error { return &classedError{class: ClassValidation, err: err} }

// Permanent marks err as a permanent failure.
func Permanent(err error) error { return &classedError{class: ClassPermanent, err: err} }

// Classify returns the failure class of err. Context cancellation and
// deadline expiry are transient (timeouts); invalid transcripts are
// permanent; unmarked errors default to transient so that unknown service
// hiccups still get the retry budget.
func Classify(err error) Class {
	var ce *classedError
	if errors.As(err, &ce) {
		return ce.class
	}
	if errors.Is(err, transcript.ErrInvalid) {
		return ClassPermanent
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ClassTransient
	}
	return ClassTransient
}
