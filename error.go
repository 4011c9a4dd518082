package flume

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// StageError provides rich context about a stage failure. It wraps the
// underlying error with the stage that produced it, the upstream Result the
// stage was processing, and whether the failure was due to timeout or
// cancellation.
//
// StageError implements Unwrap, so errors.Is and errors.As see through it
// to the underlying cause.
type StageError[T any] struct {
	Timestamp time.Time
	Err       error
	Upstream  Result[T]
	Stage     Name
	Timeout   bool
	Canceled  bool
}

// Error implements the error interface.
func (e *StageError[T]) Error() string {
	if e.Timeout {
		return fmt.Sprintf("stage %q timed out: %v", e.Stage, e.Err)
	}
	if e.Canceled {
		return fmt.Sprintf("stage %q canceled: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("stage %q failed: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError[T]) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether the failure was caused by a deadline.
func (e *StageError[T]) IsTimeout() bool {
	return e.Timeout || errors.Is(e.Err, context.DeadlineExceeded)
}

// IsCanceled reports whether the failure was caused by cancellation.
func (e *StageError[T]) IsCanceled() bool {
	return e.Canceled || errors.Is(e.Err, context.Canceled)
}

// newStageError classifies and wraps a stage failure.
func newStageError[T any](stage Name, cause error, upstream Result[T]) *StageError[T] {
	return &StageError[T]{
		Timestamp: time.Now(),
		Err:       cause,
		Upstream:  upstream,
		Stage:     stage,
		Timeout:   errors.Is(cause, context.DeadlineExceeded),
		Canceled:  errors.Is(cause, context.Canceled),
	}
}

// CompositeError aggregates two or more causes without discarding any.
// It is produced when a stage fails while its upstream Result was already
// failing: the upstream cause comes first, the fresh cause second. Causes
// are never reordered.
//
// CompositeError implements Unwrap() []error, so errors.Is and errors.As
// match against every aggregated cause.
type CompositeError struct {
	causes []error
}

// composeErrors builds a CompositeError from an upstream cause and a fresh
// cause. When the upstream cause is itself composite its causes are
// flattened in place, preserving order, so a chain of failing stages yields
// one flat list rather than a nested tree.
func composeErrors(upstream, fresh error) *CompositeError {
	var causes []error
	var prior *CompositeError
	if errors.As(upstream, &prior) {
		causes = append(causes, prior.causes...)
	} else if upstream != nil {
		causes = append(causes, upstream)
	}
	if fresh != nil {
		causes = append(causes, fresh)
	}
	return &CompositeError{causes: causes}
}

// Causes returns the aggregated causes in order, upstream first.
func (e *CompositeError) Causes() []error {
	out := make([]error, len(e.causes))
	copy(out, e.causes)
	return out
}

// Error implements the error interface, joining all cause messages.
func (e *CompositeError) Error() string {
	msgs := make([]string, len(e.causes))
	for i, c := range e.causes {
		msgs[i] = c.Error()
	}
	return fmt.Sprintf("%d errors: %s", len(e.causes), strings.Join(msgs, "; "))
}

// Unwrap exposes the causes to errors.Is and errors.As.
func (e *CompositeError) Unwrap() []error {
	return e.Causes()
}
