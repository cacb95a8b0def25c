package core

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the conversation view. Callers match them with errors.Is.
var (
	// ErrNetwork wraps history, send and action request failures.
	ErrNetwork = errors.New("network error")
	// ErrOutOfOrderPage rejects a history page that is not strictly older than the timeline.
	ErrOutOfOrderPage = errors.New("OUT_OF_ORDER_PAGE")
	// ErrStaleEvent marks an event referencing a message the timeline does not hold.
	ErrStaleEvent = errors.New("stale event")
	// ErrSendFailure marks a provisional message whose send request failed.
	ErrSendFailure = errors.New("send failed")
	// ErrValidation blocks a user action before any timeline write.
	ErrValidation = errors.New("validation error")
)

// Error attaches the failing operation to one of the error kinds.
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Wrap builds an *Error. A nil err with a kind still yields an error.
func Wrap(kind error, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Validation builds a validation error with a formatted reason.
func Validation(op, format string, args ...any) error {
	return &Error{Kind: ErrValidation, Op: op, Err: fmt.Errorf(format, args...)}
}
