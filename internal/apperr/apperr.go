// Package apperr defines the error kinds returned by the adoption workflow.
// Callers branch on the kind; the reason is a stable machine-readable code.
package apperr

import (
	"errors"
	"fmt"

	"github.com/pet-rehoming/backend/internal/store"
)

type Kind string

const (
	NotFound        Kind = "NotFound"
	Forbidden       Kind = "Forbidden"
	InvalidState    Kind = "InvalidState"
	Conflict        Kind = "Conflict"
	Blocked         Kind = "Blocked"
	UpstreamFailure Kind = "UpstreamFailure"
	Validation      Kind = "Validation"
	Internal        Kind = "Internal"
)

type Error struct {
	Kind    Kind
	Reason  string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind, so errors.Is(err, apperr.E(apperr.Conflict))
// works without comparing reasons.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Reason == "" || t.Reason == e.Reason)
}

func New(kind Kind, reason, msg string) *Error {
	return &Error{Kind: kind, Reason: reason, Message: msg}
}

func Newf(kind Kind, reason, format string, args ...any) *Error {
	return &Error{Kind: kind, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, reason string, err error) *Error {
	msg := reason
	if err != nil {
		msg = err.Error()
	}
	return &Error{Kind: kind, Reason: reason, Message: msg, Err: err}
}

// E is a kind-only target for errors.Is.
func E(kind Kind) *Error {
	return &Error{Kind: kind}
}

// KindOf classifies any error. Storage sentinels are mapped; everything else
// that is not an *Error is Internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		return NotFound
	case errors.Is(err, store.ErrVersionConflict), errors.Is(err, store.ErrDuplicate):
		return Conflict
	}
	return Internal
}

func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	switch KindOf(err) {
	case NotFound:
		return "not_found"
	case Conflict:
		return "concurrent_update"
	}
	return "internal"
}

// Is reports whether err is of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// FromStore converts storage errors into workflow errors, naming the entity.
func FromStore(err error, entity string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		return &Error{Kind: NotFound, Reason: entity + "_not_found", Message: entity + " not found", Err: err}
	case errors.Is(err, store.ErrVersionConflict):
		return &Error{Kind: Conflict, Reason: "concurrent_update", Message: entity + " was modified concurrently", Err: err}
	case errors.Is(err, store.ErrDuplicate):
		return &Error{Kind: Conflict, Reason: "duplicate", Message: entity + " already exists", Err: err}
	}
	return &Error{Kind: Internal, Reason: "internal", Message: "internal error", Err: err}
}
