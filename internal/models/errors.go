package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies errors crossing component boundaries so callers can
// react to the category without parsing messages.
type ErrorKind int

const (
	// KindValidation covers rejected input. Validation errors are raised
	// before any I/O happens.
	KindValidation ErrorKind = iota
	// KindPermission covers declined or dismissed privilege escalation.
	KindPermission
	// KindConfig covers unreadable, unwritable, or unusable files.
	KindConfig
	// KindBackup covers failures creating, verifying, or restoring backups.
	KindBackup
	// KindCommand covers failed or timed-out privileged commands.
	KindCommand
	// KindInconsistency covers a post-apply verification mismatch.
	KindInconsistency
	// KindBusy covers a commit attempted while another is in progress.
	KindBusy
)

// String returns the kind label used in messages and logs.
func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindPermission:
		return "permission"
	case KindConfig:
		return "config"
	case KindBackup:
		return "backup"
	case KindCommand:
		return "command"
	case KindInconsistency:
		return "inconsistency"
	case KindBusy:
		return "busy"
	default:
		return "unknown"
	}
}

// Error is the typed error crossing component boundaries.
type Error struct {
	Kind    ErrorKind
	Message string
	Detail  string
	Err     error
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a typed error wrapping an optional cause.
func NewError(kind ErrorKind, message string, err error) *Error {
	e := &Error{Kind: kind, Message: message, Err: err}
	if err != nil {
		e.Detail = err.Error()
	}
	return e
}

// ValidationError builds a validation-kind error without a cause.
func ValidationError(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err, or ok=false if err carries no typed error.
func KindOf(err error) (ErrorKind, bool) {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind, true
	}
	var fields FieldErrors
	if errors.As(err, &fields) {
		return KindValidation, true
	}
	return 0, false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// FieldError is one field-level validation failure.
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// FieldErrors aggregates every validation failure found in one pass so the
// caller can report all problems at once.
type FieldErrors []FieldError

func (e FieldErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	parts := make([]string, len(e))
	for i, fe := range e {
		parts[i] = fe.Error()
	}
	return strings.Join(parts, "; ")
}

// OrNil returns the aggregate as an error, or nil when empty.
func (e FieldErrors) OrNil() error {
	if len(e) == 0 {
		return nil
	}
	return e
}
