package config

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind classifies command failures
type ErrorKind string

const (
	// KindValidation: the change is structurally invalid. Nothing was mutated.
	KindValidation ErrorKind = "validation"

	// KindConflict: the caller's content hash is stale and must be re-read.
	KindConflict ErrorKind = "conflict"

	// KindNotFound: the target environment does not exist.
	KindNotFound ErrorKind = "not_found"

	// KindApplyFailure: applying or persisting the change failed unexpectedly.
	KindApplyFailure ErrorKind = "failure"
)

// StatusCode returns the HTTP status conventionally reported for the kind
func (k ErrorKind) StatusCode() int {
	switch k {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}

// FieldError describes one invalid field of one entity
type FieldError struct {
	Entity  string `json:"entity"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (f FieldError) String() string {
	if f.Field == "" {
		return f.Message
	}
	return fmt.Sprintf("%s.%s: %s", f.Entity, f.Field, f.Message)
}

// CommandError is returned by Command.IsValid and Store.Commit
type CommandError struct {
	Kind    ErrorKind    `json:"kind"`
	Message string       `json:"message"`
	Fields  []FieldError `json:"fields,omitempty"`
	Err     error        `json:"-"`
}

// Error implements the error interface
func (e *CommandError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if len(e.Fields) > 0 {
		msgs := make([]string, len(e.Fields))
		for i, f := range e.Fields {
			msgs[i] = f.Message
		}
		b.WriteString(": ")
		b.WriteString(strings.Join(msgs, "; "))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error
func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a validation failure
func NewValidationError(message string, fields ...FieldError) *CommandError {
	return &CommandError{Kind: KindValidation, Message: message, Fields: fields}
}

// NewConflictError creates a stale-hash failure
func NewConflictError(message string) *CommandError {
	return &CommandError{Kind: KindConflict, Message: message}
}

// NewNotFoundError creates a missing-entity failure
func NewNotFoundError(message string) *CommandError {
	return &CommandError{Kind: KindNotFound, Message: message}
}

// NewApplyError wraps an unexpected failure
func NewApplyError(message string, err error) *CommandError {
	return &CommandError{Kind: KindApplyFailure, Message: message, Err: err}
}

// KindOf returns the kind of a CommandError anywhere in err's chain, or
// KindApplyFailure for any other error
func KindOf(err error) ErrorKind {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Kind
	}
	return KindApplyFailure
}

// IsConflict reports whether err is a stale-hash failure
func IsConflict(err error) bool {
	return err != nil && KindOf(err) == KindConflict
}

// IsValidation reports whether err is a validation failure
func IsValidation(err error) bool {
	return err != nil && KindOf(err) == KindValidation
}

// IsNotFound reports whether err is a missing-entity failure
func IsNotFound(err error) bool {
	return err != nil && KindOf(err) == KindNotFound
}
