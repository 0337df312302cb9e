// Package apperr defines the error kinds services return and the HTTP status each maps to.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies an error for the transport layer
type Kind struct {
	Name   string
	Status int
}

var (
	Validation  = Kind{Name: "validation", Status: http.StatusBadRequest}
	NotFound    = Kind{Name: "not_found", Status: http.StatusNotFound}
	Conflict    = Kind{Name: "conflict", Status: http.StatusConflict}
	Unavailable = Kind{Name: "unavailable", Status: http.StatusServiceUnavailable}
	Timeout     = Kind{Name: "timeout", Status: http.StatusRequestTimeout}
	Internal    = Kind{Name: "internal", Status: http.StatusInternalServerError}
)

// Error is a classified service error
type Error struct {
	Kind    Kind
	Message string
	Fields  []string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given kind
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// MissingFields reports required fields that were absent
func MissingFields(fields ...string) *Error {
	return &Error{
		Kind:    Validation,
		Message: "missing required fields: " + strings.Join(fields, ", "),
		Fields:  fields,
	}
}

// InvalidFields reports fields present with unacceptable values
func InvalidFields(fields ...string) *Error {
	return &Error{
		Kind:    Validation,
		Message: "invalid fields: " + strings.Join(fields, ", "),
		Fields:  fields,
	}
}

// KindOf returns the kind of err, Internal when err is not classified
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err is classified as kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
