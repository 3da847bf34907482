// Package apperr defines the error taxonomy shared by every core component.
//
// Components raise one of these kinds; the HTTP boundary (internal/api) is
// the only place that translates a kind into a status code. Nothing below
// this package should import net/http.
package apperr

import (
	"errors"
	"fmt"
)

// Kind identifies which row of the error taxonomy an error belongs to.
type Kind string

const (
	KindQuerySyntax    Kind = "query_syntax"
	KindValidation     Kind = "validation"
	KindNotFound       Kind = "not_found"
	KindConflict       Kind = "conflict"
	KindSearchExec     Kind = "search_execution"
	KindBatchImport    Kind = "batch_import"
	KindConfiguration  Kind = "configuration"
	KindUnauthorized   Kind = "unauthorized"
	KindForbidden      Kind = "forbidden"
)

// Error is the common shape every core component returns. Message is safe
// to show a caller; Detail is for structured logs only and must never be
// echoed back over HTTP (spec §7: "user-visible messages never leak SQL
// fragments").
type Error struct {
	Kind    Kind
	Message string
	Detail  string
	Cause   error
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func newErr(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func QuerySyntax(message string, cause error) *Error { return newErr(KindQuerySyntax, message, cause) }
func Validation(message string) *Error                { return newErr(KindValidation, message, nil) }
func NotFound(message string) *Error                  { return newErr(KindNotFound, message, nil) }
func Conflict(message string) *Error                  { return newErr(KindConflict, message, nil) }
func SearchExecution(message string, cause error) *Error {
	return newErr(KindSearchExec, message, cause)
}
func BatchImport(message string) *Error   { return newErr(KindBatchImport, message, nil) }
func Configuration(message string, cause error) *Error {
	return newErr(KindConfiguration, message, cause)
}
func Unauthorized(message string) *Error { return newErr(KindUnauthorized, message, nil) }
func Forbidden(message string) *Error    { return newErr(KindForbidden, message, nil) }

// WithDetail attaches a non-user-facing detail string (e.g. the generated
// SQL and params) for structured logging at the call site.
func (e *Error) WithDetail(detail string) *Error {
	e.Detail = detail
	return e
}

// As reports whether err (or something it wraps) is an *Error, mirroring
// the standard library's errors.As ergonomics without forcing every
// caller to allocate a target pointer.
func As(err error) (*Error, bool) {
	var ae *Error
	ok := errors.As(err, &ae)
	return ae, ok
}
