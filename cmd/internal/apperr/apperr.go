// Package apperr is the closed error taxonomy shared by the session core and the HTTP surface.
//
// Every failure leaving the core is an *Error of one Kind. The HTTP status for a kind is
// defined in exactly one place (statusByKind).
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"authority/cmd/identity"
)

// Kind is the closed set of failure categories.
type Kind uint8

const (
	KindInternal Kind = iota
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindValidation
)

var kindNames = [...]string{
	KindInternal:     "internal",
	KindUnauthorized: "unauthorized",
	KindForbidden:    "forbidden",
	KindNotFound:     "not_found",
	KindValidation:   "validation",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "internal"
}

var statusByKind = map[Kind]int{
	KindUnauthorized: http.StatusUnauthorized,
	KindForbidden:    http.StatusForbidden,
	KindNotFound:     http.StatusNotFound,
	KindValidation:   http.StatusUnprocessableEntity,
	KindInternal:     http.StatusInternalServerError,
}

// Status returns the HTTP status for k. Unknown kinds map to 500.
func Status(k Kind) int {
	if s, ok := statusByKind[k]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Wire messages.
const (
	MsgInternal          = "Internal Server Error"
	MsgNotFound          = "Entity not found"
	MsgInvalidToken      = "An issue was found with the token provided"
	MsgCredentialsDiffer = "Name and password do not match"
	MsgRefreshDiffers    = "Refresh token do not match"
	MsgNameTaken         = "has already been taken"
)

// Error is a classified failure. Err is the internal cause: it is logged, never rendered.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string][]string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Message != "":
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case len(e.Fields) > 0:
		return fmt.Sprintf("%s: %v", e.Kind, e.Fields)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Status is shorthand for Status(e.Kind).
func (e *Error) Status() int { return Status(e.Kind) }

func Unauthorized(msg string) *Error { return &Error{Kind: KindUnauthorized, Message: msg} }

func Forbidden(msg string) *Error { return &Error{Kind: KindForbidden, Message: msg} }

func NotFound() *Error { return &Error{Kind: KindNotFound, Message: MsgNotFound} }

// InvalidToken is the single failure for any bearer/token problem.
func InvalidToken(cause error) *Error {
	return &Error{Kind: KindUnauthorized, Message: MsgInvalidToken, Err: cause}
}

// Validation reports field -> messages failures.
func Validation(fields map[string][]string) *Error {
	return &Error{Kind: KindValidation, Fields: fields}
}

// Field is a one-field Validation error.
func Field(field, msg string) *Error {
	return Validation(map[string][]string{field: {msg}})
}

// Internal wraps an unexpected cause.
func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Message: MsgInternal, Err: cause}
}

// From classifies any error. *Error passes through; identity not-found maps to NotFound;
// everything else is Internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	if identity.IsNotFound(err) {
		e := NotFound()
		e.Err = err
		return e
	}
	return Internal(err)
}

// Is reports whether err classifies as kind k.
func Is(err error, k Kind) bool {
	if err == nil {
		return false
	}
	return From(err).Kind == k
}
