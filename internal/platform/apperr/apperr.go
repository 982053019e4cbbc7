// Package apperr defines the error taxonomy every component maps its
// failures to before they cross the HTTP boundary.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Kind classifies an error for boundary mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindInvalidTransition
)

// Error carries a kind, a caller-visible message and, for validation
// failures, the offending fields.
type Error struct {
	Kind    Kind
	Message string
	Fields  []string
	Err     error // wrapped cause, never shown to callers
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Validation reports missing or malformed input. Fields name what was wrong;
// they are surfaced to the caller.
func Validation(msg string, fields ...string) *Error {
	return &Error{Kind: KindValidation, Message: msg, Fields: fields}
}

// Unauthenticated reports a missing or unusable credential.
func Unauthenticated(msg string) *Error {
	return &Error{Kind: KindUnauthenticated, Message: msg}
}

// Forbidden reports an authorization denial. Security-sensitive paths use a
// single message for non-owner, wrong-state and non-existence so callers
// cannot probe for record existence.
func Forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Message: msg}
}

// NotFound is used only where existence leakage is not a concern.
func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

// InvalidTransition reports a lifecycle precondition failure.
func InvalidTransition(msg string) *Error {
	return &Error{Kind: KindInvalidTransition, Message: msg}
}

// Internal wraps an unexpected failure. The cause is kept for logs; callers
// only ever see a generic message.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "internal server error", Err: err}
}

// KindOf extracts the kind from err, defaulting to KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTP maps err to an *echo.HTTPError for the transport boundary. Validation
// errors include their field list; internal errors are reduced to a generic
// message.
func HTTP(err error) *echo.HTTPError {
	var e *Error
	if !errors.As(err, &e) {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	switch e.Kind {
	case KindValidation:
		if len(e.Fields) > 0 {
			return echo.NewHTTPError(http.StatusBadRequest, map[string]interface{}{
				"message": e.Message,
				"fields":  e.Fields,
			})
		}
		return echo.NewHTTPError(http.StatusBadRequest, e.Message)
	case KindUnauthenticated:
		return echo.NewHTTPError(http.StatusUnauthorized, e.Message)
	case KindForbidden:
		return echo.NewHTTPError(http.StatusForbidden, e.Message)
	case KindNotFound:
		return echo.NewHTTPError(http.StatusNotFound, e.Message)
	case KindInvalidTransition:
		return echo.NewHTTPError(http.StatusBadRequest, e.Message)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
}
