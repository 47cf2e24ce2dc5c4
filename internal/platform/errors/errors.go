// Package errors provides structured HTTP errors with status code mapping.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType is the category of an error, used for metrics and responses.
type ErrorType string

const (
	TypeValidation ErrorType = "validation"
	TypeNotFound   ErrorType = "not_found"
	TypeConflict   ErrorType = "conflict"
	TypeRateLimit  ErrorType = "rate_limit"
	TypeInternal   ErrorType = "internal"
	TypeExternal   ErrorType = "external"
)

// Error is a structured error with a client-safe message. Cause is logged,
// never sent.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Fields  map[string]any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// statusOf maps each error type to its response status.
var statusOf = map[ErrorType]int{
	TypeValidation: http.StatusBadRequest,
	TypeNotFound:   http.StatusNotFound,
	TypeConflict:   http.StatusConflict,
	TypeRateLimit:  http.StatusTooManyRequests,
	TypeInternal:   http.StatusInternalServerError,
	TypeExternal:   http.StatusBadGateway,
}

// HTTPStatus is the response status for the error; unknown types are a 500.
func (e *Error) HTTPStatus() int {
	if code, ok := statusOf[e.Type]; ok {
		return code
	}
	return http.StatusInternalServerError
}

func newError(t ErrorType, message string, cause error) *Error {
	return &Error{Type: t, Message: message, Cause: cause}
}

func Validation(message string) *Error  { return newError(TypeValidation, message, nil) }
func NotFound(message string) *Error    { return newError(TypeNotFound, message, nil) }
func Conflict(message string) *Error    { return newError(TypeConflict, message, nil) }
func RateLimited(message string) *Error { return newError(TypeRateLimit, message, nil) }

// Internal hides cause from the client; it only reaches the logs.
func Internal(message string, cause error) *Error { return newError(TypeInternal, message, cause) }

// External reports a failing upstream dependency.
func External(message string, cause error) *Error { return newError(TypeExternal, message, cause) }

// With attaches a field that is returned to the client and logged (chainable).
func (e *Error) With(key string, value any) *Error {
	if e.Fields == nil {
		e.Fields = make(map[string]any)
	}
	e.Fields[key] = value
	return e
}

// Response is the JSON body of an error response.
type Response struct {
	Error  string         `json:"error"`
	Type   ErrorType      `json:"type"`
	Fields map[string]any `json:"fields,omitempty"`
}

func (e *Error) ToResponse() Response {
	return Response{Error: e.Message, Type: e.Type, Fields: e.Fields}
}

// AsStructured returns err as an *Error, wrapping unknown errors as internal.
func AsStructured(err error) *Error {
	if err == nil {
		return nil
	}

	var structured *Error
	if errors.As(err, &structured) {
		return structured
	}

	return Internal("internal server error", err)
}

// FromHTTPStatus classifies a status code produced outside this package,
// such as an echo.HTTPError.
func FromHTTPStatus(code int) ErrorType {
	switch code {
	case http.StatusMethodNotAllowed:
		return TypeNotFound
	case http.StatusServiceUnavailable:
		return TypeExternal
	}
	for t, c := range statusOf {
		if c == code {
			return t
		}
	}
	return TypeInternal
}
