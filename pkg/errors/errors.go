package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation        Code = "VALIDATION_ERROR"
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodeForbidden         Code = "FORBIDDEN"
	CodeNotFound          Code = "NOT_FOUND"
	CodeStateConflict     Code = "STATE_CONFLICT"
	CodeInsufficientStock Code = "INSUFFICIENT_STOCK"
	CodeInvalidSignature  Code = "INVALID_SIGNATURE"
	CodeInternal          Code = "INTERNAL_ERROR"
	CodeDependency        Code = "DEPENDENCY_ERROR"
)

// Metadata describes how a code surfaces over HTTP. ExposeMessage allows the
// caller's message to replace PublicMessage in the response body.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
	ExposeMessage  bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:        {HTTPStatus: http.StatusBadRequest, PublicMessage: "validation failed", DetailsAllowed: true, ExposeMessage: true},
	CodeUnauthorized:      {HTTPStatus: http.StatusUnauthorized, PublicMessage: "authentication required", ExposeMessage: true},
	CodeForbidden:         {HTTPStatus: http.StatusForbidden, PublicMessage: "access denied", ExposeMessage: true},
	CodeNotFound:          {HTTPStatus: http.StatusNotFound, PublicMessage: "resource not found", ExposeMessage: true},
	CodeStateConflict:     {HTTPStatus: http.StatusUnprocessableEntity, PublicMessage: "state transition disallowed", DetailsAllowed: true, ExposeMessage: true},
	CodeInsufficientStock: {HTTPStatus: http.StatusBadRequest, PublicMessage: "insufficient stock", DetailsAllowed: true, ExposeMessage: true},
	CodeInvalidSignature:  {HTTPStatus: http.StatusBadRequest, PublicMessage: "invalid signature", ExposeMessage: true},
	CodeInternal:          {HTTPStatus: http.StatusInternalServerError, Retryable: true, PublicMessage: "internal server error"},
	CodeDependency:        {HTTPStatus: http.StatusServiceUnavailable, Retryable: true, PublicMessage: "dependency unavailable", DetailsAllowed: true, ExposeMessage: true},
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// PublicMessage is the text safe to return to a client for this error.
func PublicMessage(e *Error) string {
	meta := MetadataFor(e.Code())
	if meta.ExposeMessage {
		if m := e.Message(); m != "" {
			return m
		}
	}
	return meta.PublicMessage
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
	status  int
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

// WithHTTPStatus overrides the code's default HTTP status for one response.
func (e *Error) WithHTTPStatus(status int) *Error {
	if e == nil {
		return nil
	}
	e.status = status
	return e
}

// HTTPStatus is the status an error is answered with: the override when set,
// otherwise the code's metadata.
func HTTPStatus(e *Error) int {
	if e != nil && e.status != 0 {
		return e.status
	}
	return MetadataFor(e.Code()).HTTPStatus
}

// Error includes the cause so wrapped driver errors reach the logs.
func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.cause != nil:
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	default:
		return fmt.Sprintf("%s: %s", e.code, e.message)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is reports whether err carries the provided code anywhere in its chain.
func Is(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}
