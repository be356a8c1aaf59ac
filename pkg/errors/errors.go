package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"

	CodeInvalidTransition      Code = "INVALID_TRANSITION"
	CodeRefundWindowClosed     Code = "REFUND_WINDOW_CLOSED"
	CodeRefundAmountInvalid    Code = "REFUND_AMOUNT_INVALID"
	CodeRefundAlreadyPending   Code = "REFUND_ALREADY_PENDING"
	CodeRefundNotRejected      Code = "REFUND_NOT_REJECTED"
	CodeDisputeAlreadyExists   Code = "DISPUTE_ALREADY_EXISTS"
	CodeConcurrentModification Code = "CONCURRENT_MODIFICATION"
)

// Metadata is how a code surfaces over HTTP. Client-facing codes show the
// error's own message; the rest only ever show PublicMessage.
type Metadata struct {
	HTTPStatus    int
	Retryable     bool
	PublicMessage string
	ShowMessage   bool
	ShowDetails   bool
}

func client(status int, public string) Metadata {
	return Metadata{HTTPStatus: status, PublicMessage: public, ShowMessage: true}
}

func server(status int, public string) Metadata {
	return Metadata{HTTPStatus: status, PublicMessage: public, Retryable: true}
}

func (m Metadata) withDetails() Metadata {
	m.ShowDetails = true
	return m
}

func (m Metadata) retryable() Metadata {
	m.Retryable = true
	return m
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:    client(http.StatusBadRequest, "validation failed").withDetails(),
	CodeUnauthorized:  client(http.StatusUnauthorized, "authentication required"),
	CodeForbidden:     client(http.StatusForbidden, "access denied"),
	CodeNotFound:      client(http.StatusNotFound, "resource not found"),
	CodeConflict:      client(http.StatusConflict, "conflict detected"),
	CodeStateConflict: client(http.StatusUnprocessableEntity, "state transition disallowed").withDetails(),
	CodeIdempotency:   client(http.StatusConflict, "idempotency key reused").withDetails(),
	CodeRateLimit:     client(http.StatusTooManyRequests, "rate limit exceeded"),
	CodeInternal:      server(http.StatusInternalServerError, "internal server error"),
	CodeDependency:    server(http.StatusServiceUnavailable, "dependency unavailable").withDetails(),

	CodeInvalidTransition:      client(http.StatusConflict, "action not allowed in current order state").withDetails(),
	CodeRefundWindowClosed:     client(http.StatusUnprocessableEntity, "refund window closed").withDetails(),
	CodeRefundAmountInvalid:    client(http.StatusUnprocessableEntity, "refund amount invalid").withDetails(),
	CodeRefundAlreadyPending:   client(http.StatusConflict, "refund already pending").withDetails(),
	CodeRefundNotRejected:      client(http.StatusUnprocessableEntity, "refund has not been rejected").withDetails(),
	CodeDisputeAlreadyExists:   client(http.StatusConflict, "dispute already exists").withDetails(),
	CodeConcurrentModification: client(http.StatusConflict, "order was modified concurrently").retryable(),
}

// MetadataFor falls back to CodeInternal for unknown codes.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
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

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

// NotParty reports an actor acting on an order they are not a party to. The
// kind stays UNAUTHORIZED; it is served as 403 because the caller is
// authenticated.
func NotParty(message string) *Error {
	return &Error{code: CodeUnauthorized, message: message, status: http.StatusForbidden}
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

// HTTPStatus is the status override when one is set, otherwise the code's default.
func (e *Error) HTTPStatus() int {
	if e != nil && e.status != 0 {
		return e.status
	}
	return MetadataFor(e.Code()).HTTPStatus
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

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// CodeOf returns the code carried by err, or CodeInternal when err is untyped.
func CodeOf(err error) Code {
	if typed := As(err); typed != nil {
		return typed.Code()
	}
	return CodeInternal
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
