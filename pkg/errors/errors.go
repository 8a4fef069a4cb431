package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation  Code = "VALIDATION_ERROR"
	CodeNotFound    Code = "NOT_FOUND"
	CodeConflict    Code = "CONFLICT"
	CodeIdempotency Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit   Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal    Code = "INTERNAL_ERROR"
	CodeDependency  Code = "DEPENDENCY_ERROR"

	// Sync pipeline taxonomy.
	CodeConfiguration Code = "CONFIGURATION_ERROR"
	CodeSignature     Code = "SIGNATURE_INVALID"
	CodeTransientAPI  Code = "TRANSIENT_API_ERROR"
	CodePermanentAPI  Code = "PERMANENT_API_ERROR"
	CodeData          Code = "DATA_ERROR"
	CodePersistence   Code = "PERSISTENCE_ERROR"
)

// Metadata is how a code surfaces over HTTP. ExposeMessage lets the error's
// own message replace PublicMessage; it is only set for codes whose messages
// describe the caller's input rather than internals.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
	ExposeMessage  bool
}

const (
	retryable = 1 << iota
	details
	expose
)

func meta(status int, public string, flags int) Metadata {
	return Metadata{
		HTTPStatus:     status,
		PublicMessage:  public,
		Retryable:      flags&retryable != 0,
		DetailsAllowed: flags&details != 0,
		ExposeMessage:  flags&expose != 0,
	}
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:  meta(http.StatusBadRequest, "validation failed", details|expose),
	CodeNotFound:    meta(http.StatusNotFound, "resource not found", expose),
	CodeConflict:    meta(http.StatusConflict, "conflict detected", expose),
	CodeIdempotency: meta(http.StatusConflict, "idempotency key reused", details|expose),
	CodeRateLimit:   meta(http.StatusTooManyRequests, "rate limit exceeded", expose),
	CodeInternal:    meta(http.StatusInternalServerError, "internal server error", retryable),
	CodeDependency:  meta(http.StatusServiceUnavailable, "dependency unavailable", retryable|details),

	CodeConfiguration: meta(http.StatusInternalServerError, "service misconfigured", 0),
	CodeSignature:     meta(http.StatusForbidden, "signature verification failed", 0),
	CodeTransientAPI:  meta(http.StatusBadGateway, "upstream temporarily unavailable", retryable),
	CodePermanentAPI:  meta(http.StatusBadGateway, "upstream rejected the request", 0),
	CodeData:          meta(http.StatusUnprocessableEntity, "order payload unusable", details|expose),
	CodePersistence:   meta(http.StatusInternalServerError, "failed to persist order", retryable),
}

// MetadataFor falls back to CodeInternal for codes it does not know.
func MetadataFor(code Code) Metadata {
	if m, ok := metadataByCode[code]; ok {
		return m
	}
	return metadataByCode[CodeInternal]
}

// Error is a coded error. The code decides the HTTP mapping and retry
// behaviour; message and details are what the caller may see.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
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

func (e *Error) WithDetails(d any) *Error {
	if e != nil {
		e.details = d
	}
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// CodeOf returns the typed code carried by err, or CodeInternal for untyped errors.
func CodeOf(err error) Code {
	return As(err).Code()
}

// IsCode reports whether the outermost typed error in err carries code.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}

// Retryable reports whether the code carried by err is worth retrying.
// Untyped errors count as internal, hence retryable.
func Retryable(err error) bool {
	return MetadataFor(CodeOf(err)).Retryable
}
