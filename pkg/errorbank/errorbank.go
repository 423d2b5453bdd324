// Package errorbank carries categorised, reason-coded errors from the services to the transports.
package errorbank

import (
	"errors"
	"maps"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AppError is an error with a kind, a reason code and optional details for clients.
type AppError struct {
	kind    Kind
	reason  Reason
	message string
	details map[string]any
	cause   error
}

// Option configures an AppError.
type Option func(*AppError)

// WithCause records the underlying error. It is unwrapped but never shown to clients.
func WithCause(err error) Option {
	return func(e *AppError) { e.cause = err }
}

// WithReason replaces the kind's default reason.
func WithReason(reason Reason) Option {
	return func(e *AppError) { e.reason = reason }
}

// WithDetail adds one client-visible detail.
func WithDetail(key string, value any) Option {
	return WithDetails(map[string]any{key: value})
}

// WithDetails adds client-visible details.
func WithDetails(details map[string]any) Option {
	return func(e *AppError) {
		if len(details) == 0 {
			return
		}
		if e.details == nil {
			e.details = make(map[string]any, len(details))
		}
		maps.Copy(e.details, details)
	}
}

// New builds an AppError. An empty message becomes the kind's name.
func New(kind Kind, message string, opts ...Option) *AppError {
	e := &AppError{kind: kind, message: message}
	if e.message == "" {
		e.message = string(kind)
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.reason == "" {
		e.reason = kind.spec().reason
	}
	return e
}

func BadRequest(message string, opts ...Option) *AppError {
	return New(KindBadRequest, message, opts...)
}

func Unauthenticated(message string, opts ...Option) *AppError {
	return New(KindUnauthenticated, message, opts...)
}

func Forbidden(message string, opts ...Option) *AppError {
	return New(KindForbidden, message, opts...)
}

func NotFound(message string, opts ...Option) *AppError {
	return New(KindNotFound, message, opts...)
}

// Conflict reports a lost compare-and-set race; callers may reload and retry.
func Conflict(message string, opts ...Option) *AppError {
	return New(KindConflict, message, opts...)
}

func Unprocessable(message string, opts ...Option) *AppError {
	return New(KindUnprocessableEntity, message, opts...)
}

// Unavailable reports a collaborator failure the caller may retry.
func Unavailable(message string, opts ...Option) *AppError {
	return New(KindUnavailable, message, opts...)
}

func Internal(message string, opts ...Option) *AppError {
	return New(KindInternal, message, opts...)
}

func (e *AppError) Error() string {
	if e.cause == nil {
		return e.message
	}
	return e.message + ": " + e.cause.Error()
}

func (e *AppError) Unwrap() error { return e.cause }

func (e *AppError) Kind() Kind { return e.kind }

func (e *AppError) Reason() Reason { return e.reason }

func (e *AppError) Message() string { return e.message }

func (e *AppError) Details() map[string]any { return e.details }

// Retryable reports whether repeating the request may succeed.
func (e *AppError) Retryable() bool { return e.kind.spec().retryable }

// StatusCode is the HTTP status for the kind.
func (e *AppError) StatusCode() int { return e.kind.spec().status }

// GRPCCode is the gRPC code for the kind.
func (e *AppError) GRPCCode() codes.Code { return e.kind.spec().code }

// GRPCStatus lets status.FromError convert an AppError directly.
func (e *AppError) GRPCStatus() *status.Status {
	return status.New(e.GRPCCode(), e.message)
}

// From returns the AppError in err's chain, or wraps err as internal.
func From(err error) *AppError {
	if err == nil {
		return nil
	}
	if e, ok := as(err); ok {
		return e
	}
	return Internal("internal error", WithCause(err))
}

// IsKind reports whether err's chain holds an AppError of kind.
func IsKind(err error, kind Kind) bool {
	e, ok := as(err)
	return ok && e.kind == kind
}

// HasReason reports whether err's chain holds an AppError with reason.
func HasReason(err error, reason Reason) bool {
	e, ok := as(err)
	return ok && e.reason == reason
}

func as(err error) (*AppError, bool) {
	var e *AppError
	ok := errors.As(err, &e)
	return e, ok
}
