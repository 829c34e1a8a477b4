package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Code categorizes adapter errors.
type Code string

const (
	// CodeNetwork indicates the backend could not be reached.
	CodeNetwork Code = "NETWORK_ERROR"

	// CodeNotFound indicates the requested row does not exist.
	CodeNotFound Code = "NOT_FOUND"

	// CodeUnauthorized indicates the caller is not allowed to perform the operation.
	CodeUnauthorized Code = "UNAUTHORIZED"

	// CodeBadRequest indicates a malformed query or patch.
	CodeBadRequest Code = "BAD_REQUEST"

	// CodeRateLimit indicates too many requests; RetryAfter hints when to retry.
	CodeRateLimit Code = "RATE_LIMIT"

	// CodeTimeout indicates the operation did not finish in time.
	CodeTimeout Code = "TIMEOUT"
)

// SimulatedCodes are the codes the latency/error simulation draws from.
var SimulatedCodes = []Code{CodeNetwork, CodeNotFound, CodeUnauthorized, CodeBadRequest, CodeRateLimit}

// DefaultRetryAfter is the RetryAfter hint on rate-limit errors.
const DefaultRetryAfter = 60 * time.Second

// Status returns the HTTP-like status code for c.
func (c Code) Status() int {
	switch c {
	case CodeNetwork:
		return http.StatusServiceUnavailable
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeRateLimit:
		return http.StatusTooManyRequests
	case CodeTimeout:
		return http.StatusRequestTimeout
	}
	return http.StatusInternalServerError
}

// Error is the error type returned by every adapter operation.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Status is the HTTP-like status for Code.
	Status int

	// Message is a human-readable description.
	Message string

	// Op names the failed operation, e.g. "FetchRow".
	Op string

	// Details contains additional context (row id, field).
	Details map[string]string

	// RetryAfter is set on rate-limit errors.
	RetryAfter time.Duration

	// Simulated is true for errors injected by the simulation layer.
	// Simulated errors are transient regardless of Code.
	Simulated bool

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates an Error with the status derived from code.
func NewError(code Code, op, message string) *Error {
	e := &Error{
		Code:    code,
		Status:  code.Status(),
		Message: message,
		Op:      op,
	}
	if code == CodeRateLimit {
		e.RetryAfter = DefaultRetryAfter
	}
	return e
}

// NotFoundError reports a missing row.
func NotFoundError(op, id string) *Error {
	e := NewError(CodeNotFound, op, fmt.Sprintf("row %q not found", id))
	e.Details = map[string]string{"id": id}
	return e
}

// BadRequestError reports a rejected query or patch.
func BadRequestError(op string, err error) *Error {
	e := NewError(CodeBadRequest, op, err.Error())
	e.Err = err
	return e
}

// SourceError reports a failing backing source as a network error.
func SourceError(op string, err error) *Error {
	e := NewError(CodeNetwork, op, err.Error())
	e.Err = err
	return e
}

// TimeoutError reports an operation that exceeded its deadline.
func TimeoutError(op string, after time.Duration) *Error {
	e := NewError(CodeTimeout, op, fmt.Sprintf("operation timed out after %s", after))
	e.Details = map[string]string{"timeout": after.String()}
	return e
}

// AsError extracts an *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// CodeOf returns the Code in err's chain, or "" when there is none.
func CodeOf(err error) Code {
	if fe, ok := AsError(err); ok {
		return fe.Code
	}
	return ""
}

// StatusOf returns the status for err. Errors outside the taxonomy are 500.
func StatusOf(err error) int {
	if fe, ok := AsError(err); ok {
		return fe.Status
	}
	return http.StatusInternalServerError
}

// IsNotFound returns true if err is a NOT_FOUND error.
// Uses errors.As to handle wrapped errors.
func IsNotFound(err error) bool {
	return CodeOf(err) == CodeNotFound
}

// IsRateLimited returns true if err is a RATE_LIMIT error.
func IsRateLimited(err error) bool {
	return CodeOf(err) == CodeRateLimit
}

// IsRetryable reports whether repeating the operation might succeed.
//
// Simulated errors are transient. Deterministic NOT_FOUND, BAD_REQUEST and
// UNAUTHORIZED are not; context cancellation is never retried. Errors from
// outside the taxonomy (a failing source) are treated as transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	fe, ok := AsError(err)
	if !ok {
		return true
	}
	if fe.Simulated {
		return true
	}
	switch fe.Code {
	case CodeNetwork, CodeRateLimit, CodeTimeout:
		return true
	}
	return false
}
