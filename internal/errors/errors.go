package errors

import (
	stderrors "errors"
	"fmt"
)

// FuseError is the structured error type for docfuse.
type FuseError struct {
	// Code is the unique error code (e.g., "ERR_506_INDEX_NOT_READY").
	Code string

	// Message is the human-readable error message.
	Message string

	Category Category
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable hint shown by the CLI.
	Suggestion string
}

// Error implements the error interface.
func (e *FuseError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *FuseError) Unwrap() error {
	return e.Cause
}

// Is matches by code, so errors.Is(err, ErrIndexNotReady) works for any
// FuseError created with ErrCodeIndexNotReady.
func (e *FuseError) Is(target error) bool {
	if t, ok := target.(*FuseError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *FuseError) WithDetail(key, value string) *FuseError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *FuseError) WithSuggestion(suggestion string) *FuseError {
	e.Suggestion = suggestion
	return e
}

// New creates a FuseError. Category, severity and the retryable flag are
// derived from the code.
func New(code string, message string, cause error) *FuseError {
	return &FuseError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Newf is New with a formatted message and no cause.
func Newf(code string, format string, args ...any) *FuseError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// Wrap creates a FuseError from an existing error, reusing its message.
func Wrap(code string, err error) *FuseError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// InvalidParameter reports a malformed parameter such as a chunk size.
func InvalidParameter(format string, args ...any) *FuseError {
	return Newf(ErrCodeInvalidParameter, format, args...)
}

// IndexNotReady reports a query issued against an index that was never built.
func IndexNotReady(index string) *FuseError {
	return Newf(ErrCodeIndexNotReady, "%s index has not been built", index).
		WithSuggestion("run `docfuse ingest` first")
}

// DimensionMismatch reports vectors of inconsistent length.
func DimensionMismatch(expected, got int) *FuseError {
	return Newf(ErrCodeDimensionMismatch, "vector dimension mismatch: expected %d, got %d", expected, got).
		WithDetail("expected", fmt.Sprint(expected)).
		WithDetail("got", fmt.Sprint(got))
}

// CountMismatch reports a different number of ids and vectors.
func CountMismatch(ids, vectors int) *FuseError {
	return Newf(ErrCodeCountMismatch, "%d chunk ids but %d vectors", ids, vectors)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *FuseError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// IOError creates an I/O-related error.
func IOError(message string, cause error) *FuseError {
	return New(ErrCodeFileNotFound, message, cause)
}

// NetworkError creates a retryable network error.
func NetworkError(message string, cause error) *FuseError {
	return New(ErrCodeNetworkUnavailable, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *FuseError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable reports whether err is a FuseError flagged retryable.
func IsRetryable(err error) bool {
	var fe *FuseError
	if stderrors.As(err, &fe) {
		return fe.Retryable
	}
	return false
}

// GetCode extracts the error code, or "" if err is not a FuseError.
func GetCode(err error) string {
	var fe *FuseError
	if stderrors.As(err, &fe) {
		return fe.Code
	}
	return ""
}
