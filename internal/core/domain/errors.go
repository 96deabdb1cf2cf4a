package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUpstreamTimeout indicates an embedding or vector-search call
	// exceeded its time budget. Retryable by the caller.
	ErrUpstreamTimeout = errors.New("upstream call timed out")

	// ErrUpstreamFailure indicates an external service returned an error
	// or a malformed payload
	ErrUpstreamFailure = errors.New("upstream service failure")

	// ErrDataIntegrity indicates inconsistent chunk/embedding bookkeeping,
	// such as mismatched vector dimensions. Always fatal.
	ErrDataIntegrity = errors.New("data integrity violation")

	// ErrServiceUnavailable indicates a required AI service is not configured
	ErrServiceUnavailable = errors.New("service unavailable")
)

// ValidationCode identifies why an upload was rejected.
type ValidationCode string

const (
	CodeInvalidMediaType  ValidationCode = "INVALID_MEDIA_TYPE"
	CodeFileTooLarge      ValidationCode = "FILE_TOO_LARGE"
	CodeInvalidHeader     ValidationCode = "INVALID_HEADER"
	CodeParseError        ValidationCode = "PARSE_ERROR"
	CodeTooFewPages       ValidationCode = "TOO_FEW_PAGES"
	CodeTooManyPages      ValidationCode = "TOO_MANY_PAGES"
	CodeNoExtractableText ValidationCode = "NO_EXTRACTABLE_TEXT"
	CodeTooManyChunks     ValidationCode = "TOO_MANY_CHUNKS"
)

// ValidationError reports a user-correctable upload problem. These are
// safe to surface verbatim.
type ValidationError struct {
	Code    ValidationCode
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// HTTPStatus maps the failure class to a response status. Size and count
// overages are 413, everything else is a plain bad request.
func (e *ValidationError) HTTPStatus() int {
	switch e.Code {
	case CodeFileTooLarge, CodeTooManyPages, CodeTooManyChunks:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusBadRequest
	}
}

// NewValidationError creates a ValidationError with a formatted message.
func NewValidationError(code ValidationCode, format string, args ...any) *ValidationError {
	return &ValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}
