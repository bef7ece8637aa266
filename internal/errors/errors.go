// Package errors provides a typed error taxonomy shared by the analyzer,
// cache, repository, and pipeline packages. Every error that can change
// a job's fate carries one of these ErrorCode values so the pipeline can
// dispatch on it without string matching.
package errors

import (
	"encoding/json"
	"fmt"
)

// APIError is a structured, typed error. It implements error and carries
// enough detail for both the dead-letter queue and an optional HTTP
// surface to render it without re-deriving the reason.
type APIError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Field   string    `json:"field,omitempty"`
	Details string    `json:"details,omitempty"`
	Status  int       `json:"-"`
}

func (e *APIError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// MarshalJSON customizes JSON encoding.
func (e *APIError) MarshalJSON() ([]byte, error) {
	type Alias APIError
	return json.Marshal(&struct{ *Alias }{Alias: (*Alias)(e)})
}

// WithDetails adds additional, free-form detail to an error.
func (e *APIError) WithDetails(details string) *APIError {
	e.Details = details
	return e
}

// Kind returns the handling policy for this error.
func (e *APIError) Kind() ErrorKind {
	return KindForCode(e.Code)
}

func newError(code ErrorCode, message string) *APIError {
	return &APIError{Code: code, Message: message, Status: code.StatusCode()}
}

// UnsupportedFormat wraps a failure where ffprobe/ffmpeg don't recognize
// the container or codec at all. Always permanent.
func UnsupportedFormat(message string) *APIError {
	return newError(ErrUnsupportedFormat, message)
}

// Corrupt wraps a failure where the format is recognized but the stream
// itself is unreadable - truncated, malformed, or missing an audio
// stream entirely. Always permanent.
func Corrupt(message string) *APIError {
	return newError(ErrCorrupt, message)
}

// IO wraps a failure to read the file's bytes at all - missing file,
// permission denied, or ffmpeg/ffprobe themselves failing to start.
// Always permanent: the pipeline does not retry a decode.
func IO(message string) *APIError {
	return newError(ErrIO, message)
}

// Analysis wraps a failure during feature extraction: audio too short,
// or some other condition that sanitization cannot paper over. Always
// permanent.
func Analysis(message string) *APIError {
	return newError(ErrAnalysis, message)
}

// Transport wraps a failure talking to the remote analyzer. Transient by
// kind; the pipeline does not retry the remote call but falls back to
// local analysis within the same attempt.
func Transport(message string) *APIError {
	return newError(ErrTransport, message)
}

// Persist wraps a failure writing to the fingerprint repository.
// Transient up to the job's retry budget, then the job dead-letters.
func Persist(message string) *APIError {
	return newError(ErrPersist, message)
}

// Cache wraps a failure in the sidecar or persistent cache tier. Always
// soft: logged, never fails the owning job.
func Cache(message string) *APIError {
	return newError(ErrCache, message)
}

// Invariant wraps a violation of a documented data-model invariant -
// e.g. a fingerprint missing its version, or a NaN that survived
// sanitization. These indicate a bug in the analyzer or repository
// boundary, not bad input, and are always permanent.
func Invariant(message string) *APIError {
	return newError(ErrInvariant, message)
}

// NotFound creates a NOT_FOUND error.
func NotFound(resource string) *APIError {
	return newError(ErrNotFound, fmt.Sprintf("%s not found", resource))
}

// ValidationError creates a VALIDATION_ERROR.
func ValidationError(field, message string) *APIError {
	e := newError(ErrValidation, message)
	e.Field = field
	return e
}

// InternalError creates an INTERNAL_ERROR.
func InternalError(message string) *APIError {
	return newError(ErrInternalError, message)
}

// ServiceUnavailable creates a SERVICE_UNAVAILABLE error.
func ServiceUnavailable(service string) *APIError {
	return newError(ErrServiceUnavail, fmt.Sprintf("%s is temporarily unavailable", service))
}

// Timeout creates a TIMEOUT error.
func Timeout(operation string) *APIError {
	return newError(ErrTimeout, fmt.Sprintf("%s timed out", operation))
}
