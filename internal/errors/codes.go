package errors

import "net/http"

// ErrorCode represents the type of error.
type ErrorCode string

const (
	ErrNotFound      ErrorCode = "NOT_FOUND"
	ErrValidation    ErrorCode = "VALIDATION_ERROR"
	ErrBadRequest    ErrorCode = "BAD_REQUEST"
	ErrInternalError ErrorCode = "INTERNAL_ERROR"
	ErrConflict      ErrorCode = "CONFLICT"
	ErrServiceUnavail ErrorCode = "SERVICE_UNAVAILABLE"
	ErrTimeout       ErrorCode = "TIMEOUT"

	// Domain-specific kinds. Each maps to a distinct handling policy in
	// the extraction pipeline - see ErrorKind.
	//
	// Decode failures split into three distinguishable kinds instead of
	// one generic code, matching how ffprobe/ffmpeg actually fail: a
	// container/codec ffmpeg doesn't know, a stream that's present but
	// unreadable, and a failure to even read the bytes off disk.
	ErrUnsupportedFormat ErrorCode = "UNSUPPORTED_FORMAT"
	ErrCorrupt           ErrorCode = "CORRUPT_AUDIO"
	ErrIO                ErrorCode = "IO_ERROR"
	ErrAnalysis          ErrorCode = "ANALYSIS_ERROR"
	ErrTransport         ErrorCode = "TRANSPORT_ERROR"
	ErrPersist           ErrorCode = "PERSIST_ERROR"
	ErrCache             ErrorCode = "CACHE_ERROR"
	ErrInvariant         ErrorCode = "INVARIANT_VIOLATION"
)

// StatusCodeMap maps ErrorCode to HTTP status code, used only by the
// optional daemon HTTP surface (the pipeline itself never speaks HTTP
// status codes).
var StatusCodeMap = map[ErrorCode]int{
	ErrNotFound:       http.StatusNotFound,
	ErrValidation:     http.StatusUnprocessableEntity,
	ErrBadRequest:     http.StatusBadRequest,
	ErrInternalError:  http.StatusInternalServerError,
	ErrConflict:       http.StatusConflict,
	ErrServiceUnavail: http.StatusServiceUnavailable,
	ErrTimeout:        http.StatusGatewayTimeout,
	ErrUnsupportedFormat: http.StatusUnprocessableEntity,
	ErrCorrupt:        http.StatusUnprocessableEntity,
	ErrIO:             http.StatusInternalServerError,
	ErrAnalysis:       http.StatusUnprocessableEntity,
	ErrTransport:      http.StatusBadGateway,
	ErrPersist:        http.StatusInternalServerError,
	ErrCache:          http.StatusInternalServerError,
	ErrInvariant:      http.StatusInternalServerError,
}

// StatusCode returns the HTTP status code for this error code.
func (e ErrorCode) StatusCode() int {
	if code, ok := StatusCodeMap[e]; ok {
		return code
	}
	return http.StatusInternalServerError
}

// ErrorKind classifies how the pipeline must react to an error, independent
// of its HTTP representation.
type ErrorKind int

const (
	// KindPermanent errors dead-letter the job immediately: malformed
	// input, corrupt audio, audio too short to analyze.
	KindPermanent ErrorKind = iota
	// KindTransient errors are retried with backoff up to a job's retry
	// budget, then dead-lettered: remote transport failures, transient
	// database errors.
	KindTransient
	// KindSoft errors never fail the job: sidecar or cache write
	// failures are logged and the job still completes.
	KindSoft
	// KindInvariant errors indicate a bug, not bad input: a missing
	// fingerprint_version, or a NaN surviving sanitization. These are
	// always permanent and always logged with full detail.
	KindInvariant
)

// KindForCode returns the handling policy for a given ErrorCode.
func KindForCode(code ErrorCode) ErrorKind {
	switch code {
	case ErrUnsupportedFormat, ErrCorrupt, ErrIO, ErrAnalysis:
		return KindPermanent
	case ErrTransport, ErrPersist, ErrInternalError, ErrServiceUnavail, ErrTimeout:
		return KindTransient
	case ErrCache:
		return KindSoft
	case ErrInvariant:
		return KindInvariant
	default:
		return KindPermanent
	}
}
