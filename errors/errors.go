// Package errors carries the error taxonomy shared by every component of the
// gateway. Components attach a stable Code to failures they surface; the HTTP
// layer maps codes to status codes and the retry engine uses them to decide
// whether a provider call may be attempted again.
package errors

import (
	"errors"
	"fmt"
)

// Code identifies a failure class with a stable, client-visible name.
type Code string

// Input errors. Surfaced to the client, never retried.
const (
	CodeBadRequest          Code = "BAD_REQUEST"
	CodeValidation          Code = "VALIDATION_ERROR"
	CodeUnsupportedFileType Code = "UNSUPPORTED_FILE_TYPE"
	CodePayloadTooLarge     Code = "PAYLOAD_TOO_LARGE"
	CodeNotFound            Code = "NOT_FOUND"
)

// Content errors. Surfaced to the client; metadata sub-errors are swallowed.
const (
	CodeFileCorrupted     Code = "FILE_CORRUPTED"
	CodePasswordProtected Code = "PASSWORD_PROTECTED"
	CodeExtractionError   Code = "EXTRACTION_ERROR"
	CodeParserTimeout     Code = "PARSER_TIMEOUT"
)

// Upstream provider errors.
const (
	CodeAuthentication    Code = "AUTHENTICATION"
	CodeInsufficientQuota Code = "INSUFFICIENT_QUOTA"
	CodeRateLimit         Code = "RATE_LIMIT"
	CodeTimeout           Code = "TIMEOUT"
	CodeContextTooLarge   Code = "CONTEXT_TOO_LARGE"
	CodeInvalidRequest    Code = "INVALID_REQUEST"
	CodeInvalidModel      Code = "INVALID_MODEL"
	CodeAPIError          Code = "API_ERROR"
	CodeUnknown           Code = "UNKNOWN"
)

// Internal errors.
const (
	CodeInternal          Code = "INTERNAL_SERVER_ERROR"
	CodeVectorStore       Code = "VECTOR_STORE_ERROR"
	CodeEmbedding         Code = "EMBEDDING_ERROR"
	CodeRetrieval         Code = "RETRIEVAL_ERROR"
	CodeNoDocuments       Code = "NO_DOCUMENTS"
	CodeConfig            Code = "CONFIG_ERROR"
	CodeParsing           Code = "PARSING_ERROR"
	CodeAIService         Code = "AI_SERVICE_ERROR"
	CodeAIQuotaExceeded   Code = "AI_QUOTA_EXCEEDED"
	CodeRateLimitExceeded Code = "RATE_LIMIT_EXCEEDED"
	CodeRequestTimeout    Code = "REQUEST_TIMEOUT"
)

// Error is the typed error carried across component boundaries.
type Error struct {
	Code    Code
	Message string
	Details map[string]any
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on code so callers can compare against sentinel values.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// WithDetail attaches a key/value pair for the error envelope.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a typed error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a typed error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a typed error around a cause.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf extracts the taxonomy code from an error chain, or CodeUnknown.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// AsError returns the typed error in the chain, wrapping untyped errors as
// internal failures so the HTTP layer always has a code to render.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Code: CodeInternal, Message: "internal error", Err: err}
}

// nonRetryable is the set of error codes the retry engine must rethrow
// immediately.
var nonRetryable = map[Code]struct{}{
	CodeInvalidRequest:    {},
	CodeAuthentication:    {},
	CodeInvalidModel:      {},
	CodeContextTooLarge:   {},
	CodeValidation:        {},
	CodeInsufficientQuota: {},
}

// Retryable reports whether a provider call that failed with this code may be
// attempted again.
func Retryable(code Code) bool {
	_, blocked := nonRetryable[code]
	return !blocked
}

// HTTPStatus maps a taxonomy code onto the HTTP status the envelope uses.
func HTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeValidation, CodeInvalidRequest, CodeNoDocuments,
		CodeFileCorrupted, CodePasswordProtected, CodeParsing:
		return 400
	case CodeAuthentication:
		return 401
	case CodeInsufficientQuota, CodeAIQuotaExceeded:
		return 403
	case CodeNotFound:
		return 404
	case CodeTimeout, CodeRequestTimeout, CodeParserTimeout:
		return 408
	case CodePayloadTooLarge, CodeContextTooLarge:
		return 413
	case CodeUnsupportedFileType:
		return 415
	case CodeRateLimit, CodeRateLimitExceeded:
		return 429
	case CodeAPIError, CodeAIService:
		return 502
	default:
		return 500
	}
}
