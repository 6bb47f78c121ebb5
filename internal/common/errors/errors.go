package errors

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrorCode is the stable, user-visible identifier of a failure.
type ErrorCode string

const (
	ErrCodeEmptyResponse       ErrorCode = "EMPTY_RESPONSE"
	ErrCodeUnparseableResponse ErrorCode = "UNPARSEABLE_RESPONSE"
	ErrCodeTruncatedPlan       ErrorCode = "TRUNCATED_PLAN"
	ErrCodeRetryExhausted      ErrorCode = "RETRY_EXHAUSTED"

	ErrCodeUnsafeQuery     ErrorCode = "UNSAFE_QUERY"
	ErrCodeExecutionFailed ErrorCode = "EXECUTION_FAILED"

	ErrCodeSandboxFailed ErrorCode = "SANDBOX_FAILED"

	ErrCodeLLMRequestFailed ErrorCode = "LLM_REQUEST_FAILED"
	ErrCodeLLMTimeout       ErrorCode = "LLM_TIMEOUT"
	ErrCodeLLMUnauthorized  ErrorCode = "LLM_UNAUTHORIZED"
	ErrCodeLLMRateLimited   ErrorCode = "LLM_RATE_LIMITED"

	ErrCodeStoreUnavailable    ErrorCode = "STORE_UNAVAILABLE"
	ErrCodeSchemaIntrospection ErrorCode = "SCHEMA_INTROSPECTION_FAILED"
	ErrCodeIngestFailed        ErrorCode = "INGEST_FAILED"
	ErrCodeInvalidInput        ErrorCode = "INVALID_INPUT"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata attaches a diagnostic key and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

func NewEmptyResponseError() *StandardError {
	return newError(ErrCodeEmptyResponse, "The language model returned an empty response", "", true)
}

func NewUnparseableResponseError(preview string) *StandardError {
	return newError(ErrCodeUnparseableResponse, "The language model response contained neither a JSON plan nor SQL", preview, true)
}

func NewTruncatedPlanError(reason string) *StandardError {
	return newError(ErrCodeTruncatedPlan, "The language model returned an incomplete query", reason, true)
}

// NewRetryExhaustedError reports that both plan attempts failed. preview is the
// bounded tail of the last raw model response.
func NewRetryExhaustedError(attempts int, cause error, preview string) *StandardError {
	details := ""
	if cause != nil {
		details = cause.Error()
	}
	return newError(ErrCodeRetryExhausted, "Could not obtain a usable query plan from the language model", details, false).
		WithMetadata("attempts", attempts).
		WithMetadata("lastResponse", preview)
}

func NewUnsafeQueryError(reason string) *StandardError {
	return newError(ErrCodeUnsafeQuery, reason, "", false)
}

func NewExecutionFailedError(err error) *StandardError {
	return newError(ErrCodeExecutionFailed, "The data store rejected the query", err.Error(), false)
}

// NewSandboxFailedError is never surfaced as a request failure; it is embedded
// in the answer so the caller can show the code and the raw rows.
func NewSandboxFailedError(err error) *StandardError {
	return newError(ErrCodeSandboxFailed, "The visualization could not be rendered", err.Error(), false)
}

func NewLLMRequestFailedError(err error) *StandardError {
	return newError(ErrCodeLLMRequestFailed, "Language model request failed", err.Error(), true)
}

func NewLLMTimeoutError() *StandardError {
	return newError(ErrCodeLLMTimeout, "Language model request timed out", "", true)
}

func NewLLMUnauthorizedError(err error) *StandardError {
	return newError(ErrCodeLLMUnauthorized, "Language model credentials were rejected", err.Error(), false)
}

func NewLLMRateLimitedError(err error) *StandardError {
	return newError(ErrCodeLLMRateLimited, "Language model rate limit reached", err.Error(), true)
}

func NewStoreUnavailableError(err error) *StandardError {
	return newError(ErrCodeStoreUnavailable, "Data store is unavailable", err.Error(), true)
}

func NewSchemaIntrospectionError(err error) *StandardError {
	return newError(ErrCodeSchemaIntrospection, "Could not read the table schema", err.Error(), true)
}

func NewIngestFailedError(err error) *StandardError {
	return newError(ErrCodeIngestFailed, "Could not load the uploaded file", err.Error(), false)
}

func NewInvalidInputError(details string) *StandardError {
	return newError(ErrCodeInvalidInput, "Invalid input", details, false)
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false)
}

func IsRetryableErrorCode(code ErrorCode) bool {
	switch code {
	case ErrCodeLLMRequestFailed,
		ErrCodeLLMTimeout,
		ErrCodeLLMRateLimited,
		ErrCodeStoreUnavailable,
		ErrCodeSchemaIntrospection:
		return true
	default:
		return false
	}
}

// HTTPStatus maps an error code onto the status the API answers with.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeInvalidInput, ErrCodeIngestFailed:
		return http.StatusBadRequest
	case ErrCodeUnsafeQuery, ErrCodeExecutionFailed:
		return http.StatusUnprocessableEntity
	case ErrCodeEmptyResponse, ErrCodeUnparseableResponse, ErrCodeTruncatedPlan,
		ErrCodeRetryExhausted, ErrCodeLLMRequestFailed, ErrCodeLLMUnauthorized:
		return http.StatusBadGateway
	case ErrCodeLLMTimeout:
		return http.StatusGatewayTimeout
	case ErrCodeLLMRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeStoreUnavailable, ErrCodeSchemaIntrospection:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "RESPONSE") || strings.Contains(codeStr, "PLAN") || strings.Contains(codeStr, "RETRY"):
		return "PLANNING"
	case strings.Contains(codeStr, "LLM"):
		return "AI"
	case strings.Contains(codeStr, "QUERY") || strings.Contains(codeStr, "EXECUTION"):
		return "DATABASE"
	case strings.Contains(codeStr, "STORE") || strings.Contains(codeStr, "SCHEMA") || strings.Contains(codeStr, "INGEST"):
		return "STORAGE"
	case strings.Contains(codeStr, "SANDBOX"):
		return "VISUALIZATION"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
