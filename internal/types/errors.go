package types

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Error code constants. Handlers and core packages MUST use these instead of
// hardcoded strings.
const (
	// Validation (400)
	ErrCodeValidationMissingField   ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidBody    ErrorCode = "validation_invalid_body"
	ErrCodeValidationBatchSize      ErrorCode = "validation_batch_size_exceeded"
	ErrCodeValidationInvalidHorizon ErrorCode = "validation_invalid_horizon"

	// Auth (401)
	ErrCodeAuthTokenMissing ErrorCode = "auth_token_missing"
	ErrCodeAuthTokenInvalid ErrorCode = "auth_token_invalid"

	// Configuration (400 when caused by request input, fatal at startup)
	ErrCodeConfigInvalid ErrorCode = "config_invalid"

	// Feature pipeline (422)
	ErrCodeFeatureInvalidSeries ErrorCode = "feature_invalid_series"
	ErrCodeInsufficientHistory  ErrorCode = "insufficient_history"

	// Not Found (404)
	ErrCodeNotFoundModel       ErrorCode = "not_found_model"
	ErrCodeNotFoundDecisionLog ErrorCode = "not_found_decision_log"

	// Forecast (502)
	ErrCodeForecastModelUnavailable ErrorCode = "forecast_model_unavailable"
	ErrCodeForecastInferenceFailed  ErrorCode = "forecast_inference_failed"

	// Internal/Upstream (500/502)
	ErrCodeInternalDB           ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected   ErrorCode = "internal_unexpected_error"
	ErrCodeInternalModelCorrupt ErrorCode = "internal_model_corruption"
	ErrCodeUpstreamModelStore   ErrorCode = "upstream_model_store_unavailable"
	ErrCodeUpstreamInference    ErrorCode = "upstream_inference_unavailable"
	ErrCodeUpstreamUnavailable  ErrorCode = "upstream_unavailable"
	ErrCodeUpstreamRateLimited  ErrorCode = "upstream_rate_limited"
	ErrCodeUpstreamQueue        ErrorCode = "upstream_queue_unavailable"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Returns 500 for unrecognized error codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest // 400
	case strings.HasPrefix(s, "auth_"):
		return http.StatusUnauthorized // 401
	case strings.HasPrefix(s, "config_"):
		return http.StatusBadRequest // 400
	case strings.HasPrefix(s, "feature_"), s == string(ErrCodeInsufficientHistory):
		return http.StatusUnprocessableEntity // 422
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound // 404
	case s == string(ErrCodeUpstreamRateLimited):
		return http.StatusTooManyRequests // 429
	case strings.HasPrefix(s, "forecast_"), strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway // 502
	case strings.HasPrefix(s, "internal_"):
		return http.StatusInternalServerError // 500
	default:
		return http.StatusInternalServerError // 500
	}
}

// AppError is the standard application error type.
// Core errors (FeatureError, InsufficientHistory, ForecastError,
// ConfigurationError) are AppErrors distinguished by Code.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy of the error with the provided details merged in.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError carrying structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}

// CodeOf returns the code of the first AppError in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// HasCode reports whether err's chain contains an AppError with the given code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		var appErr *AppError
		if !errors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Err
	}
	return false
}

// IsForecastError reports whether err belongs to the forecast failure family
// (missing or unusable model handle, or failed inference).
func IsForecastError(err error) bool {
	switch CodeOf(err) {
	case ErrCodeForecastModelUnavailable, ErrCodeForecastInferenceFailed,
		ErrCodeUpstreamInference, ErrCodeInternalModelCorrupt:
		return true
	}
	return false
}

// ConfigError builds a ConfigurationError.
func ConfigError(format string, args ...any) *AppError {
	return NewAppError(ErrCodeConfigInvalid, fmt.Sprintf(format, args...), nil)
}
