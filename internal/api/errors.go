// errors.go - Structured error handling for API responses
package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Messages returned to the frontend, which matches on some of them.
const (
	msgParseFailed     = "Failed to parse AI response"
	msgUnexpected      = "An unexpected error occurred"
	msgAllowedTypeList = "Only JPEG, PNG, WEBP, HEIC, and PDF are allowed."
)

// APIError represents a structured API error response
type APIError struct {
	Status int    `json:"-"`
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

// Error constructors for consistent error handling

// NewBadRequestError creates a 400 Bad Request error
func NewBadRequestError(detail string) *APIError {
	return &APIError{
		Status: http.StatusBadRequest,
		Code:   "BAD_REQUEST",
		Detail: detail,
	}
}

// NewValidationError creates a 422 error for a missing or malformed field
func NewValidationError(field string) *APIError {
	return &APIError{
		Status: http.StatusUnprocessableEntity,
		Code:   "VALIDATION_ERROR",
		Detail: fmt.Sprintf("field required: %s", field),
	}
}

// NewNotFoundError creates a 404 Not Found error
func NewNotFoundError(resource string, id string) *APIError {
	return &APIError{
		Status: http.StatusNotFound,
		Code:   "NOT_FOUND",
		Detail: fmt.Sprintf("%s not found: %s", resource, id),
	}
}

// NewPayloadTooLargeError creates a 413 error naming the size limit in MiB
func NewPayloadTooLargeError(maxBytes int64) *APIError {
	return &APIError{
		Status: http.StatusRequestEntityTooLarge,
		Code:   "FILE_TOO_LARGE",
		Detail: fmt.Sprintf("File too large. Maximum size is %dMB.", maxBytes>>20),
	}
}

// NewUnsupportedMediaTypeError creates a 415 error for a rejected upload type
func NewUnsupportedMediaTypeError(contentType string) *APIError {
	return &APIError{
		Status: http.StatusUnsupportedMediaType,
		Code:   "UNSUPPORTED_MEDIA_TYPE",
		Detail: fmt.Sprintf("Invalid file type: %s. %s", contentType, msgAllowedTypeList),
	}
}

// NewRateLimitError creates a 429 Too Many Requests error
func NewRateLimitError() *APIError {
	return &APIError{
		Status: http.StatusTooManyRequests,
		Code:   "RATE_LIMITED",
		Detail: "Rate limit exceeded. Please try again later.",
	}
}

// NewInternalError creates a 500 Internal Server Error
func NewInternalError(detail string) *APIError {
	return &APIError{
		Status: http.StatusInternalServerError,
		Code:   "INTERNAL_ERROR",
		Detail: detail,
	}
}

// NewServiceUnavailableError creates a 503 Service Unavailable error
func NewServiceUnavailableError(detail string) *APIError {
	return &APIError{
		Status: http.StatusServiceUnavailable,
		Code:   "SERVICE_UNAVAILABLE",
		Detail: detail,
	}
}

// ErrorHandlerConfig controls how unexpected errors are rendered.
type ErrorHandlerConfig struct {
	// MaxFileSize is quoted when the body limit middleware rejects a request.
	MaxFileSize int64
	// ExposeDetails returns raw error text for unexpected errors.
	ExposeDetails bool
	Logger        *slog.Logger
}

// NewErrorHandler returns the Echo error handler
// Usage: e.HTTPErrorHandler = api.NewErrorHandler(cfg)
func NewErrorHandler(cfg ErrorHandlerConfig) echo.HTTPErrorHandler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var apiErr *APIError
		var httpErr *echo.HTTPError

		switch {
		case errors.As(err, &apiErr):
		case errors.As(err, &httpErr):
			apiErr = fromHTTPError(httpErr, cfg.MaxFileSize)
		default:
			apiErr = NewInternalError(msgUnexpected)
			if cfg.ExposeDetails {
				apiErr.Detail = err.Error()
			}
			cfg.Logger.Error("http.unhandled_error",
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"error", err,
			)
		}

		// HEAD responses carry no body
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(apiErr.Status)
			return
		}
		_ = c.JSON(apiErr.Status, apiErr)
	}
}

func fromHTTPError(e *echo.HTTPError, maxFileSize int64) *APIError {
	if e.Code == http.StatusRequestEntityTooLarge && maxFileSize > 0 {
		return NewPayloadTooLargeError(maxFileSize)
	}
	if e.Code == http.StatusTooManyRequests {
		return NewRateLimitError()
	}
	return &APIError{
		Status: e.Code,
		Code:   httpErrorCode(e.Code),
		Detail: fmt.Sprintf("%v", e.Message),
	}
}

func httpErrorCode(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return "HTTP_ERROR"
	}
	return strings.ToUpper(strings.ReplaceAll(text, " ", "_"))
}

// RespondWithError is a helper to respond with an APIError
func RespondWithError(c echo.Context, err *APIError) error {
	return c.JSON(err.Status, err)
}
