// errors.go - Structured error handling for API responses
package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/KaramelBytes/statloom/internal/analysis"
	"github.com/KaramelBytes/statloom/internal/dataset"
	"github.com/KaramelBytes/statloom/internal/ingest"
	"github.com/labstack/echo/v4"
)

// APIError represents a structured API error response
type APIError struct {
	Status  int    `json:"-" msgpack:"-"`
	Code    string `json:"code" msgpack:"code"`
	Message string `json:"message" msgpack:"message"`
	Details string `json:"details,omitempty" msgpack:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewBadRequestError creates a 400 Bad Request error
func NewBadRequestError(message string, cause error) *APIError {
	err := &APIError{Status: http.StatusBadRequest, Code: "BAD_REQUEST", Message: message}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewValidationError creates a 400 error for invalid or missing parameters
func NewValidationError(message string) *APIError {
	return &APIError{Status: http.StatusBadRequest, Code: "VALIDATION_ERROR", Message: message}
}

// NewParseError creates a 422 error for input that could not be read as a table
func NewParseError(cause error) *APIError {
	msg := ingest.Message(cause)
	if !errors.Is(cause, ingest.ErrEmptyInput) && !errors.Is(cause, ingest.ErrSingleColumn) {
		msg = fmt.Sprintf("Could not read dataset: %v", cause)
	}
	return &APIError{Status: http.StatusUnprocessableEntity, Code: "PARSE_ERROR", Message: msg}
}

// NewAnalysisError creates a 422 error for a method that could not run on the data
func NewAnalysisError(cause error) *APIError {
	return &APIError{Status: http.StatusUnprocessableEntity, Code: "ANALYSIS_ERROR", Message: cause.Error()}
}

// NewNotFoundError creates a 404 Not Found error
func NewNotFoundError(resource string, id string) *APIError {
	return &APIError{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: fmt.Sprintf("%s not found: %s", resource, id)}
}

// NewInternalError creates a 500 Internal Server Error
func NewInternalError(message string, cause error) *APIError {
	err := &APIError{Status: http.StatusInternalServerError, Code: "INTERNAL_ERROR", Message: message}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// classify maps an error from the analysis stack to an APIError.
func classify(err error) *APIError {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, ingest.ErrEmptyInput), errors.Is(err, ingest.ErrSingleColumn):
		return NewParseError(err)
	case errors.Is(err, analysis.ErrParam), errors.Is(err, dataset.ErrNoColumn):
		return NewValidationError(err.Error())
	}
	return NewAnalysisError(err)
}

// ErrorHandler returns an echo error handler that writes APIError bodies and
// logs server-side failures.
func ErrorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		var apiErr *APIError
		var httpErr *echo.HTTPError
		switch {
		case errors.As(err, &apiErr):
		case errors.As(err, &httpErr):
			code := "HTTP_ERROR"
			switch httpErr.Code {
			case http.StatusNotFound:
				code = "NOT_FOUND"
			case http.StatusBadRequest:
				code = "BAD_REQUEST"
			case http.StatusRequestEntityTooLarge:
				code = "TOO_LARGE"
			}
			apiErr = &APIError{Status: httpErr.Code, Code: code, Message: fmt.Sprintf("%v", httpErr.Message)}
		default:
			apiErr = NewInternalError("An unexpected error occurred", err)
		}
		if apiErr.Status >= 500 {
			logger.Error("request failed", "method", c.Request().Method, "path", c.Path(), "err", err)
		}
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(apiErr.Status)
			return
		}
		_ = respond(c, apiErr.Status, apiErr)
	}
}
