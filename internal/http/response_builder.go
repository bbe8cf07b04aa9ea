// This file implements a small builder for JSON responses and the mapping
// from domain errors to HTTP status codes.

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"obras/internal/services"
	"obras/internal/store"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	payload    any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Body sets the value to encode as the response body.
func (b *JSONResponseBuilder) Body(payload any) *JSONResponseBuilder {
	b.payload = payload
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	if b.payload == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	if err := json.NewEncoder(w).Encode(b.payload); err != nil {
		slog.Error("Failed to encode response body", "error", err)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// ErrorResponse creates a JSON error response with the given status.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Body(errorBody{Error: message})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// UnprocessableEntityError creates a 422 Unprocessable Entity error response.
func UnprocessableEntityError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// FromError maps a domain error to the right status code. Rejected input is
// 422, missing records are 404, a store that has not opened is 503, and
// anything else is 500.
func FromError(err error) *JSONResponseBuilder {
	switch {
	case services.IsValidationError(err):
		return UnprocessableEntityError(err.Error())
	case errors.Is(err, store.ErrNotFound):
		return NotFoundError("record not found")
	case errors.Is(err, store.ErrUnavailable):
		return ErrorResponse(http.StatusServiceUnavailable, "store unavailable")
	default:
		return InternalServerError("internal error")
	}
}
