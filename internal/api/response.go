package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/cloo-solutions/ragcore/internal/domain"
)

// SuccessResponse wraps successful API responses
type SuccessResponse struct {
	Data any `json:"data"`
}

// ErrorResponse represents an error API response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// JSON writes a JSON response with the given status code
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Warn("failed to encode response", "error", err)
		}
	}
}

// Success writes a successful JSON response
func Success(w http.ResponseWriter, status int, data any) {
	JSON(w, status, SuccessResponse{Data: data})
}

// Error writes an error JSON response
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message})
}

// DomainErrorToHTTP maps domain errors to HTTP status codes
func DomainErrorToHTTP(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return http.StatusRequestEntityTooLarge
	}

	code := domain.CodeOf(err)
	if domain.IsNotFound(code) {
		return http.StatusNotFound
	}
	switch code {
	case domain.ErrCodeRequestTooLarge:
		return http.StatusRequestEntityTooLarge
	case domain.ErrCodeValidation:
		return http.StatusBadRequest
	case domain.ErrCodeChunking, domain.ErrCodeDimensionMismatch, domain.ErrCodeDocumentLoad:
		return http.StatusUnprocessableEntity
	case domain.ErrCodeEmbedding:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// HandleError writes an appropriate error response based on the error type.
// Internal errors are logged and their details hidden from the client.
func HandleError(w http.ResponseWriter, err error) {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		err = domain.RequestTooLargeError(maxBytes.Limit)
	}

	status := DomainErrorToHTTP(err)
	code := domain.CodeOf(err)

	message := err.Error()
	var de *domain.DomainError
	if errors.As(err, &de) {
		message = de.Message
	}
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "code", code, "error", err)
		if code == domain.ErrCodeInternalError {
			message = "internal server error"
		}
	}

	JSON(w, status, ErrorResponse{Error: message, Code: code})
}

// DecodeJSON decodes a request body into v, rejecting unknown fields.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return err
		}
		return domain.InvalidParameterError("invalid request body: %v", err)
	}
	return nil
}
