package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-risk-engine/pkg/apperrors"
)

// ApiResponse is the envelope of every JSON API response.
type ApiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// ScopeMiddleware attaches a database connection to the request context.
type ScopeMiddleware func(http.HandlerFunc) http.HandlerFunc

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	return WriteJSON(w, statusCode, ApiResponse{Success: false, Error: errorCode, Message: message})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// writeData writes a successful envelope around data.
func writeData(w http.ResponseWriter, statusCode int, data any, logger *zap.Logger) {
	if err := WriteJSON(w, statusCode, ApiResponse{Success: true, Data: data}); err != nil {
		logger.Error("Failed to write response", zap.Error(err))
	}
}

// writeError writes an error envelope, logging encoding failures.
func writeError(w http.ResponseWriter, statusCode int, errorCode, message string, logger *zap.Logger) {
	if err := ErrorResponse(w, statusCode, errorCode, message); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}

// writeServiceError maps a service error onto an HTTP status and error code.
// Unexpected errors are logged and reported as 500 with the given code.
func writeServiceError(w http.ResponseWriter, err error, fallbackCode string, logger *zap.Logger) {
	switch {
	case errors.Is(err, apperrors.ErrModelNotFound):
		writeError(w, http.StatusNotFound, "model_not_found", err.Error(), logger)
	case errors.Is(err, apperrors.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error(), logger)
	case errors.Is(err, apperrors.ErrInvalidParams):
		writeError(w, http.StatusBadRequest, "invalid_params", err.Error(), logger)
	case errors.Is(err, apperrors.ErrInvalidInput), errors.Is(err, apperrors.ErrMissingMission):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error(), logger)
	case errors.Is(err, apperrors.ErrModelDisabled):
		writeError(w, http.StatusConflict, "model_disabled", err.Error(), logger)
	case errors.Is(err, apperrors.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", err.Error(), logger)
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "timeout", "Request timed out", logger)
	default:
		logger.Error("Request failed", zap.String("code", fallbackCode), zap.Error(err))
		writeError(w, http.StatusInternalServerError, fallbackCode, err.Error(), logger)
	}
}

// decodeOptionalJSON decodes the request body into v. An empty body leaves v untouched.
func decodeOptionalJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
