package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/corretorconnect/match-engine/pkg/apperrors"
)

// ApiResponse is the envelope for every successful JSON response.
type ApiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(ApiResponse{
		Success: false,
		Error:   errorCode,
		Message: message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// writeData wraps data in a successful ApiResponse.
func writeData(w http.ResponseWriter, statusCode int, data any, logger *zap.Logger) {
	if err := WriteJSON(w, statusCode, ApiResponse{Success: true, Data: data}); err != nil {
		logger.Error("Failed to write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, statusCode int, errorCode, message string, logger *zap.Logger) {
	if err := ErrorResponse(w, statusCode, errorCode, message); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}

// errorStatus maps domain errors to an HTTP status and a stable error code.
// Order matters: ErrDuplicatePair and ErrStaleState also match ErrConflict.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperrors.ErrStaleState):
		return http.StatusConflict, "stale_state"
	case errors.Is(err, apperrors.ErrDuplicatePair):
		return http.StatusConflict, "duplicate_pair"
	case errors.Is(err, apperrors.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, apperrors.ErrInvalidTransition):
		return http.StatusUnprocessableEntity, "invalid_transition"
	case errors.Is(err, apperrors.ErrInvalidActor):
		return http.StatusForbidden, "invalid_actor"
	case errors.Is(err, apperrors.ErrNotParticipant):
		return http.StatusForbidden, "not_participant"
	case errors.Is(err, apperrors.ErrMatchNotActive):
		return http.StatusConflict, "match_not_active"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeServiceError logs err and writes the mapped response. Internal errors
// get a generic message; domain errors echo their text.
func writeServiceError(w http.ResponseWriter, err error, action string, logger *zap.Logger, fields ...zap.Field) {
	status, code := errorStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error("Failed to "+action, append(fields, zap.Error(err))...)
		message = "Internal server error"
	} else {
		logger.Debug("Rejected "+action, append(fields, zap.Error(err))...)
	}
	writeError(w, status, code, message, logger)
}
