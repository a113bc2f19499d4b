package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sdnpulse/sdnpulse/internal/config"
	"github.com/sdnpulse/sdnpulse/internal/middleware"
)

// sendJSON sends a JSON response
func sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode response", "error", err)
		}
	}
}

// sendError sends a standardized error response
func sendError(w http.ResponseWriter, r *http.Request, status int, code, message string, details interface{}) {
	requestID, _ := r.Context().Value(middleware.RequestIDKey).(string)

	sendJSON(w, status, middleware.ErrorResponse{
		Error: middleware.ErrorDetail{
			Code:      code,
			Message:   message,
			Details:   details,
			RequestID: requestID,
		},
	})
}

// decodeJSON decodes and validates a request body
func decodeJSON[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var input T
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		sendError(w, r, http.StatusBadRequest, "INVALID_BODY", "Invalid JSON body", err.Error())
		return input, false
	}
	if err := config.ValidateStruct(input); err != nil {
		sendError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Request validation failed", err)
		return input, false
	}
	return input, true
}
