package api

import (
	"net/http"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Message   string `json:"message"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func WriteError(w http.ResponseWriter, status int, code, message, requestID string) {
	WriteJSON(w, status, ErrorResponse{Message: message, Code: code, RequestID: requestID})
}

// Convenience helpers
func BadRequest(w http.ResponseWriter, code, message, requestID string) {
	WriteError(w, http.StatusBadRequest, code, message, requestID)
}

func NotFound(w http.ResponseWriter, code, message, requestID string) {
	WriteError(w, http.StatusNotFound, code, message, requestID)
}

func RateLimited(w http.ResponseWriter, requestID string) {
	WriteError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests", requestID)
}

// Internal writes a 500. The message is caller-chosen and must not carry the underlying cause.
func Internal(w http.ResponseWriter, message, requestID string) {
	if message == "" {
		message = "Internal server error"
	}
	WriteError(w, http.StatusInternalServerError, "INTERNAL", message, requestID)
}
