package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"regexp"
	"strings"

	"code-assistant/internal/assistant"
	"code-assistant/internal/models"
	"code-assistant/internal/repository"
	"code-assistant/internal/services"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: r.Header.Get("X-Request-ID"),
		},
	}
}

func errorRespWithFields(code, message string, fields map[string]string, r *http.Request) models.ErrorResponse {
	resp := errorResp(code, message, r)
	resp.Error.Fields = fields
	return resp
}

func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr *assistant.ValidationError
		fileErr       *assistant.FileError
		upstreamErr   *assistant.UpstreamError
		conflictErr   *services.ConflictError
		rateLimitErr  *services.RateLimitError
	)

	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", validationErr.Message,
			map[string]string{validationErr.Field: validationErr.Message}, r))
	case errors.As(err, &fileErr):
		log.Printf("Attachment error: %v", err)
		writeJSON(w, http.StatusBadRequest, errorResp("FILE_ERROR", "Error reading one or more files.", r))
	case errors.As(err, &upstreamErr):
		log.Printf("Error generating response from Gemini API: %v", err)
		status := http.StatusBadGateway
		if strings.Contains(upstreamErr.Err.Error(), "429") {
			status = http.StatusTooManyRequests
		}
		writeJSON(w, status, errorResp("AI_ERROR", FriendlyMessage(upstreamErr.Err), r))
	case errors.Is(err, repository.ErrConversationNotFound):
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Conversation not found", r))
	case errors.As(err, &conflictErr):
		writeJSON(w, http.StatusConflict, errorResp("CONFLICT", conflictErr.Message, r))
	case errors.As(err, &rateLimitErr):
		writeJSON(w, http.StatusTooManyRequests, errorResp("RATE_LIMITED", rateLimitErr.Message, r))
	default:
		log.Printf("Unexpected error: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "An unexpected error occurred", r))
	}
}

var serverErrorPattern = regexp.MustCompile(`50\d`)

// FriendlyMessage maps an upstream failure to text suitable for the chat
// transcript. The raw error is logged separately.
func FriendlyMessage(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "API key not valid"):
		return "There seems to be an issue with the API key. Please ensure it is configured correctly."
	case serverErrorPattern.MatchString(msg):
		return "The service is currently experiencing issues. Please try again in a few moments."
	case strings.Contains(msg, "429"):
		return "You've sent too many requests in a short period. Please wait a bit before sending another."
	default:
		return "An unexpected error occurred. Please try again."
	}
}
