package models

import "github.com/google/uuid"

// WebSocket message types

type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// StatusUpdate tells clients whether a request is in flight.
type StatusUpdate struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	State          string    `json:"state"` // "loading" | "idle"
}

type TurnAppended struct {
	ConversationID uuid.UUID   `json:"conversation_id"`
	Message        ChatMessage `json:"message"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
