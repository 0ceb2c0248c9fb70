package models

import (
	"time"

	"github.com/google/uuid"

	"code-assistant/internal/assistant"
)

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	ID        uuid.UUID                   `json:"id"`
	Role      assistant.Role              `json:"role"` // "user" or "assistant"
	Content   string                      `json:"content"`
	Sources   []assistant.GroundingSource `json:"sources,omitempty"`
	CreatedAt time.Time                   `json:"created_at"`
}

// ChatRequest is the JSON payload sent to the messages endpoint. Multipart
// requests carry the same fields as form values plus "files".
type ChatRequest struct {
	Prompt   string `json:"prompt"`
	Thinking bool   `json:"thinking"`
	Search   bool   `json:"search"`
}

// ChatResponse is the assistant reply for one request.
type ChatResponse struct {
	Message       ChatMessage `json:"message"`
	Mode          string      `json:"mode"`
	Model         string      `json:"model"`
	AttachedFiles []string    `json:"attached_files"`
	FileCharCount int         `json:"file_char_count"`
	CharWarning   bool        `json:"char_warning"`
}

// ModeInfo describes one request preset.
type ModeInfo struct {
	Name        string `json:"name"`
	Model       string `json:"model"`
	Description string `json:"description"`
}
