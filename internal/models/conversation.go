package models

import (
	"time"

	"github.com/google/uuid"

	"code-assistant/internal/assistant"
)

type Conversation struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreateConversationResponse struct {
	ID        uuid.UUID `json:"id"`
	Token     string    `json:"token"`
	ExpiresIn int       `json:"expires_in"`
}

type ConversationResponse struct {
	ID        uuid.UUID        `json:"id"`
	CreatedAt time.Time        `json:"created_at"`
	Turns     []assistant.Turn `json:"turns"`
}
