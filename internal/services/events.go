package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"code-assistant/internal/models"
)

// EventPublisher pushes conversation events to connected clients.
type EventPublisher interface {
	Publish(ctx context.Context, conversationID uuid.UUID, msg models.WSMessage)
}

// ConversationChannel is the pub/sub channel for a conversation's events.
func ConversationChannel(conversationID uuid.UUID) string {
	return fmt.Sprintf("conversation_updates:%s", conversationID.String())
}

// RedisPublisher sends WebSocket updates via Redis pub/sub
type RedisPublisher struct {
	redis *redis.Client
}

func NewRedisPublisher(redisClient *redis.Client) *RedisPublisher {
	return &RedisPublisher{redis: redisClient}
}

func (p *RedisPublisher) Publish(ctx context.Context, conversationID uuid.UUID, msg models.WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to encode %s event: %v", msg.Type, err)
		return
	}
	if err := p.redis.Publish(ctx, ConversationChannel(conversationID), string(data)).Err(); err != nil {
		log.Printf("Failed to publish %s event: %v", msg.Type, err)
	}
}

// StatusMessage builds a status_update event.
func StatusMessage(conversationID uuid.UUID, state string) models.WSMessage {
	return models.WSMessage{
		Type:    "status_update",
		Payload: models.StatusUpdate{ConversationID: conversationID, State: state},
	}
}

// TurnMessage builds a turn_appended event.
func TurnMessage(conversationID uuid.UUID, msg models.ChatMessage) models.WSMessage {
	return models.WSMessage{
		Type:    "turn_appended",
		Payload: models.TurnAppended{ConversationID: conversationID, Message: msg},
	}
}
