package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"code-assistant/internal/assistant"
	"code-assistant/internal/models"
)

// MemoryConversationRepo keeps conversations in process memory. It is used
// when no DATABASE_URL is configured; history is lost on restart.
type MemoryConversationRepo struct {
	mu            sync.RWMutex
	conversations map[uuid.UUID]*memoryConversation
}

type memoryConversation struct {
	meta    models.Conversation
	history *assistant.History
}

func NewMemoryConversationRepo() *MemoryConversationRepo {
	return &MemoryConversationRepo{conversations: make(map[uuid.UUID]*memoryConversation)}
}

func (r *MemoryConversationRepo) Create(ctx context.Context) (*models.Conversation, error) {
	now := time.Now()
	c := &memoryConversation{
		meta:    models.Conversation{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		history: assistant.NewHistory(),
	}

	r.mu.Lock()
	r.conversations[c.meta.ID] = c
	r.mu.Unlock()

	meta := c.meta
	return &meta, nil
}

func (r *MemoryConversationRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.conversations[id]
	if !ok {
		return nil, ErrConversationNotFound
	}
	meta := c.meta
	return &meta, nil
}

func (r *MemoryConversationRepo) ListTurns(ctx context.Context, id uuid.UUID) ([]assistant.Turn, error) {
	r.mu.RLock()
	c, ok := r.conversations[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrConversationNotFound
	}
	return c.history.Turns(), nil
}

func (r *MemoryConversationRepo) AppendTurns(ctx context.Context, id uuid.UUID, turns ...assistant.Turn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conversations[id]
	if !ok {
		return ErrConversationNotFound
	}
	c.history.Append(turns...)
	c.meta.UpdatedAt = time.Now()
	return nil
}
