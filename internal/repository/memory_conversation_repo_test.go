package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"code-assistant/internal/assistant"
)

func TestMemoryConversationRepo_AppendAndList(t *testing.T) {
	repo := NewMemoryConversationRepo()
	ctx := context.Background()

	conv, err := repo.Create(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := repo.AppendTurns(ctx, conv.ID, assistant.UserTurn("hi"), assistant.AssistantTurn("hello")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := repo.AppendTurns(ctx, conv.ID, assistant.UserTurn("again")); err != nil {
		t.Fatalf("append: %v", err)
	}

	turns, err := repo.ListTurns(ctx, conv.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(turns))
	}
	if turns[0].Role != assistant.RoleUser || turns[1].Role != assistant.RoleAssistant || turns[2].Content != "again" {
		t.Fatalf("unexpected turns %+v", turns)
	}

	got, err := repo.GetByID(ctx, conv.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.UpdatedAt.Before(conv.UpdatedAt) {
		t.Errorf("updated_at should move forward")
	}
}

func TestMemoryConversationRepo_Unknown(t *testing.T) {
	repo := NewMemoryConversationRepo()
	ctx := context.Background()
	id := uuid.New()

	if _, err := repo.GetByID(ctx, id); !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("GetByID: expected ErrConversationNotFound, got %v", err)
	}
	if _, err := repo.ListTurns(ctx, id); !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("ListTurns: expected ErrConversationNotFound, got %v", err)
	}
	if err := repo.AppendTurns(ctx, id, assistant.UserTurn("x")); !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("AppendTurns: expected ErrConversationNotFound, got %v", err)
	}
}
