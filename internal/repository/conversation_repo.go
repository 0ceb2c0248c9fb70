package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"code-assistant/internal/assistant"
	"code-assistant/internal/models"
)

var ErrConversationNotFound = errors.New("conversation not found")

type ConversationRepo struct {
	pool *pgxpool.Pool
}

func NewConversationRepo(pool *pgxpool.Pool) *ConversationRepo {
	return &ConversationRepo{pool: pool}
}

func (r *ConversationRepo) Create(ctx context.Context) (*models.Conversation, error) {
	c := &models.Conversation{ID: uuid.New()}
	query := `INSERT INTO conversations (id) VALUES ($1) RETURNING created_at, updated_at`

	if err := r.pool.QueryRow(ctx, query, c.ID).Scan(&c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *ConversationRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	c := &models.Conversation{}
	query := `SELECT id, created_at, updated_at FROM conversations WHERE id = $1`

	err := r.pool.QueryRow(ctx, query, id).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListTurns returns the conversation's turns in the order they were appended.
func (r *ConversationRepo) ListTurns(ctx context.Context, id uuid.UUID) ([]assistant.Turn, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT role, content FROM conversation_turns WHERE conversation_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	turns := []assistant.Turn{}
	for rows.Next() {
		var role, content string
		if err := rows.Scan(&role, &content); err != nil {
			return nil, err
		}
		turns = append(turns, assistant.Turn{Role: assistant.Role(role), Content: content})
	}
	return turns, rows.Err()
}

// AppendTurns appends turns atomically. The conversation row is locked so
// concurrent appends cannot interleave positions.
func (r *ConversationRepo) AppendTurns(ctx context.Context, id uuid.UUID, turns ...assistant.Turn) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	err = tx.QueryRow(ctx, `SELECT true FROM conversations WHERE id = $1 FOR UPDATE`, id).Scan(&exists)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrConversationNotFound
	}
	if err != nil {
		return err
	}

	var next int
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(position), 0) + 1 FROM conversation_turns WHERE conversation_id = $1`, id,
	).Scan(&next)
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for i, t := range turns {
		batch.Queue(`INSERT INTO conversation_turns (conversation_id, position, role, content) VALUES ($1, $2, $3, $4)`,
			id, next+i, string(t.Role), t.Content)
	}
	batch.Queue(`UPDATE conversations SET updated_at = NOW() WHERE id = $1`, id)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to append turns: %w", err)
	}

	return tx.Commit(ctx)
}
