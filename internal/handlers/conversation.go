package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"code-assistant/internal/assistant"
	"code-assistant/internal/middleware"
	"code-assistant/internal/models"
)

// ConversationStore is implemented by the Postgres and in-memory repositories.
type ConversationStore interface {
	Create(ctx context.Context) (*models.Conversation, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	ListTurns(ctx context.Context, id uuid.UUID) ([]assistant.Turn, error)
	AppendTurns(ctx context.Context, id uuid.UUID, turns ...assistant.Turn) error
}

type ConversationHandler struct {
	store   ConversationStore
	jwtAuth *middleware.JWTAuth
}

func NewConversationHandler(store ConversationStore, jwtAuth *middleware.JWTAuth) *ConversationHandler {
	return &ConversationHandler{store: store, jwtAuth: jwtAuth}
}

func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	conv, err := h.store.Create(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	token, err := h.jwtAuth.GenerateConversationToken(conv.ID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to issue conversation token", r))
		return
	}

	writeJSON(w, http.StatusCreated, models.CreateConversationResponse{
		ID:        conv.ID,
		Token:     token,
		ExpiresIn: int(middleware.ConversationTokenTTL.Seconds()),
	})
}

func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := authorizedConversation(w, r)
	if !ok {
		return
	}

	conv, err := h.store.GetByID(r.Context(), conversationID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	turns, err := h.store.ListTurns(r.Context(), conversationID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, models.ConversationResponse{
		ID:        conv.ID,
		CreatedAt: conv.CreatedAt,
		Turns:     turns,
	})
}

// authorizedConversation parses the {id} URL parameter and checks it against
// the conversation the bearer token was issued for.
func authorizedConversation(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	conversationID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid conversation ID", r))
		return uuid.Nil, false
	}

	if middleware.GetConversationID(r.Context()) != conversationID {
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Access denied", r))
		return uuid.Nil, false
	}
	return conversationID, true
}
