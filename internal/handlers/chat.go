package handlers

import (
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"code-assistant/internal/assistant"
	"code-assistant/internal/models"
	"code-assistant/internal/services"
)

type generator interface {
	Generate(ctx context.Context, req *assistant.Request) (assistant.Result, error)
}

type ChatHandler struct {
	store          ConversationStore
	gemini         generator
	extractor      assistant.TextExtractor
	guard          services.InflightGuard
	events         services.EventPublisher
	maxUploadBytes int64
	requestTimeout time.Duration
}

func NewChatHandler(
	store ConversationStore,
	gemini generator,
	extractor assistant.TextExtractor,
	guard services.InflightGuard,
	events services.EventPublisher,
	maxUploadBytes int64,
) *ChatHandler {
	return &ChatHandler{
		store:          store,
		gemini:         gemini,
		extractor:      extractor,
		guard:          guard,
		events:         events,
		maxUploadBytes: maxUploadBytes,
		requestTimeout: services.ChatLockTTL,
	}
}

// SendMessage answers one prompt in a conversation. Attached files are used
// for this request only; on success the user and assistant turns are
// appended to the history in that order.
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	conversationID, ok := authorizedConversation(w, r)
	if !ok {
		return
	}

	req, uploads, err := h.decodeRequest(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	sel := assistant.ModeSelector{Thinking: req.Thinking, SearchGrounded: req.Search}
	if _, err := sel.Mode(); err != nil {
		handleServiceError(w, r, err)
		return
	}

	if strings.TrimSpace(req.Prompt) == "" && len(uploads) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Message is required", r))
		return
	}

	// Bounded by the lock TTL so the Redis guard cannot expire under a
	// request that is still running.
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	if _, err := h.store.GetByID(ctx, conversationID); err != nil {
		handleServiceError(w, r, err)
		return
	}

	release, err := h.guard.Acquire(ctx, conversationID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	defer release()

	h.events.Publish(ctx, conversationID, services.StatusMessage(conversationID, "loading"))
	defer h.events.Publish(context.WithoutCancel(ctx), conversationID, services.StatusMessage(conversationID, "idle"))

	var attachments assistant.AttachmentSet
	files, err := assistant.LoadAttachments(ctx, uploadSources(uploads, h.extractor))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	attachments.Add(files...)
	defer attachments.Clear()

	history, err := h.store.ListTurns(ctx, conversationID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	composed, err := assistant.Compose(history, req.Prompt, attachments.Files(), sel)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	result, err := h.gemini.Generate(ctx, composed)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	now := time.Now()
	userMsg := models.ChatMessage{ID: uuid.New(), Role: assistant.RoleUser, Content: req.Prompt, CreatedAt: now}
	modelMsg := models.ChatMessage{
		ID:        uuid.New(),
		Role:      assistant.RoleAssistant,
		Content:   result.Text,
		Sources:   result.Sources,
		CreatedAt: now,
	}

	if err := h.store.AppendTurns(ctx, conversationID,
		assistant.UserTurn(userMsg.Content), assistant.AssistantTurn(modelMsg.Content)); err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.events.Publish(ctx, conversationID, services.TurnMessage(conversationID, userMsg))
	h.events.Publish(ctx, conversationID, services.TurnMessage(conversationID, modelMsg))

	writeJSON(w, http.StatusOK, models.ChatResponse{
		Message:       modelMsg,
		Mode:          composed.Mode.String(),
		Model:         composed.Config.ModelName(),
		AttachedFiles: attachments.Names(),
		FileCharCount: attachments.CharCount(),
		CharWarning:   attachments.ExceedsWarning(),
	})
}

// decodeRequest reads either a JSON body or a multipart form with "files".
func (h *ChatHandler) decodeRequest(w http.ResponseWriter, r *http.Request) (models.ChatRequest, []*multipart.FileHeader, error) {
	var req models.ChatRequest
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		err := json.NewDecoder(r.Body).Decode(&req)
		return req, nil, err
	}

	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		return req, nil, err
	}

	req.Prompt = r.FormValue("prompt")
	req.Thinking = formBool(r, "thinking")
	req.Search = formBool(r, "search")
	return req, r.MultipartForm.File["files"], nil
}

func formBool(r *http.Request, key string) bool {
	v, _ := strconv.ParseBool(r.FormValue(key))
	return v
}

type uploadSource struct {
	header    *multipart.FileHeader
	extractor assistant.TextExtractor
}

func uploadSources(headers []*multipart.FileHeader, extractor assistant.TextExtractor) []assistant.Source {
	sources := make([]assistant.Source, len(headers))
	for i, fh := range headers {
		sources[i] = &uploadSource{header: fh, extractor: extractor}
	}
	return sources
}

func (s *uploadSource) Path() string { return s.header.Filename }

func (s *uploadSource) Name() string { return filepath.Base(s.header.Filename) }

func (s *uploadSource) ReadText(ctx context.Context) (string, error) {
	f, err := s.header.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}
	return s.extractor.ExtractText(s.Name(), data)
}
