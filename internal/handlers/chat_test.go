package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"code-assistant/internal/assistant"
	"code-assistant/internal/middleware"
	"code-assistant/internal/models"
	"code-assistant/internal/repository"
	"code-assistant/internal/services"
)

type stubGenerator struct {
	result assistant.Result
	err    error

	calls    int
	last     *assistant.Request
	deadline time.Time
}

func (g *stubGenerator) Generate(ctx context.Context, req *assistant.Request) (assistant.Result, error) {
	g.calls++
	g.last = req
	g.deadline, _ = ctx.Deadline()
	return g.result, g.err
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.WSMessage
}

func (p *recordingPublisher) Publish(ctx context.Context, conversationID uuid.UUID, msg models.WSMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, msg)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type busyGuard struct{}

func (busyGuard) Acquire(ctx context.Context, id uuid.UUID) (func(), error) {
	return nil, services.ErrRequestInFlight
}

type chatFixture struct {
	handler *ChatHandler
	repo    *repository.MemoryConversationRepo
	gen     *stubGenerator
	events  *recordingPublisher
	convID  uuid.UUID
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	repo := repository.NewMemoryConversationRepo()
	conv, err := repo.Create(context.Background())
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}

	gen := &stubGenerator{result: assistant.Result{Text: "Recursion is a function calling itself.", Sources: []assistant.GroundingSource{}}}
	events := &recordingPublisher{}
	h := NewChatHandler(repo, gen, services.NewFileExtractService(), services.NewMemoryGuard(), events, 1<<20)

	return &chatFixture{handler: h, repo: repo, gen: gen, events: events, convID: conv.ID}
}

func (f *chatFixture) request(body *bytes.Buffer, contentType string, tokenConv uuid.UUID) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", f.convID.String())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations/"+f.convID.String()+"/messages", body)
	req.Header.Set("Content-Type", contentType)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	req = req.WithContext(context.WithValue(req.Context(), middleware.ConversationIDKey, tokenConv))
	return req
}

func (f *chatFixture) jsonRequest(t *testing.T, payload models.ChatRequest) *http.Request {
	t.Helper()
	body, _ := json.Marshal(payload)
	return f.request(bytes.NewBuffer(body), "application/json", f.convID)
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var resp models.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp
}

func TestChatHandler_SendMessage_AppendsTurns(t *testing.T) {
	f := newChatFixture(t)

	rr := httptest.NewRecorder()
	f.handler.SendMessage(rr, f.jsonRequest(t, models.ChatRequest{Prompt: "explain recursion"}))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp models.ChatResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Message.Content != "Recursion is a function calling itself." || resp.Message.Role != assistant.RoleAssistant {
		t.Fatalf("unexpected message %+v", resp.Message)
	}
	if resp.Mode != "default" || resp.Model != assistant.FlashModel {
		t.Errorf("unexpected mode/model %s/%s", resp.Mode, resp.Model)
	}
	if f.gen.last.Prompt != "User: explain recursion" {
		t.Errorf("unexpected composed prompt %q", f.gen.last.Prompt)
	}

	turns, _ := f.repo.ListTurns(context.Background(), f.convID)
	if len(turns) != 2 || turns[0] != assistant.UserTurn("explain recursion") ||
		turns[1] != assistant.AssistantTurn("Recursion is a function calling itself.") {
		t.Fatalf("unexpected history %+v", turns)
	}

	want := []string{"status_update", "turn_appended", "turn_appended", "status_update"}
	if got := f.events.types(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("expected events %v, got %v", want, got)
	}

	// Second request carries the history.
	rr = httptest.NewRecorder()
	f.handler.SendMessage(rr, f.jsonRequest(t, models.ChatRequest{Prompt: "shorter please"}))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	wantPrompt := "User: explain recursion\n\nAssistant: Recursion is a function calling itself.\n\nUser: shorter please"
	if f.gen.last.Prompt != wantPrompt {
		t.Fatalf("expected %q, got %q", wantPrompt, f.gen.last.Prompt)
	}
}

func TestChatHandler_SendMessage_ConflictingModes(t *testing.T) {
	f := newChatFixture(t)

	rr := httptest.NewRecorder()
	f.handler.SendMessage(rr, f.jsonRequest(t, models.ChatRequest{Prompt: "hi", Thinking: true, Search: true}))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Error.Code != "VALIDATION_ERROR" {
		t.Errorf("unexpected error code %q", resp.Error.Code)
	}
	if f.gen.calls != 0 {
		t.Fatalf("no upstream request expected")
	}
}

func TestChatHandler_SendMessage_EmptyPrompt(t *testing.T) {
	f := newChatFixture(t)

	rr := httptest.NewRecorder()
	f.handler.SendMessage(rr, f.jsonRequest(t, models.ChatRequest{Prompt: "   "}))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestChatHandler_SendMessage_WrongConversationToken(t *testing.T) {
	f := newChatFixture(t)

	body, _ := json.Marshal(models.ChatRequest{Prompt: "hi"})
	rr := httptest.NewRecorder()
	f.handler.SendMessage(rr, f.request(bytes.NewBuffer(body), "application/json", uuid.New()))

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rr.Code)
	}
	if f.gen.calls != 0 {
		t.Fatalf("no upstream request expected")
	}
}

func TestChatHandler_SendMessage_UpstreamError(t *testing.T) {
	f := newChatFixture(t)
	f.gen.err = &assistant.UpstreamError{Model: assistant.FlashModel, Err: errors.New("got status 503 Service Unavailable")}

	rr := httptest.NewRecorder()
	f.handler.SendMessage(rr, f.jsonRequest(t, models.ChatRequest{Prompt: "hi"}))

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %d", rr.Code)
	}
	resp := decodeError(t, rr)
	if resp.Error.Code != "AI_ERROR" || !strings.Contains(resp.Error.Message, "experiencing issues") {
		t.Errorf("unexpected error %+v", resp.Error)
	}

	turns, _ := f.repo.ListTurns(context.Background(), f.convID)
	if len(turns) != 0 {
		t.Fatalf("failed requests must not be appended, got %d turns", len(turns))
	}
}

func TestChatHandler_SendMessage_Busy(t *testing.T) {
	f := newChatFixture(t)
	f.handler.guard = busyGuard{}

	rr := httptest.NewRecorder()
	f.handler.SendMessage(rr, f.jsonRequest(t, models.ChatRequest{Prompt: "hi"}))

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
	if f.gen.calls != 0 {
		t.Fatalf("no upstream request expected")
	}
}

func TestChatHandler_SendMessage_UnknownConversation(t *testing.T) {
	f := newChatFixture(t)
	f.convID = uuid.New()

	rr := httptest.NewRecorder()
	f.handler.SendMessage(rr, f.jsonRequest(t, models.ChatRequest{Prompt: "hi"}))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func multipartBody(t *testing.T, fields map[string]string, files map[string][]byte, order []string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	for _, name := range order {
		fw, err := mw.CreateFormFile("files", name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		fw.Write(files[name])
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestChatHandler_SendMessage_WithFiles(t *testing.T) {
	f := newChatFixture(t)
	f.gen.result = assistant.Result{
		Text:    "grounded",
		Sources: []assistant.GroundingSource{{URI: "https://go.dev"}},
	}

	body, ct := multipartBody(t,
		map[string]string{"prompt": "explain recursion", "search": "true"},
		map[string][]byte{"a.txt": []byte("foo"), "b.go": []byte("package b")},
		[]string{"a.txt", "b.go"},
	)

	rr := httptest.NewRecorder()
	f.handler.SendMessage(rr, f.request(body, ct, f.convID))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	if f.gen.last.Mode != assistant.ModeSearchGrounded {
		t.Errorf("expected search mode, got %s", f.gen.last.Mode)
	}
	want := "Here is the content of the files provided for context:\n\n" +
		"--- FILE: a.txt ---\nfoo\n\n--- FILE: b.go ---\npackage b\n\n---\n\n" +
		"Based on the file content provided, please answer the following question:\n\n" +
		"User: explain recursion"
	if f.gen.last.Prompt != want {
		t.Fatalf("unexpected prompt\nwant: %q\ngot:  %q", want, f.gen.last.Prompt)
	}

	var resp models.ChatResponse
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp.FileCharCount != 12 || resp.CharWarning {
		t.Errorf("unexpected char count %d / warning %v", resp.FileCharCount, resp.CharWarning)
	}
	if strings.Join(resp.AttachedFiles, ",") != "a.txt,b.go" {
		t.Errorf("unexpected attached files %v", resp.AttachedFiles)
	}
	if len(resp.Message.Sources) != 1 {
		t.Errorf("expected sources in the reply")
	}

	// Files are not retained for the next request.
	rr = httptest.NewRecorder()
	f.handler.SendMessage(rr, f.jsonRequest(t, models.ChatRequest{Prompt: "next"}))
	if strings.Contains(f.gen.last.Prompt, "--- FILE:") {
		t.Fatalf("file context leaked into a later request: %q", f.gen.last.Prompt)
	}
}

func TestChatHandler_SendMessage_UndecodableFile(t *testing.T) {
	f := newChatFixture(t)

	body, ct := multipartBody(t,
		map[string]string{"prompt": "what is this"},
		map[string][]byte{"ok.txt": []byte("fine"), "blob.bin": {0xff, 0xfe}},
		[]string{"ok.txt", "blob.bin"},
	)

	rr := httptest.NewRecorder()
	f.handler.SendMessage(rr, f.request(body, ct, f.convID))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	if resp := decodeError(t, rr); resp.Error.Code != "FILE_ERROR" {
		t.Errorf("unexpected error code %q", resp.Error.Code)
	}
	if f.gen.calls != 0 {
		t.Fatalf("no upstream request expected")
	}
}

func TestFriendlyMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains string
	}{
		{"api key", errors.New("API key not valid. Please pass a valid API key."), "API key"},
		{"server error", errors.New("Error 500: internal"), "experiencing issues"},
		{"rate limited", errors.New("Error 429: quota"), "too many requests"},
		{"other", errors.New("connection reset"), "unexpected error"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := FriendlyMessage(tc.err); !strings.Contains(got, tc.contains) {
				t.Errorf("expected %q to contain %q", got, tc.contains)
			}
		})
	}
}

func TestChatHandler_SendMessage_OversizedJSON(t *testing.T) {
	f := newChatFixture(t)
	f.handler.maxUploadBytes = 64

	body, _ := json.Marshal(models.ChatRequest{Prompt: strings.Repeat("x", 1024)})
	rr := httptest.NewRecorder()
	f.handler.SendMessage(rr, f.request(bytes.NewBuffer(body), "application/json", f.convID))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	if f.gen.calls != 0 {
		t.Fatalf("no upstream request expected")
	}
}

func TestChatHandler_SendMessage_BoundedByLockTTL(t *testing.T) {
	f := newChatFixture(t)

	start := time.Now()
	rr := httptest.NewRecorder()
	f.handler.SendMessage(rr, f.jsonRequest(t, models.ChatRequest{Prompt: "think hard"}))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	if f.gen.deadline.IsZero() {
		t.Fatal("upstream call must carry a deadline")
	}
	if limit := start.Add(services.ChatLockTTL); f.gen.deadline.After(limit.Add(time.Second)) {
		t.Fatalf("deadline %s outlives the lock TTL (%s)", f.gen.deadline, limit)
	}
}
