package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"code-assistant/internal/assistant"
)

// contentGenerator is the part of the genai client the service calls.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type GeminiService struct {
	models   contentGenerator
	limiter  *rate.Limiter
	rateChan chan struct{} // Token bucket
}

func NewGeminiService(apiKey string, requestsPerMin, concurrentReqs int) (*GeminiService, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return newGeminiService(client.Models, requestsPerMin, concurrentReqs), nil
}

func newGeminiService(models contentGenerator, requestsPerMin, concurrentReqs int) *GeminiService {
	if concurrentReqs < 1 {
		concurrentReqs = 1
	}

	// Token bucket for concurrent requests
	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	limit := rate.Inf
	if requestsPerMin > 0 {
		limit = rate.Every(time.Minute / time.Duration(requestsPerMin))
	}

	return &GeminiService{
		models:   models,
		limiter:  rate.NewLimiter(limit, concurrentReqs),
		rateChan: rateChan,
	}
}

// acquireRate blocks until a rate slot is available
func (s *GeminiService) acquireRate(ctx context.Context) error {
	if err := s.limiter.Wait(ctx); err != nil {
		if ctx.Err() == nil {
			// Wait fails early when the deadline cannot be met.
			return ErrUpstreamBusy
		}
		return err
	}
	select {
	case <-s.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *GeminiService) releaseRate() {
	s.rateChan <- struct{}{}
}

// Generate sends a composed request and normalizes the answer. Upstream
// failures come back as *assistant.UpstreamError wrapping the raw error;
// nothing is retried.
func (s *GeminiService) Generate(ctx context.Context, req *assistant.Request) (assistant.Result, error) {
	if err := s.acquireRate(ctx); err != nil {
		return assistant.Result{}, err
	}
	defer s.releaseRate()

	model := req.Config.ModelName()
	log.Printf("Using model: %s (%s)", model, req.Mode)

	resp, err := s.models.GenerateContent(ctx, model, genai.Text(req.Prompt), generateConfig(req.Config))
	if err != nil {
		return assistant.Result{}, &assistant.UpstreamError{Model: model, Err: err}
	}

	for i, cand := range resp.Candidates {
		if cand.FinishReason != "" && cand.FinishReason != genai.FinishReasonStop {
			log.Printf("WARNING: Gemini candidate %d stopped due to %s", i, cand.FinishReason)
		}
	}

	return assistant.Normalize(toResponse(resp), req.Mode == assistant.ModeSearchGrounded), nil
}

func generateConfig(cfg assistant.ModelConfig) *genai.GenerateContentConfig {
	switch c := cfg.(type) {
	case assistant.ThinkingConfig:
		return &genai.GenerateContentConfig{
			ThinkingConfig: &genai.ThinkingConfig{ThinkingBudget: genai.Ptr(c.Budget)},
		}
	case assistant.SearchGroundedConfig:
		return &genai.GenerateContentConfig{
			Tools: []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
		}
	default:
		return &genai.GenerateContentConfig{}
	}
}

// toResponse copies the fields the normalizer reads out of a genai response.
func toResponse(resp *genai.GenerateContentResponse) *assistant.Response {
	if resp == nil {
		return nil
	}

	out := &assistant.Response{Text: extractText(resp)}
	for _, cand := range resp.Candidates {
		var c assistant.Candidate
		if cand != nil && cand.GroundingMetadata != nil {
			meta := &assistant.GroundingMetadata{}
			for _, chunk := range cand.GroundingMetadata.GroundingChunks {
				var gc assistant.GroundingChunk
				if chunk != nil && chunk.Web != nil {
					gc.Web = &assistant.WebReference{URI: chunk.Web.URI}
					if chunk.Web.Title != "" {
						title := chunk.Web.Title
						gc.Web.Title = &title
					}
				}
				meta.GroundingChunks = append(meta.GroundingChunks, gc)
			}
			c.GroundingMetadata = meta
		}
		out.Candidates = append(out.Candidates, c)
	}
	return out
}

// extractText joins the answer parts of the first candidate, skipping
// thought summaries.
func extractText(resp *genai.GenerateContentResponse) string {
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return ""
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		text.WriteString(part.Text)
	}
	return text.String()
}
