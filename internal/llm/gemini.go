package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/genai"

	"github.com/openrelief/newstracker/internal/config"
	"github.com/openrelief/newstracker/internal/metrics"
)

// geminiEmbeddingDims matches the text-embedding-004 output dimensionality.
const geminiEmbeddingDims = 768

// GeminiClient is the primary provider: it serves embeddings, summarization
// and the first completion tier. Completion models form an ordered fallback
// chain tried in sequence.
type GeminiClient struct {
	client         *genai.Client
	models         []string
	embeddingModel string
	timeout        time.Duration
}

// NewGemini creates a Gemini client authenticated with an API key.
func NewGemini(ctx context.Context, cfg config.GeminiConfig) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return &GeminiClient{
		client:         client,
		models:         cfg.Models,
		embeddingModel: cfg.EmbeddingModel,
		timeout:        cfg.Timeout,
	}, nil
}

func (g *GeminiClient) Name() string { return "gemini" }

// Dimensions returns the embedding vector size.
func (g *GeminiClient) Dimensions() int { return geminiEmbeddingDims }

// Embed converts text into an embedding vector.
func (g *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	dims := int32(geminiEmbeddingDims)
	resp, err := g.client.Models.EmbedContent(ctx, g.embeddingModel, genai.Text(text), &genai.EmbedContentConfig{
		OutputDimensionality: &dims,
	})
	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues("error").Inc()
		return nil, classify(err, "embedding")
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		metrics.EmbeddingRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("embedding: empty response: %w", ErrUnavailable)
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues("ok").Inc()
	return resp.Embeddings[0].Values, nil
}

const summarizeSystem = `You condense community disaster reports into short, factual summaries.
Keep locations, dates, hazards and needs. Drop greetings, signatures and filler.
Respond with the summary only, two sentences at most.`

// Summarize condenses raw community content into searchable text.
func (g *GeminiClient) Summarize(ctx context.Context, text string) (string, error) {
	return g.generate(ctx, summarizeSystem, text)
}

// Complete generates free text for the answer composer.
func (g *GeminiClient) Complete(ctx context.Context, systemContext, userPrompt string) (string, error) {
	return g.generate(ctx, systemContext, userPrompt)
}

// generate walks the model fallback chain. A rate-limit result from any
// model is remembered so the chain reports ErrRateLimited when every model
// fails and at least one was throttled.
func (g *GeminiClient) generate(ctx context.Context, system, prompt string) (string, error) {
	var lastErr error
	rateLimited := false

	for _, model := range g.models {
		text, err := g.generateWith(ctx, model, system, prompt)
		if err == nil {
			return text, nil
		}
		if IsRateLimited(err) {
			rateLimited = true
		}
		slog.Warn("gemini model failed, trying next", "model", model, "error", err)
		lastErr = err
	}

	if lastErr == nil {
		return "", fmt.Errorf("gemini: no models configured: %w", ErrUnavailable)
	}
	if rateLimited && !IsRateLimited(lastErr) {
		return "", fmt.Errorf("gemini: all models failed, at least one throttled: %w", ErrRateLimited)
	}
	return "", lastErr
}

func (g *GeminiClient) generateWith(ctx context.Context, model, system, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}
	cfg := &genai.GenerateContentConfig{}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := g.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return "", classify(err, "gemini "+model)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini %s: empty response: %w", model, ErrUnavailable)
	}

	var out string
	for _, part := range resp.Candidates[0].Content.Parts {
		out += part.Text
	}
	if out == "" {
		return "", fmt.Errorf("gemini %s: no text parts: %w", model, ErrUnavailable)
	}
	return out, nil
}

// classify maps transport and API errors onto the package error taxonomy.
func classify(err error, op string) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == 429 {
		return fmt.Errorf("%s: %s: %w", op, apiErr.Message, ErrRateLimited)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: timeout: %w", op, ErrUnavailable)
	}
	return fmt.Errorf("%s: %v: %w", op, err, ErrUnavailable)
}
