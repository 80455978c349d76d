package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/openrelief/newstracker/internal/config"
)

// OpenAICompatClient is the secondary completion tier. It speaks the OpenAI
// chat-completions wire format, which Groq (and most hosted inference
// endpoints) accept.
type OpenAICompatClient struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// NewOpenAICompat creates a client for an OpenAI-compatible endpoint.
func NewOpenAICompat(cfg config.GroqConfig) *OpenAICompatClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 8 * time.Second
	}
	return &OpenAICompatClient{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *OpenAICompatClient) Name() string { return "groq" }

// --- minimal OpenAI wire types ---

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiRequest struct {
	Model     string       `json:"model"`
	Messages  []oaiMessage `json:"messages"`
	MaxTokens int          `json:"max_tokens,omitempty"`
}

type oaiResponse struct {
	Choices []oaiChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

type oaiChoice struct {
	Message      oaiMessage `json:"message"`
	FinishReason string     `json:"finish_reason"`
}

// Complete sends a chat-completion request and returns the response text.
func (c *OpenAICompatClient) Complete(ctx context.Context, systemContext, userPrompt string) (string, error) {
	body := oaiRequest{
		Model: c.model,
		Messages: []oaiMessage{
			{Role: "system", Content: systemContext},
			{Role: "user", Content: userPrompt},
		},
		MaxTokens: 1024,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("groq: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions",
		bytes.NewReader(data),
	)
	if err != nil {
		return "", fmt.Errorf("groq: create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("groq: http request: %v: %w", err, ErrUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("groq: http 429: %w", ErrRateLimited)
	}
	if resp.StatusCode >= 500 {
		return "", fmt.Errorf("groq: http %d: %w", resp.StatusCode, ErrUnavailable)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("groq: read response body: %v: %w", err, ErrUnavailable)
	}

	var oaiResp oaiResponse
	if err := json.Unmarshal(respBody, &oaiResp); err != nil {
		return "", fmt.Errorf("groq: decode API response: %v: %w", err, ErrUnavailable)
	}

	if oaiResp.Error != nil {
		return "", fmt.Errorf("groq: API error (%s): %s: %w", oaiResp.Error.Type, oaiResp.Error.Message, ErrUnavailable)
	}

	if len(oaiResp.Choices) == 0 {
		return "", fmt.Errorf("groq: no choices returned (HTTP %d): %w", resp.StatusCode, ErrUnavailable)
	}

	return oaiResp.Choices[0].Message.Content, nil
}
