// Package llm holds the external model clients the tracker depends on:
// an embedding generator, a summarizer, and the completion providers used
// by the answer fallback chain.
package llm

import "context"

// Embedder converts text to a fixed-dimension vector. All vectors produced
// by one Embedder are comparable with each other.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// Summarizer condenses raw community content into a short searchable text.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// CompletionProvider generates free text from a system context and a user
// prompt. Implementations classify failures via ErrRateLimited and
// ErrUnavailable so callers can decide which fallback tier to take.
type CompletionProvider interface {
	Complete(ctx context.Context, systemContext, userPrompt string) (string, error)
	Name() string
}
