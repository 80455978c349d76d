// Package llmtest provides deterministic in-process fakes for the llm
// interfaces, for use in package tests.
package llmtest

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
)

// Embedder generates deterministic embeddings from a text hash, so tests get
// stable vectors without a network call. Fixed vectors can be pinned per
// input with Set.
type Embedder struct {
	Dims int
	Err  error // returned by every Embed call when non-nil

	mu     sync.Mutex
	pinned map[string][]float32
	calls  int
}

// NewEmbedder creates an 8-dimension deterministic embedder.
func NewEmbedder() *Embedder {
	return &Embedder{Dims: 8, pinned: map[string][]float32{}}
}

// Set pins the vector returned for an exact input text.
func (e *Embedder) Set(text string, vec []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pinned[text] = vec
}

// Calls returns how many times Embed was invoked.
func (e *Embedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func (e *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	pinned, ok := e.pinned[text]
	e.mu.Unlock()

	if e.Err != nil {
		return nil, e.Err
	}
	if ok {
		return pinned, nil
	}

	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, e.Dims)
	var norm float64
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed)) / float32(math.MaxInt64)
		norm += float64(vec[i]) * float64(vec[i])
	}
	if norm > 0 {
		n := float32(math.Sqrt(norm))
		for i := range vec {
			vec[i] /= n
		}
	}
	return vec, nil
}

func (e *Embedder) Dimensions() int { return e.Dims }

// Summarizer returns its input trimmed and prefixed, or a fixed error.
type Summarizer struct {
	Err   error
	calls int
	mu    sync.Mutex
}

func (s *Summarizer) Summarize(_ context.Context, text string) (string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.Err != nil {
		return "", s.Err
	}
	return "summary: " + strings.TrimSpace(text), nil
}

func (s *Summarizer) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Provider is a scripted CompletionProvider: each call returns the next
// response in sequence, repeating the last one when the script runs out.
type Provider struct {
	ProviderName string
	Responses    []string
	Errs         []error

	mu    sync.Mutex
	calls int
}

func (p *Provider) Name() string {
	if p.ProviderName == "" {
		return "fake"
	}
	return p.ProviderName
}

func (p *Provider) Complete(_ context.Context, _, _ string) (string, error) {
	p.mu.Lock()
	i := p.calls
	p.calls++
	p.mu.Unlock()

	if len(p.Errs) > 0 {
		idx := i
		if idx >= len(p.Errs) {
			idx = len(p.Errs) - 1
		}
		if p.Errs[idx] != nil {
			return "", p.Errs[idx]
		}
	}
	if len(p.Responses) == 0 {
		return "", nil
	}
	idx := i
	if idx >= len(p.Responses) {
		idx = len(p.Responses) - 1
	}
	return p.Responses[idx], nil
}

// Calls returns how many times Complete was invoked.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}
