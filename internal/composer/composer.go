// Package composer turns a user question into an answer through a tiered
// fallback chain: a primary completion provider, a secondary provider, and
// a static template built from retrieved community reports. Every valid
// query terminates in one of the tiers; nothing past input validation is a
// user-visible error.
package composer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/openrelief/newstracker/internal/events"
	"github.com/openrelief/newstracker/internal/llm"
	"github.com/openrelief/newstracker/internal/memory"
	"github.com/openrelief/newstracker/internal/metrics"
	"github.com/openrelief/newstracker/internal/news"
	"github.com/openrelief/newstracker/internal/tracker"
)

// SourceStaticFallback tags answers produced without any external call.
const SourceStaticFallback = "static-fallback"

// ErrInvalidInput is returned when the query or location is empty. It is
// the only error Answer can return.
var ErrInvalidInput = errors.New("query and location are required")

// Result is one composed answer.
type Result struct {
	QueryID       uuid.UUID `json:"query_id"`
	DirectAnswer  string    `json:"direct_answer"`
	CommunityInfo string    `json:"community_info"`
	Source        string    `json:"source"`
	MemoryCount   int       `json:"memory_count"`
}

// Composer orchestrates retrieval, the provider chain and audit recording.
type Composer struct {
	retriever *memory.Retriever
	headlines *news.Client
	primary   llm.CompletionProvider
	secondary llm.CompletionProvider
	cooldown  *Cooldown
	queries   tracker.Repository
	publisher *events.Publisher

	topK    int
	timeout time.Duration
}

// New creates a Composer. secondary may be nil to skip the middle tier, and
// publisher may be nil.
func New(retriever *memory.Retriever, headlines *news.Client,
	primary, secondary llm.CompletionProvider, cooldown *Cooldown,
	queries tracker.Repository, publisher *events.Publisher,
	topK int, timeout time.Duration) *Composer {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Composer{
		retriever: retriever,
		headlines: headlines,
		primary:   primary,
		secondary: secondary,
		cooldown:  cooldown,
		queries:   queries,
		publisher: publisher,
		topK:      topK,
		timeout:   timeout,
	}
}

// Answer runs the full chain for one user question. It fails only on empty
// input; every downstream problem degrades to the next tier and the static
// tier always succeeds.
func (c *Composer) Answer(ctx context.Context, userID, query, location string) (Result, error) {
	if query == "" || location == "" {
		return Result{}, ErrInvalidInput
	}
	started := time.Now()

	matches, err := c.retriever.Retrieve(ctx, query, location, c.topK)
	if err != nil {
		// Retrieval errors mean "no memory available", not a failed answer.
		slog.Warn("composer: retrieval failed", "error", err)
		matches = nil
	}

	var headlines []news.Headline
	if c.headlines != nil {
		headlines = c.headlines.Headlines(ctx, location)
	}

	direct, community, source := c.compose(ctx, query, location, matches, headlines)

	result := Result{
		DirectAnswer:  direct,
		CommunityInfo: community,
		Source:        source,
		MemoryCount:   len(matches),
	}
	result.QueryID = c.record(ctx, userID, query, location, matches, result)

	metrics.QueriesAnsweredTotal.WithLabelValues(source).Inc()
	c.publishAnswered(ctx, userID, location, result, started)
	return result, nil
}

// compose walks the provider tiers and returns the first answer produced.
func (c *Composer) compose(ctx context.Context, query, location string,
	matches []memory.ScoredRecord, headlines []news.Headline) (direct, community, source string) {

	if c.cooldown != nil && c.cooldown.Active() {
		slog.Info("composer: rate-limit cooldown active, using static answer")
		direct, community = staticAnswer(location, matches, headlines)
		return direct, community, SourceStaticFallback
	}

	raw, err := c.complete(ctx, c.primary, primarySystem,
		buildPrimaryPrompt(query, location, matches, headlines))
	if err == nil {
		direct, community = parseSections(raw)
		return direct, community, c.primary.Name()
	}
	c.noteFailure(c.primary, err)

	if c.secondary != nil {
		raw, err = c.complete(ctx, c.secondary, secondarySystem,
			buildSecondaryPrompt(query, location, matches))
		if err == nil {
			direct, community = parseSections(raw)
			return direct, community, c.secondary.Name()
		}
		c.noteFailure(c.secondary, err)
	}

	direct, community = staticAnswer(location, matches, headlines)
	return direct, community, SourceStaticFallback
}

func (c *Composer) complete(ctx context.Context, provider llm.CompletionProvider,
	system, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return provider.Complete(callCtx, system, prompt)
}

// noteFailure logs a tier failure and arms the cooldown on rate limits, so
// the next query inside the window skips the network entirely.
func (c *Composer) noteFailure(provider llm.CompletionProvider, err error) {
	if llm.IsRateLimited(err) && c.cooldown != nil {
		c.cooldown.Trip()
	}
	slog.Warn("composer: completion provider failed",
		"provider", provider.Name(), "error", err)
}

// record persists the audit record. Persistence failures are logged, never
// surfaced; the user still gets their answer.
func (c *Composer) record(ctx context.Context, userID, query, location string,
	matches []memory.ScoredRecord, result Result) uuid.UUID {
	if c.queries == nil {
		return uuid.Nil
	}

	relatedIDs := make([]uuid.UUID, 0, len(matches))
	for _, m := range matches {
		relatedIDs = append(relatedIDs, m.Record.ID)
	}

	status := tracker.StatusProcessed
	if result.Source == SourceStaticFallback {
		status = tracker.StatusFailed
	}

	rec := &tracker.QueryRecord{
		UserID:            userID,
		QueryText:         query,
		LocationFilter:    location,
		CommunityResponse: result.CommunityInfo,
		ModelResponse:     result.DirectAnswer,
		RelatedMemoryIDs:  relatedIDs,
		Status:            status,
		Source:            result.Source,
	}
	if err := c.queries.Create(ctx, rec); err != nil {
		slog.Error("composer: persisting query record failed", "error", err)
		return uuid.Nil
	}
	return rec.ID
}

func (c *Composer) publishAnswered(ctx context.Context, userID, location string,
	result Result, started time.Time) {
	err := c.publisher.PublishQueryAnswered(ctx, events.QueryAnswered{
		QueryID:     result.QueryID,
		UserID:      userID,
		Location:    location,
		Source:      result.Source,
		MemoryCount: result.MemoryCount,
		AnsweredAt:  time.Now(),
		DurationMs:  time.Since(started).Milliseconds(),
	})
	if err != nil {
		slog.Warn("composer: publishing query event failed", "error", err)
	}
}
