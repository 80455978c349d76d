// Package indexer materializes community posts and comments into searchable
// memory records. It runs as a background job: incremental batches advance a
// per-kind watermark, and an admin-triggered full pass re-processes recent
// history for backfill and repair.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openrelief/newstracker/internal/content"
	"github.com/openrelief/newstracker/internal/events"
	"github.com/openrelief/newstracker/internal/llm"
	"github.com/openrelief/newstracker/internal/memory"
	"github.com/openrelief/newstracker/internal/metrics"
)

// Minimum content lengths below which a source item is not worth indexing.
const (
	minPostLength    = 20
	minCommentLength = 15
)

// fallbackSummaryLen caps the truncated summary stored when the
// summarization call fails.
const fallbackSummaryLen = 200

// BatchResult summarizes one indexing pass over a single kind.
type BatchResult struct {
	Kind      content.Kind `json:"kind"`
	Processed int          `json:"processed"` // fully summarized and embedded
	Degraded  int          `json:"degraded"`  // stored with fallback summary or no embedding
	Skipped   int          `json:"skipped"`   // duplicate or below minimum length
}

// Indexer converts new source content into memory records.
type Indexer struct {
	contentRepo content.Repository
	records     memory.Repository
	summarizer  llm.Summarizer
	embedder    llm.Embedder
	publisher   *events.Publisher

	batchSize      int
	reprocessLimit int
}

// New creates an Indexer. publisher may be nil.
func New(contentRepo content.Repository, records memory.Repository,
	summarizer llm.Summarizer, embedder llm.Embedder, publisher *events.Publisher,
	batchSize, reprocessLimit int) *Indexer {
	return &Indexer{
		contentRepo:    contentRepo,
		records:        records,
		summarizer:     summarizer,
		embedder:       embedder,
		publisher:      publisher,
		batchSize:      batchSize,
		reprocessLimit: reprocessLimit,
	}
}

func minLength(kind content.Kind) int {
	if kind == content.KindComment {
		return minCommentLength
	}
	return minPostLength
}

// ProcessNew indexes source items created after the current watermark for
// one kind. Items are handled oldest-first so the watermark only ever moves
// forward, and a failure on one item never aborts the batch.
func (ix *Indexer) ProcessNew(ctx context.Context, kind content.Kind) (BatchResult, error) {
	result := BatchResult{Kind: kind}

	watermark, err := ix.records.Watermark(ctx, kind)
	if err != nil {
		return result, fmt.Errorf("reading watermark: %w", err)
	}

	items, err := ix.contentRepo.FindSince(ctx, kind, watermark, ix.batchSize)
	if err != nil {
		return result, fmt.Errorf("finding new %s items: %w", kind, err)
	}

	for _, item := range items {
		// The watermark query can race a concurrent run; the existence
		// check keeps (kind, id) pairs unique either way.
		exists, err := ix.records.Exists(ctx, kind, item.ID)
		if err != nil {
			return result, fmt.Errorf("checking record %s/%s: %w", kind, item.ID, err)
		}
		if exists {
			result.Skipped++
			metrics.ItemsIndexedTotal.WithLabelValues(string(kind), "skipped").Inc()
			continue
		}
		ix.indexItem(ctx, item, &result)
	}

	ix.publishResult(ctx, result)
	return result, nil
}

// ProcessAll re-indexes the most recent items of every kind regardless of
// the watermark. Upserts make it idempotent, and since re-processing never
// writes an original_created_at older than what already exists, the
// incremental watermark cannot move backward. After the sweep, records
// whose source was deleted are removed.
func (ix *Indexer) ProcessAll(ctx context.Context) ([]BatchResult, error) {
	var results []BatchResult
	for _, kind := range []content.Kind{content.KindPost, content.KindComment} {
		result := BatchResult{Kind: kind}

		items, err := ix.contentRepo.FindRecent(ctx, kind, ix.reprocessLimit)
		if err != nil {
			return results, fmt.Errorf("finding recent %s items: %w", kind, err)
		}

		for _, item := range items {
			ix.indexItem(ctx, item, &result)
		}

		if deleter, ok := ix.records.(interface {
			DeleteOrphans(context.Context, content.Kind) (int64, error)
		}); ok {
			deleted, err := deleter.DeleteOrphans(ctx, kind)
			if err != nil {
				slog.Warn("indexer: orphan cleanup failed", "kind", kind, "error", err)
			} else if deleted > 0 {
				slog.Info("indexer: removed orphaned records", "kind", kind, "count", deleted)
			}
		}

		ix.publishResult(ctx, result)
		results = append(results, result)
	}
	return results, nil
}

// indexItem summarizes, embeds and upserts one source item. Provider
// failures degrade the record instead of dropping it: a failed summary is
// replaced by truncated raw text, a failed embedding leaves the record
// unembedded and therefore reachable only through the location filter.
func (ix *Indexer) indexItem(ctx context.Context, item content.SourceItem, result *BatchResult) {
	if len(item.Content) < minLength(item.Kind) {
		result.Skipped++
		metrics.ItemsIndexedTotal.WithLabelValues(string(item.Kind), "skipped").Inc()
		return
	}

	degraded := false

	processed, err := ix.summarizer.Summarize(ctx, item.Content)
	if err != nil {
		slog.Warn("indexer: summarization failed, storing truncated text",
			"kind", item.Kind, "id", item.ID, "error", err)
		processed = truncate(item.Content, fallbackSummaryLen)
		degraded = true
	}

	embedding, err := ix.embedder.Embed(ctx, processed)
	if err != nil {
		slog.Warn("indexer: embedding failed, storing unembedded record",
			"kind", item.Kind, "id", item.ID, "error", err)
		embedding = nil
		degraded = true
	} else if len(embedding) != ix.embedder.Dimensions() {
		// A wrong-width vector would be rejected by the typed column anyway;
		// degrade here so the record itself still lands.
		slog.Warn("indexer: embedding width mismatch, storing unembedded record",
			"kind", item.Kind, "id", item.ID,
			"got", len(embedding), "want", ix.embedder.Dimensions())
		embedding = nil
		degraded = true
	}

	rec := &memory.Record{
		SourceKind:        item.Kind,
		SourceID:          item.ID,
		ProcessedContent:  processed,
		RawContent:        item.Content,
		Location:          item.EffectiveLocation(),
		OriginalCreatedAt: item.CreatedAt,
		Embedding:         embedding,
	}
	if err := ix.records.Upsert(ctx, rec); err != nil {
		slog.Error("indexer: upsert failed", "kind", item.Kind, "id", item.ID, "error", err)
		result.Degraded++
		metrics.ItemsIndexedTotal.WithLabelValues(string(item.Kind), "failed").Inc()
		return
	}

	if degraded {
		result.Degraded++
		metrics.ItemsIndexedTotal.WithLabelValues(string(item.Kind), "degraded").Inc()
	} else {
		result.Processed++
		metrics.ItemsIndexedTotal.WithLabelValues(string(item.Kind), "processed").Inc()
	}
}

func (ix *Indexer) publishResult(ctx context.Context, result BatchResult) {
	err := ix.publisher.PublishIndexCompleted(ctx, events.IndexCompleted{
		Kind:        string(result.Kind),
		Processed:   result.Processed,
		Skipped:     result.Skipped,
		Failed:      result.Degraded,
		CompletedAt: time.Now(),
	})
	if err != nil {
		slog.Warn("indexer: publishing batch event failed", "error", err)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
