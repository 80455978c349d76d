package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/openrelief/newstracker/internal/llm"
	"github.com/openrelief/newstracker/internal/metrics"
)

// DefaultTopK is the number of records returned when the caller does not
// specify k.
const DefaultTopK = 5

// Retriever scores stored memory records against a query embedding and
// returns the most relevant ones. The scan is linear over all candidates,
// which is fine at the hundreds-to-low-thousands scale this service holds.
type Retriever struct {
	repo     Repository
	embedder llm.Embedder
}

// NewRetriever creates a new Retriever.
func NewRetriever(repo Repository, embedder llm.Embedder) *Retriever {
	return &Retriever{repo: repo, embedder: embedder}
}

// Retrieve returns up to k records ranked by descending similarity to the
// query. When locationFilter is non-empty only records whose location
// contains the filter (case-insensitive) are considered.
//
// An embedding failure is not an error to the caller: the tracker has a
// defined answer path for "no memory available", so Retrieve degrades to an
// empty result and logs the cause.
func (r *Retriever) Retrieve(ctx context.Context, query, locationFilter string, k int) ([]ScoredRecord, error) {
	if k <= 0 {
		k = DefaultTopK
	}

	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		slog.Warn("retriever: query embedding failed, returning no matches", "error", err)
		return nil, nil
	}

	candidates, err := r.repo.Candidates(ctx, locationFilter)
	if err != nil {
		return nil, fmt.Errorf("loading candidates: %w", err)
	}

	scored := make([]ScoredRecord, 0, len(candidates))
	for _, rec := range candidates {
		if !rec.Embedded() {
			continue // location-filter-only record, no similarity standing
		}
		scored = append(scored, ScoredRecord{
			Record: rec,
			Score:  dotProduct(queryVec, rec.Embedding),
		})
	}

	// Stable sort keeps candidate storage order as the tie-break.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > k {
		scored = scored[:k]
	}

	metrics.MemoryRecordsRetrieved.Observe(float64(len(scored)))
	return scored, nil
}

// dotProduct assumes the embedding model returns comparable-magnitude
// vectors, so no re-normalization happens here. Mismatched lengths score
// over the shorter prefix rather than panicking.
func dotProduct(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
