package memory

import (
	"time"

	"github.com/google/uuid"

	"github.com/openrelief/newstracker/internal/content"
)

// Record is a processed, searchable unit derived from one community post or
// comment. At most one Record exists per (SourceKind, SourceID) pair;
// re-processing the same source overwrites it.
//
// Embedding is nil when the embedding call failed during indexing. Such
// records stay reachable through the location filter but are never scored
// by similarity.
type Record struct {
	ID                uuid.UUID    `json:"id"`
	SourceKind        content.Kind `json:"source_kind"`
	SourceID          string       `json:"source_id"`
	ProcessedContent  string       `json:"processed_content"`
	RawContent        string       `json:"-"` // kept for debugging, never searched
	Location          string       `json:"location,omitempty"`
	OriginalCreatedAt time.Time    `json:"original_created_at"`
	Embedding         []float32    `json:"-"`
	LastUpdated       time.Time    `json:"last_updated"`
}

// Embedded reports whether the record carries a usable embedding.
func (r *Record) Embedded() bool {
	return len(r.Embedding) > 0
}

// ScoredRecord pairs a Record with its similarity score for one query.
type ScoredRecord struct {
	Record Record  `json:"record"`
	Score  float64 `json:"score"`
}
