package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	StreamTracker = "TRACKER"

	SubjectQueryAnswered  = "tracker.query.answered"
	SubjectIndexCompleted = "tracker.index.completed"
)

// QueryAnswered is published after each tracker query finishes, regardless
// of which fallback tier produced the answer.
type QueryAnswered struct {
	QueryID      uuid.UUID `json:"query_id"`
	UserID       string    `json:"user_id"`
	Location     string    `json:"location"`
	Source       string    `json:"source"`
	MemoryCount  int       `json:"memory_count"`
	AnsweredAt   time.Time `json:"answered_at"`
	DurationMs   int64     `json:"duration_ms"`
}

// IndexCompleted is published after each indexer batch.
type IndexCompleted struct {
	Kind        string    `json:"kind"`
	Processed   int       `json:"processed"`
	Skipped     int       `json:"skipped"`
	Failed      int       `json:"failed"`
	CompletedAt time.Time `json:"completed_at"`
}
