// Package trackertest provides an in-memory tracker.Repository for tests.
package trackertest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openrelief/newstracker/internal/tracker"
)

// Repository is an in-memory tracker.Repository.
type Repository struct {
	mu      sync.Mutex
	records []tracker.QueryRecord

	// Err, when set, is returned by every Create call.
	Err error
}

// NewRepository creates an empty fake repository.
func NewRepository() *Repository {
	return &Repository{}
}

func (r *Repository) Create(_ context.Context, rec *tracker.QueryRecord) error {
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	r.records = append(r.records, *rec)
	return nil
}

func (r *Repository) ListByUser(_ context.Context, userID string, limit, offset int) ([]tracker.QueryRecord, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var mine []tracker.QueryRecord
	for i := len(r.records) - 1; i >= 0; i-- {
		if r.records[i].UserID == userID {
			mine = append(mine, r.records[i])
		}
	}
	total := int64(len(mine))
	if offset >= len(mine) {
		return nil, total, nil
	}
	mine = mine[offset:]
	if len(mine) > limit {
		mine = mine[:limit]
	}
	return mine, total, nil
}

// All returns a copy of every stored record in insertion order.
func (r *Repository) All() []tracker.QueryRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]tracker.QueryRecord, len(r.records))
	copy(out, r.records)
	return out
}
