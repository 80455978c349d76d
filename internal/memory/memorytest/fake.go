// Package memorytest provides an in-memory memory.Repository for tests.
package memorytest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openrelief/newstracker/internal/content"
	"github.com/openrelief/newstracker/internal/memory"
)

// Repository is an in-memory memory.Repository. Records keep insertion
// order, matching the stable storage order the Postgres implementation
// guarantees.
type Repository struct {
	mu      sync.Mutex
	records []memory.Record
}

// NewRepository creates an empty fake repository.
func NewRepository() *Repository {
	return &Repository{}
}

func (r *Repository) Upsert(_ context.Context, rec *memory.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	rec.LastUpdated = time.Now()

	for i := range r.records {
		if r.records[i].SourceKind == rec.SourceKind && r.records[i].SourceID == rec.SourceID {
			id := r.records[i].ID
			r.records[i] = *rec
			r.records[i].ID = id
			return nil
		}
	}
	r.records = append(r.records, *rec)
	return nil
}

func (r *Repository) Exists(_ context.Context, kind content.Kind, sourceID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.SourceKind == kind && rec.SourceID == sourceID {
			return true, nil
		}
	}
	return false, nil
}

func (r *Repository) Watermark(_ context.Context, kind content.Kind) (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var wm time.Time
	for _, rec := range r.records {
		if rec.SourceKind == kind && rec.OriginalCreatedAt.After(wm) {
			wm = rec.OriginalCreatedAt
		}
	}
	return wm, nil
}

func (r *Repository) Candidates(_ context.Context, locationFilter string) ([]memory.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	filter := strings.ToLower(locationFilter)
	var out []memory.Record
	for _, rec := range r.records {
		if filter != "" && !strings.Contains(strings.ToLower(rec.Location), filter) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *Repository) CountByKind(_ context.Context, kind content.Kind) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, rec := range r.records {
		if rec.SourceKind == kind {
			n++
		}
	}
	return n, nil
}

// All returns a copy of every stored record in insertion order.
func (r *Repository) All() []memory.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]memory.Record, len(r.records))
	copy(out, r.records)
	return out
}
