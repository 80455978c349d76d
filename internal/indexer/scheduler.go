package indexer

import (
	"context"
	"log/slog"
	"time"

	"github.com/openrelief/newstracker/internal/content"
)

// Scheduler runs the indexer on a periodic timer, one loop per content
// kind. The comment loop is offset from the post loop so the two batches do
// not contend for the same provider quota. A single run also fires shortly
// after startup so a fresh deployment catches up without waiting a full
// interval.
type Scheduler struct {
	indexer       *Indexer
	startupDelay  time.Duration
	interval      time.Duration
	commentOffset time.Duration
}

// NewScheduler creates a Scheduler around an Indexer.
func NewScheduler(indexer *Indexer, startupDelay, interval, commentOffset time.Duration) *Scheduler {
	return &Scheduler{
		indexer:       indexer,
		startupDelay:  startupDelay,
		interval:      interval,
		commentOffset: commentOffset,
	}
}

// Run starts the background loops and returns immediately. The loops stop
// when ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	go s.loop(ctx, content.KindPost, s.startupDelay)
	go s.loop(ctx, content.KindComment, s.startupDelay+s.commentOffset)
}

func (s *Scheduler) loop(ctx context.Context, kind content.Kind, initialDelay time.Duration) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(initialDelay):
	}

	s.runOnce(ctx, kind)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, kind)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, kind content.Kind) {
	start := time.Now()
	result, err := s.indexer.ProcessNew(ctx, kind)
	if err != nil {
		slog.Error("indexer run failed", "kind", kind, "error", err)
		return
	}
	slog.Info("indexer run completed",
		"kind", kind,
		"processed", result.Processed,
		"degraded", result.Degraded,
		"skipped", result.Skipped,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
