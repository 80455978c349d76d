package indexer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openrelief/newstracker/internal/content"
	"github.com/openrelief/newstracker/internal/llm/llmtest"
	"github.com/openrelief/newstracker/internal/memory/memorytest"
)

// fakeContentRepo is an in-memory content.Repository.
type fakeContentRepo struct {
	items []content.SourceItem
}

func (f *fakeContentRepo) FindSince(_ context.Context, kind content.Kind, since time.Time, limit int) ([]content.SourceItem, error) {
	var out []content.SourceItem
	for _, item := range f.items {
		if item.Kind == kind && item.CreatedAt.After(since) {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeContentRepo) FindRecent(_ context.Context, kind content.Kind, limit int) ([]content.SourceItem, error) {
	var out []content.SourceItem
	for _, item := range f.items {
		if item.Kind == kind {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (f *fakeContentRepo) FindByID(_ context.Context, kind content.Kind, id string) (*content.SourceItem, error) {
	for _, item := range f.items {
		if item.Kind == kind && item.ID == id {
			return &item, nil
		}
	}
	return nil, nil
}

func post(id string, createdAt time.Time, text string) content.SourceItem {
	return content.SourceItem{ID: id, Kind: content.KindPost, Content: text, CreatedAt: createdAt}
}

func newIndexer(contentRepo content.Repository, records *memorytest.Repository,
	summarizer *llmtest.Summarizer, embedder *llmtest.Embedder) *Indexer {
	return New(contentRepo, records, summarizer, embedder, nil, 50, 500)
}

func TestProcessNew_IndexesAndIsIdempotent(t *testing.T) {
	t1 := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	contentRepo := &fakeContentRepo{items: []content.SourceItem{
		post("p1", t1, "Flooding reported on Main Street, water rising fast"),
		post("p2", t2, "Power outage affecting the north side neighborhoods"),
	}}
	records := memorytest.NewRepository()
	ix := newIndexer(contentRepo, records, &llmtest.Summarizer{}, llmtest.NewEmbedder())

	result, err := ix.ProcessNew(context.Background(), content.KindPost)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed)
	assert.Zero(t, result.Skipped)

	all := records.All()
	require.Len(t, all, 2)
	assert.Equal(t, "p1", all[0].SourceID)
	assert.Equal(t, content.KindPost, all[0].SourceKind)
	assert.True(t, all[0].Embedded())
	assert.True(t, strings.HasPrefix(all[0].ProcessedContent, "summary: "))

	// Second run: watermark excludes everything, no duplicates appear.
	result, err = ix.ProcessNew(context.Background(), content.KindPost)
	require.NoError(t, err)
	assert.Zero(t, result.Processed)
	assert.Len(t, records.All(), 2)
}

func TestProcessNew_WatermarkAdvancesMonotonically(t *testing.T) {
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	contentRepo := &fakeContentRepo{items: []content.SourceItem{
		post("p1", base, "First report, long enough to clear the minimum"),
	}}
	records := memorytest.NewRepository()
	ix := newIndexer(contentRepo, records, &llmtest.Summarizer{}, llmtest.NewEmbedder())

	ctx := context.Background()
	var lastWM time.Time
	for i := 0; i < 3; i++ {
		_, err := ix.ProcessNew(ctx, content.KindPost)
		require.NoError(t, err)

		wm, err := records.Watermark(ctx, content.KindPost)
		require.NoError(t, err)
		assert.False(t, wm.Before(lastWM), "watermark moved backward on run %d", i+1)
		lastWM = wm

		// New content arrives between runs
		contentRepo.items = append(contentRepo.items,
			post(fmt.Sprintf("p%d", i+2), base.Add(time.Duration(i+1)*time.Hour),
				"Another report with enough words to be indexed"))
	}
}

func TestProcessNew_SkipsShortContent(t *testing.T) {
	t1 := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	contentRepo := &fakeContentRepo{items: []content.SourceItem{
		post("short", t1, "too short"),
		{ID: "c-short", Kind: content.KindComment, Content: "brief", CreatedAt: t1},
		{ID: "c-ok", Kind: content.KindComment, Content: "fifteen chars ok", CreatedAt: t1},
	}}
	records := memorytest.NewRepository()
	ix := newIndexer(contentRepo, records, &llmtest.Summarizer{}, llmtest.NewEmbedder())

	result, err := ix.ProcessNew(context.Background(), content.KindPost)
	require.NoError(t, err)
	assert.Zero(t, result.Processed)
	assert.Equal(t, 1, result.Skipped)

	result, err = ix.ProcessNew(context.Background(), content.KindComment)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Skipped)
	assert.Len(t, records.All(), 1)
}

func TestProcessNew_SummarizerFailureDegrades(t *testing.T) {
	t1 := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	longText := strings.Repeat("flood water rising ", 20)
	contentRepo := &fakeContentRepo{items: []content.SourceItem{post("p1", t1, longText)}}
	records := memorytest.NewRepository()
	summarizer := &llmtest.Summarizer{Err: errors.New("summarizer down")}
	ix := newIndexer(contentRepo, records, summarizer, llmtest.NewEmbedder())

	result, err := ix.ProcessNew(context.Background(), content.KindPost)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Degraded)

	all := records.All()
	require.Len(t, all, 1)
	assert.LessOrEqual(t, len(all[0].ProcessedContent), 200)
	assert.True(t, strings.HasPrefix(longText, all[0].ProcessedContent))
	assert.True(t, all[0].Embedded(), "embedding still attempted on fallback summary")
}

func TestProcessNew_EmbeddingFailureStoresUnembedded(t *testing.T) {
	t1 := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	contentRepo := &fakeContentRepo{items: []content.SourceItem{
		post("p1", t1, "A report long enough to pass the length check"),
	}}
	records := memorytest.NewRepository()
	embedder := llmtest.NewEmbedder()
	embedder.Err = errors.New("embedding API down")
	ix := newIndexer(contentRepo, records, &llmtest.Summarizer{}, embedder)

	result, err := ix.ProcessNew(context.Background(), content.KindPost)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Degraded)

	all := records.All()
	require.Len(t, all, 1)
	assert.False(t, all[0].Embedded())
}

func TestProcessNew_WrongWidthEmbeddingStoredUnembedded(t *testing.T) {
	t1 := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	raw := "A report long enough to pass the length check"
	contentRepo := &fakeContentRepo{items: []content.SourceItem{post("p1", t1, raw)}}
	records := memorytest.NewRepository()
	embedder := llmtest.NewEmbedder()
	// Vector narrower than the embedder's declared width.
	embedder.Set("summary: "+raw, []float32{1, 2, 3})
	ix := newIndexer(contentRepo, records, &llmtest.Summarizer{}, embedder)

	result, err := ix.ProcessNew(context.Background(), content.KindPost)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Degraded)

	all := records.All()
	require.Len(t, all, 1)
	assert.False(t, all[0].Embedded(), "mismatched vector must not be stored")
}

func TestProcessNew_LocationFallsBackToAuthor(t *testing.T) {
	t1 := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	contentRepo := &fakeContentRepo{items: []content.SourceItem{
		{ID: "p1", Kind: content.KindPost, Content: "Report with its own location attached here",
			Location: "Springfield", AuthorLocation: "Boston", CreatedAt: t1},
		{ID: "p2", Kind: content.KindPost, Content: "Report relying on the author profile location",
			AuthorLocation: "Boston", CreatedAt: t1.Add(time.Minute)},
	}}
	records := memorytest.NewRepository()
	ix := newIndexer(contentRepo, records, &llmtest.Summarizer{}, llmtest.NewEmbedder())

	_, err := ix.ProcessNew(context.Background(), content.KindPost)
	require.NoError(t, err)

	all := records.All()
	require.Len(t, all, 2)
	assert.Equal(t, "Springfield", all[0].Location)
	assert.Equal(t, "Boston", all[1].Location)
}

func TestProcessAll_IdempotentUpsert(t *testing.T) {
	t1 := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	contentRepo := &fakeContentRepo{items: []content.SourceItem{
		post("p1", t1, "Flooding reported on Main Street, water rising fast"),
		{ID: "c1", Kind: content.KindComment, Content: "Stay away from Main St", CreatedAt: t1},
	}}
	records := memorytest.NewRepository()
	ix := newIndexer(contentRepo, records, &llmtest.Summarizer{}, llmtest.NewEmbedder())

	results, err := ix.ProcessAll(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Len(t, records.All(), 2)

	// Running again overwrites rather than duplicates.
	_, err = ix.ProcessAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, records.All(), 2)
}

func TestProcessNew_RespectsBatchSize(t *testing.T) {
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	contentRepo := &fakeContentRepo{}
	for i := 0; i < 10; i++ {
		contentRepo.items = append(contentRepo.items,
			post(fmt.Sprintf("p%d", i), base.Add(time.Duration(i)*time.Minute),
				"A community report long enough to be indexed"))
	}
	records := memorytest.NewRepository()
	ix := New(contentRepo, records, &llmtest.Summarizer{}, llmtest.NewEmbedder(), nil, 3, 500)

	result, err := ix.ProcessNew(context.Background(), content.KindPost)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Processed)

	// The next run picks up where the watermark left off.
	result, err = ix.ProcessNew(context.Background(), content.KindPost)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Processed)
	assert.Len(t, records.All(), 6)
}
