package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openrelief/newstracker/internal/composer"
	"github.com/openrelief/newstracker/internal/content"
	"github.com/openrelief/newstracker/internal/indexer"
	"github.com/openrelief/newstracker/internal/llm/llmtest"
	"github.com/openrelief/newstracker/internal/memory"
	"github.com/openrelief/newstracker/internal/memory/memorytest"
	mw "github.com/openrelief/newstracker/internal/middleware"
	"github.com/openrelief/newstracker/internal/tracker"
	"github.com/openrelief/newstracker/internal/tracker/trackertest"
)

type stubContentRepo struct {
	items []content.SourceItem
}

func (s *stubContentRepo) FindSince(_ context.Context, kind content.Kind, since time.Time, limit int) ([]content.SourceItem, error) {
	return s.filter(kind, limit), nil
}

func (s *stubContentRepo) FindRecent(_ context.Context, kind content.Kind, limit int) ([]content.SourceItem, error) {
	return s.filter(kind, limit), nil
}

func (s *stubContentRepo) FindByID(_ context.Context, kind content.Kind, id string) (*content.SourceItem, error) {
	return nil, nil
}

func (s *stubContentRepo) filter(kind content.Kind, limit int) []content.SourceItem {
	var out []content.SourceItem
	for _, item := range s.items {
		if item.Kind == kind && len(out) < limit {
			out = append(out, item)
		}
	}
	return out
}

// ctxSummarizer fails when its context is already cancelled, exposing which
// context a caller runs it under.
type ctxSummarizer struct{}

func (ctxSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "summary: " + text, nil
}

type handlerFixture struct {
	handlers *Handlers
	primary  *llmtest.Provider
	queries  *trackertest.Repository
	records  *memorytest.Repository
	embedder *llmtest.Embedder
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	f := &handlerFixture{
		primary:  &llmtest.Provider{ProviderName: "primary", Responses: []string{"DIRECT ANSWER: ok"}},
		queries:  trackertest.NewRepository(),
		records:  memorytest.NewRepository(),
		embedder: llmtest.NewEmbedder(),
	}
	retriever := memory.NewRetriever(f.records, f.embedder)
	comp := composer.New(retriever, nil, f.primary, nil,
		composer.NewCooldown(time.Minute), f.queries, nil, 5, time.Second)
	contentRepo := &stubContentRepo{items: []content.SourceItem{
		{ID: "p1", Kind: content.KindPost, Content: "Flooding reported on Main Street today",
			CreatedAt: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)},
	}}
	ix := indexer.New(contentRepo, f.records, &llmtest.Summarizer{}, f.embedder, nil, 50, 500)
	f.handlers = NewHandlers(comp, retriever, f.queries, ix)
	return f
}

func doJSON(t *testing.T, handler http.Handler, method, target, userID, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestQueryHandler(t *testing.T) {
	f := newHandlerFixture(t)
	handler := mw.Identity(http.HandlerFunc(f.handlers.Query))

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/tracker/query", "u1",
		`{"query": "is there flooding?", "location": "Springfield"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data composer.Result `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Data.DirectAnswer)
	assert.Equal(t, "primary", resp.Data.Source)

	require.Len(t, f.queries.All(), 1)
	assert.Equal(t, "u1", f.queries.All()[0].UserID)
}

func TestQueryHandler_Validation(t *testing.T) {
	f := newHandlerFixture(t)
	handler := mw.Identity(http.HandlerFunc(f.handlers.Query))

	tests := []struct {
		name string
		body string
	}{
		{"missing query", `{"location": "Springfield"}`},
		{"missing location", `{"query": "flooding?"}`},
		{"malformed json", `{"query": `},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, handler, http.MethodPost, "/api/v1/tracker/query", "u1", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	assert.Empty(t, f.queries.All())
}

func TestQueryHandler_RequiresIdentity(t *testing.T) {
	f := newHandlerFixture(t)
	handler := mw.Identity(http.HandlerFunc(f.handlers.Query))

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/tracker/query", "",
		`{"query": "flooding?", "location": "Springfield"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSearchHandler(t *testing.T) {
	f := newHandlerFixture(t)
	require.NoError(t, f.records.Upsert(context.Background(), &memory.Record{
		SourceKind:        content.KindPost,
		SourceID:          "p1",
		ProcessedContent:  "Flooding on Main Street",
		Location:          "Springfield",
		OriginalCreatedAt: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
		Embedding:         []float32{1, 0, 0, 0, 0, 0, 0, 0},
	}))
	handler := mw.Identity(http.HandlerFunc(f.handlers.Search))

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/tracker/search", "u1",
		`{"query": "flooding", "location": "spring"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []memory.ScoredRecord `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "Flooding on Main Street", resp.Data[0].Record.ProcessedContent)
}

func TestSearchHandler_NoMatchesReturnsEmptyList(t *testing.T) {
	f := newHandlerFixture(t)
	handler := mw.Identity(http.HandlerFunc(f.handlers.Search))

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/tracker/search", "u1",
		`{"query": "anything"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"data":[]`)
}

func TestHistoryHandler(t *testing.T) {
	f := newHandlerFixture(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, f.queries.Create(context.Background(), &tracker.QueryRecord{
			UserID: "u1", QueryText: "q", LocationFilter: "Springfield",
			Status: tracker.StatusProcessed, Source: "primary",
		}))
	}
	require.NoError(t, f.queries.Create(context.Background(), &tracker.QueryRecord{
		UserID: "someone-else", QueryText: "q", Status: tracker.StatusProcessed,
	}))
	handler := mw.Identity(http.HandlerFunc(f.handlers.History))

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/tracker/history?page=1&page_size=2", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp PaginatedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(3), resp.TotalCount)
	assert.Equal(t, 1, resp.Page)
	assert.Equal(t, 2, resp.PageSize)
}

func TestReprocessHandler(t *testing.T) {
	f := newHandlerFixture(t)
	handler := mw.AdminKey("sekret")(http.HandlerFunc(f.handlers.Reprocess))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/reprocess", nil)
	req.Header.Set("X-Admin-Key", "sekret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	// The pass runs detached from the request; the seeded post shows up
	// once it completes.
	assert.Eventually(t, func() bool {
		return len(f.records.All()) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestReprocessHandler_OutlivesRequestContext(t *testing.T) {
	records := memorytest.NewRepository()
	embedder := llmtest.NewEmbedder()
	contentRepo := &stubContentRepo{items: []content.SourceItem{
		{ID: "p1", Kind: content.KindPost, Content: "Flooding reported on Main Street today",
			CreatedAt: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)},
	}}
	ix := indexer.New(contentRepo, records, ctxSummarizer{}, embedder, nil, 50, 500)
	h := NewHandlers(nil, memory.NewRetriever(records, embedder), trackertest.NewRepository(), ix)
	handler := mw.AdminKey("sekret")(http.HandlerFunc(h.Reprocess))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/reprocess", nil).WithContext(ctx)
	req.Header.Set("X-Admin-Key", "sekret")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	// With a cancelled request context the pass still summarizes cleanly,
	// proving it runs detached.
	require.Eventually(t, func() bool {
		return len(records.All()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.True(t, strings.HasPrefix(records.All()[0].ProcessedContent, "summary: "))
}

func TestReprocessHandler_RejectsBadKey(t *testing.T) {
	f := newHandlerFixture(t)
	handler := mw.AdminKey("sekret")(http.HandlerFunc(f.handlers.Reprocess))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/reprocess", nil)
	req.Header.Set("X-Admin-Key", "wrong")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, f.records.All())
}
