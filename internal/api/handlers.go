package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/openrelief/newstracker/internal/composer"
	"github.com/openrelief/newstracker/internal/indexer"
	"github.com/openrelief/newstracker/internal/memory"
	mw "github.com/openrelief/newstracker/internal/middleware"
	"github.com/openrelief/newstracker/internal/tracker"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Handlers implements the tracker HTTP surface. Construct it in main and
// pass HandlerSet() to NewRouter.
type Handlers struct {
	composer  *composer.Composer
	retriever *memory.Retriever
	queries   tracker.Repository
	indexer   *indexer.Indexer
	validate  *validator.Validate
}

func NewHandlers(c *composer.Composer, retriever *memory.Retriever,
	queries tracker.Repository, ix *indexer.Indexer) *Handlers {
	return &Handlers{
		composer:  c,
		retriever: retriever,
		queries:   queries,
		indexer:   ix,
		validate:  validator.New(),
	}
}

// HandlerSet bundles the handlers with the route-scoped middleware.
func (h *Handlers) HandlerSet(rateLimiter, admin func(http.Handler) http.Handler) HandlerSet {
	return HandlerSet{
		Query:            h.Query,
		Search:           h.Search,
		History:          h.History,
		Reprocess:        h.Reprocess,
		QueryRateLimiter: rateLimiter,
		AdminMiddleware:  admin,
	}
}

type queryRequest struct {
	Query    string `json:"query" validate:"required,min=1,max=1000"`
	Location string `json:"location" validate:"required,min=1,max=200"`
}

// Query answers a user question through the composer fallback chain.
func (h *Handlers) Query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := h.decode(w, r, &req); err != nil {
		return
	}

	result, err := h.composer.Answer(r.Context(), mw.GetUserID(r.Context()), req.Query, req.Location)
	if err != nil {
		if errors.Is(err, composer.ErrInvalidInput) {
			HandleError(w, NewValidationError(err.Error()))
			return
		}
		HandleError(w, err)
		return
	}
	JSON(w, http.StatusOK, result)
}

type searchRequest struct {
	Query    string `json:"query" validate:"required,min=1,max=1000"`
	Location string `json:"location" validate:"omitempty,max=200"`
	TopK     int    `json:"top_k" validate:"omitempty,min=1,max=50"`
}

// Search exposes raw memory retrieval without the answer chain.
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := h.decode(w, r, &req); err != nil {
		return
	}

	matches, err := h.retriever.Retrieve(r.Context(), req.Query, req.Location, req.TopK)
	if err != nil {
		HandleError(w, err)
		return
	}
	if matches == nil {
		matches = []memory.ScoredRecord{}
	}
	JSON(w, http.StatusOK, matches)
}

// History returns the caller's query records, newest first.
func (h *Handlers) History(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}
	pageSize := queryInt(r, "page_size", defaultPageSize)
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}

	records, total, err := h.queries.ListByUser(r.Context(), mw.GetUserID(r.Context()),
		pageSize, (page-1)*pageSize)
	if err != nil {
		HandleError(w, err)
		return
	}
	if records == nil {
		records = []tracker.QueryRecord{}
	}
	JSONPaginated(w, http.StatusOK, records, total, page, pageSize)
}

// Reprocess starts a full re-indexing pass over recent content. The pass can
// make hundreds of model calls and easily outlives the server's write
// timeout, so it runs detached from the request; batch results land in the
// logs.
func (h *Handlers) Reprocess(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())
	go func() {
		results, err := h.indexer.ProcessAll(ctx)
		if err != nil {
			slog.Error("reprocess: full pass failed", "error", err)
			return
		}
		slog.Info("reprocess: full pass completed", "batches", len(results))
	}()
	JSONMessage(w, http.StatusAccepted, "reprocess started")
}

// decode unmarshals and validates a JSON request body, writing the error
// response itself on failure.
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		HandleError(w, NewBadRequestError("invalid request body"))
		return err
	}
	if err := h.validate.Struct(dst); err != nil {
		HandleError(w, NewValidationError(validationMessage(err)))
		return err
	}
	return nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		f := verrs[0]
		return "invalid field " + f.Field() + ": failed " + f.Tag() + " check"
	}
	return "validation error"
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
