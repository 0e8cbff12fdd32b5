package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lucasfdcampos/gastro-leads/internal/domain"
	"github.com/lucasfdcampos/gastro-leads/internal/store"
)

// Runner executes one accumulating pipeline run.
type Runner func(ctx context.Context) (*domain.RunSummary, error)

// RunHistory lists past runs. *store.MongoStore satisfies it.
type RunHistory interface {
	RecentRuns(ctx context.Context, limit int64) ([]domain.RunSummary, error)
}

// SearchCache is the subset of *cache.Client used to drop a cached search.
type SearchCache interface {
	DeleteSearch(ctx context.Context, key string) error
}

// Handler holds the HTTP dependencies.
type Handler struct {
	store store.Store
	run   Runner

	history   RunHistory
	cache     SearchCache
	searchKey string

	// running serializes pipeline runs; a second request gets 409.
	running sync.Mutex
}

// NewHandler creates a new Handler.
func NewHandler(st store.Store, run Runner) *Handler {
	return &Handler{store: st, run: run}
}

// WithHistory enables GET /api/v1/runs.
func (h *Handler) WithHistory(rh RunHistory) *Handler {
	h.history = rh
	return h
}

// WithSearchCache enables DELETE /api/v1/search/cache for the cache entry
// of the configured run query.
func (h *Handler) WithSearchCache(c SearchCache, key string) *Handler {
	h.cache = c
	h.searchKey = key
	return h
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errResponse writes a JSON error body.
func errResponse(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Health godoc
//
//	GET /health
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
}

// Records godoc
//
//	GET /api/v1/records
//
//	Query params: chain (true|false), with_email (true|false), limit (>0)
func (h *Handler) Records(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	chain, err := optionalBool(q.Get("chain"))
	if err != nil {
		errResponse(w, http.StatusBadRequest, "chain must be true or false")
		return
	}
	withEmail, err := optionalBool(q.Get("with_email"))
	if err != nil {
		errResponse(w, http.StatusBadRequest, "with_email must be true or false")
		return
	}
	limit := 0
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit <= 0 {
			errResponse(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
	}

	recs, err := h.store.Load(r.Context())
	if err != nil {
		errResponse(w, storeStatus(err), err.Error())
		return
	}

	out := make([]domain.BusinessRecord, 0, len(recs))
	for _, rec := range recs {
		if chain != nil && rec.IsChain != *chain {
			continue
		}
		if withEmail != nil && rec.HasEmail() != *withEmail {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) == limit {
			break
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"total": len(out), "records": out})
}

// StatsResponse is the body of GET /api/v1/stats.
type StatsResponse struct {
	domain.Stats
	EmailPct        float64             `json:"email_pct"`
	WhatsAppPct     float64             `json:"whatsapp_pct"`
	ChainPct        float64             `json:"chain_pct"`
	TopEmailDomains []store.DomainCount `json:"top_email_domains"`
}

// Stats godoc
//
//	GET /api/v1/stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	recs, err := h.store.Load(r.Context())
	if err != nil {
		errResponse(w, storeStatus(err), err.Error())
		return
	}
	st := store.ComputeStats(recs)
	writeJSON(w, http.StatusOK, StatsResponse{
		Stats:           st,
		EmailPct:        st.EmailPct(),
		WhatsAppPct:     st.WhatsAppPct(),
		ChainPct:        st.ChainPct(),
		TopEmailDomains: store.TopEmailDomains(recs, 10),
	})
}

// StartRun godoc
//
//	POST /api/v1/runs
//
//	Runs the accumulating pipeline synchronously and returns its RunSummary.
//	409 while another run is in progress.
func (h *Handler) StartRun(w http.ResponseWriter, r *http.Request) {
	if !h.running.TryLock() {
		errResponse(w, http.StatusConflict, "a run is already in progress")
		return
	}
	defer h.running.Unlock()

	run, err := h.run(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("run failed")
		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrCorrupt) {
			status = http.StatusConflict
		}
		errResponse(w, status, "pipeline error: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// Runs godoc
//
//	GET /api/v1/runs?limit=20
func (h *Handler) Runs(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		errResponse(w, http.StatusServiceUnavailable, "mongodb not configured")
		return
	}
	limit := int64(20)
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			errResponse(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	runs, err := h.history.RecentRuns(r.Context(), limit)
	if err != nil {
		errResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []domain.RunSummary{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// InvalidateCache godoc
//
//	DELETE /api/v1/search/cache
//
//	Drops the cached listings of the configured query so the next run
//	queries the provider again.
func (h *Handler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		errResponse(w, http.StatusServiceUnavailable, "redis not configured")
		return
	}
	if err := h.cache.DeleteSearch(r.Context(), h.searchKey); err != nil {
		errResponse(w, http.StatusInternalServerError, "failed to delete cache key: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "key": h.searchKey})
}

func optionalBool(s string) (*bool, error) {
	if s == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func storeStatus(err error) int {
	if errors.Is(err, store.ErrCorrupt) {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
