// Package webapi exposes stored benchmark runs over HTTP, as JSON and as
// rendered HTML reports.
package webapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/spboyer/wpbench/internal/models"
	"github.com/spboyer/wpbench/internal/reporting"
	"github.com/spboyer/wpbench/internal/scoring"
	"github.com/spboyer/wpbench/internal/store"
)

// Version is set at build time or defaults to dev.
var Version = "dev"

// RunStore provides access to stored runs. *store.ResultStore satisfies it.
type RunStore interface {
	ListRuns(ctx context.Context) ([]store.RunSummary, error)
	LoadBundle(ctx context.Context, id string) (*models.RunBundle, error)
}

// Rescorer recomputes a run's score with the current targets and weights.
type Rescorer func(b *models.RunBundle) (*int, []scoring.Entry)

// Handlers holds the HTTP handler methods for the web API.
type Handlers struct {
	store   RunStore
	names   map[string]string
	rescore Rescorer
}

// NewHandlers creates Handlers over s. names maps test ids to display names;
// rescore may be nil, which disables score explanations.
func NewHandlers(s RunStore, names map[string]string, rescore Rescorer) *Handlers {
	return &Handlers{store: s, names: names, rescore: rescore}
}

// HandleHealth returns a simple health check response.
func (h *Handlers) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Version: Version})
}

// HandleSummary returns aggregate figures across all runs.
func (h *Handlers) HandleSummary(w http.ResponseWriter, r *http.Request) {
	runs, err := h.store.ListRuns(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summarize(runs))
}

func summarize(runs []store.RunSummary) SummaryResponse {
	resp := SummaryResponse{TotalRuns: len(runs)}
	if len(runs) > 0 {
		resp.LatestID = runs[0].ID
	}
	total := 0
	for _, run := range runs {
		if run.Score == nil {
			continue
		}
		resp.ScoredRuns++
		total += *run.Score
		if resp.BestScore == nil || *run.Score > *resp.BestScore {
			best := *run.Score
			resp.BestScore = &best
		}
	}
	if resp.ScoredRuns > 0 {
		avg := float64(total) / float64(resp.ScoredRuns)
		resp.AvgScore = &avg
	}
	return resp
}

// HandleRuns lists runs. The sort query parameter accepts created (default),
// score, time or title; order accepts desc (default) or asc. Unscored runs
// sort below every scored run.
func (h *Handlers) HandleRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.store.ListRuns(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := sortRuns(runs, r.URL.Query().Get("sort"), r.URL.Query().Get("order")); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

var errBadSort = errors.New("sort must be one of created, score, time, title; order must be asc or desc")

func sortRuns(runs []store.RunSummary, field, order string) error {
	var less func(a, b store.RunSummary) bool
	switch field {
	case "", "created":
		less = func(a, b store.RunSummary) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case "score":
		less = func(a, b store.RunSummary) bool {
			if a.Score == nil || b.Score == nil {
				return a.Score == nil && b.Score != nil
			}
			return *a.Score < *b.Score
		}
	case "time":
		less = func(a, b store.RunSummary) bool { return a.TotalTime < b.TotalTime }
	case "title":
		less = func(a, b store.RunSummary) bool { return strings.ToLower(a.Title) < strings.ToLower(b.Title) }
	default:
		return errBadSort
	}

	switch order {
	case "", "desc":
		sort.SliceStable(runs, func(i, j int) bool { return less(runs[j], runs[i]) })
	case "asc":
		sort.SliceStable(runs, func(i, j int) bool { return less(runs[i], runs[j]) })
	default:
		return errBadSort
	}
	return nil
}

// HandleRunDetail returns a stored run bundle.
func (h *Handlers) HandleRunDetail(w http.ResponseWriter, r *http.Request) {
	b, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// HandleRunScore rescores a stored run and explains each test's share.
func (h *Handlers) HandleRunScore(w http.ResponseWriter, r *http.Request) {
	if h.rescore == nil {
		writeError(w, http.StatusNotImplemented, "rescoring is not available")
		return
	}
	b, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	current, entries := h.rescore(b)
	writeJSON(w, http.StatusOK, ScoreResponse{ID: b.ID, Stored: b.Score, Current: current, Entries: entries})
}

// HandleIndexPage renders the run history as HTML.
func (h *Handlers) HandleIndexPage(w http.ResponseWriter, r *http.Request) {
	runs, err := h.store.ListRuns(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	page, err := reporting.HistoryHTML(runs, "/runs/")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeHTML(w, page)
}

// HandleRunPage renders one run's report as HTML.
func (h *Handlers) HandleRunPage(w http.ResponseWriter, r *http.Request) {
	b, err := h.store.LoadBundle(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.NotFound(w, r)
		} else {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	report := &reporting.Report{Bundle: b, Names: h.names}
	if h.rescore != nil {
		_, report.Entries = h.rescore(b)
	}
	page, err := reporting.HTML(report)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeHTML(w, page)
}

func (h *Handlers) loadRun(w http.ResponseWriter, r *http.Request) (*models.RunBundle, bool) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "run id is required")
		return nil, false
	}

	b, err := h.store.LoadBundle(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return nil, false
	}
	return b, true
}

// RegisterRoutes registers all web routes on the given mux.
func RegisterRoutes(mux *http.ServeMux, h *Handlers) {
	mux.HandleFunc("GET /api/health", h.HandleHealth)
	mux.HandleFunc("GET /api/summary", h.HandleSummary)
	mux.HandleFunc("GET /api/runs", h.HandleRuns)
	mux.HandleFunc("GET /api/runs/{id}", h.HandleRunDetail)
	mux.HandleFunc("GET /api/runs/{id}/score", h.HandleRunScore)
	mux.HandleFunc("GET /runs/{id}", h.HandleRunPage)
	mux.HandleFunc("GET /{$}", h.HandleIndexPage)
}

// CORSMiddleware wraps a handler with CORS headers.
// If allowedOrigins is empty, no CORS header is set (same-origin only).
// Otherwise, the request Origin is checked against the allowed list.
func CORSMiddleware(next http.Handler, allowedOrigins ...string) http.Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if len(allowedOrigins) > 0 && origin != "" && allowed[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("Writing JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, ErrorResponse{Error: msg, Code: code})
}

func writeHTML(w http.ResponseWriter, page []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(page) //nolint:errcheck
}
