// Package admin exposes the operator-facing HTTP surface: health checks,
// Prometheus metrics, and live download statistics. It never touches the
// ingestion path.
package admin

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pkgstats/internal/counter"
)

const healthTimeout = 2 * time.Second

// Pinger is the readiness probe a backing service exposes.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Stats serves live download counts; backed by the redis counter.
type Stats interface {
	Count(ctx context.Context, pkg string, day time.Time) (int64, error)
	Top(ctx context.Context, day time.Time, n int64) ([]counter.PackageCount, error)
}

// Handler is the thin HTTP layer over the observability collaborators.
type Handler struct {
	db    Pinger
	redis Pinger // nil when redis is not configured
	stats Stats  // nil when redis is not configured
	log   *log.Logger
}

func NewHandler(db Pinger, redis Pinger, stats Stats, logger *log.Logger) *Handler {
	return &Handler{db: db, redis: redis, stats: stats, log: logger}
}

// NewRouter wires the admin endpoints.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/stats/packages/{name}", h.handlePackageCount)
	r.Get("/stats/top", h.handleTop)

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	status := http.StatusOK
	checks := map[string]string{}

	if err := h.db.Ping(ctx); err != nil {
		checks["postgres"] = err.Error()
		status = http.StatusServiceUnavailable
	} else {
		checks["postgres"] = "ok"
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx); err != nil {
			checks["redis"] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			checks["redis"] = "ok"
		}
	}

	writeJSON(w, status, checks)
}

func (h *Handler) handlePackageCount(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "live stats not configured"})
		return
	}

	name := chi.URLParam(r, "name")
	day, ok := queryDay(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "day must be YYYY-MM-DD"})
		return
	}

	count, err := h.stats.Count(r.Context(), name, day)
	if err != nil {
		h.log.Printf("stats count %s: %v", name, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "stats unavailable"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"package": name,
		"day":     day.Format("2006-01-02"),
		"count":   count,
	})
}

func (h *Handler) handleTop(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "live stats not configured"})
		return
	}

	day, ok := queryDay(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "day must be YYYY-MM-DD"})
		return
	}

	n := int64(20)
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 1 || parsed > 100 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "n must be 1-100"})
			return
		}
		n = parsed
	}

	top, err := h.stats.Top(r.Context(), day, n)
	if err != nil {
		h.log.Printf("stats top: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "stats unavailable"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"day":      day.Format("2006-01-02"),
		"packages": top,
	})
}

// queryDay reads the optional ?day=YYYY-MM-DD parameter, defaulting to the
// current UTC day.
func queryDay(r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("day")
	if raw == "" {
		return time.Now().UTC(), true
	}
	day, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, false
	}
	return day, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
