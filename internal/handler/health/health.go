package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
)

// Checker verifies that an infrastructure dependency is reachable.
type Checker interface {
	Check(ctx context.Context) error
}

// CheckerFunc adapts a plain function to Checker.
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) Check(ctx context.Context) error { return f(ctx) }

type Handler struct {
	checks  map[string]Checker
	logger  *slog.Logger
	timeout time.Duration
}

func NewHandler(logger *slog.Logger, checks map[string]Checker) *Handler {
	return &Handler{checks: checks, logger: logger, timeout: 3 * time.Second}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.check)
	return r
}

type result struct {
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
}

// check runs every checker concurrently and reports 503 if any fails.
func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var (
		mu      sync.Mutex
		results = make(map[string]result, len(h.checks))
		healthy = true
		g       errgroup.Group
	)

	for name, c := range h.checks {
		g.Go(func() error {
			start := time.Now()
			err := c.Check(ctx)
			res := result{Status: "ok", LatencyMS: time.Since(start).Milliseconds()}
			if err != nil {
				h.logger.Error("health check failed", "name", name, "error", err)
				res.Status = "error"
			}

			mu.Lock()
			results[name] = res
			if err != nil {
				healthy = false
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(results)
}
