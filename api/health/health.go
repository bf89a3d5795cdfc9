package health

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/puoklam/social-graph-backend/api"
	"github.com/puoklam/social-graph-backend/middleware"
	"go.uber.org/zap"
)

// Check reports whether a dependency is reachable.
type Check func(ctx context.Context) error

type Handlers struct {
	logger  *zap.Logger
	checks  map[string]Check
	timeout time.Duration
}

type status struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (h *Handlers) healthz(w http.ResponseWriter, r *http.Request) {
	api.JSON(w, http.StatusOK, &status{Status: "ok"})
}

func (h *Handlers) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	failed := make(map[string]string)
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		h.logger.Warn("readiness check failed", zap.Any("checks", failed))
		api.JSON(w, http.StatusServiceUnavailable, &status{Status: "fail", Checks: failed})
		return
	}
	api.JSON(w, http.StatusOK, &status{Status: "ok"})
}

func (h *Handlers) SetupRoutes(r *chi.Mux) {
	r.With(middleware.NoCache).Get("/healthz", h.healthz)
	r.With(middleware.NoCache).Get("/readyz", h.readyz)
}

func NewHandlers(logger *zap.Logger, checks map[string]Check) *Handlers {
	return &Handlers{logger: logger, checks: checks, timeout: 2 * time.Second}
}
