package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/puoklam/social-graph-backend/middleware"
	"github.com/puoklam/social-graph-backend/observability"
	"go.uber.org/zap"
)

// SetupMiddlewares installs the stack shared by every route and exposes
// /metrics.
func SetupMiddlewares(r *chi.Mux, logger *zap.Logger, metrics *observability.HTTPMetrics) {
	r.Use(middleware.RequestID)
	r.Use(middleware.WithDeviceInfo)
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Expo-Push-Token", "X-Request-ID"},
		ExposedHeaders:   []string{"Location", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
}

func New(h http.Handler, addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
