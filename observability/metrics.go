package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry creates a registry with Go and process collectors.
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return registry
}

type HTTPMetrics struct {
	registry    *prometheus.Registry
	inFlight    prometheus.Gauge
	reqTotal    *prometheus.CounterVec
	reqDuration *prometheus.HistogramVec
}

func NewHTTPMetrics(registry *prometheus.Registry) *HTTPMetrics {
	if registry == nil {
		registry = NewRegistry()
	}
	inFlight := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "http",
		Subsystem: "server",
		Name:      "in_flight_requests",
		Help:      "Number of in-flight HTTP requests.",
	})
	reqTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "http",
		Subsystem: "server",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"method", "path", "status"})
	reqDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "http",
		Subsystem: "server",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	registry.MustRegister(inFlight, reqTotal, reqDuration)
	return &HTTPMetrics{
		registry:    registry,
		inFlight:    inFlight,
		reqTotal:    reqTotal,
		reqDuration: reqDuration,
	}
}

func (m *HTTPMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPMetrics) Middleware(h http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		m.inFlight.Inc()
		defer m.inFlight.Dec()
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		h.ServeHTTP(ww, r)

		// route pattern keeps label cardinality bounded
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				path = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		statusLabel := strconv.Itoa(status)
		m.reqTotal.WithLabelValues(r.Method, path, statusLabel).Inc()
		m.reqDuration.WithLabelValues(r.Method, path, statusLabel).Observe(time.Since(start).Seconds())
	}
	return http.HandlerFunc(fn)
}

// FollowMetrics counts follow/unfollow outcomes.
type FollowMetrics struct {
	outcomes *prometheus.CounterVec
}

func NewFollowMetrics(registry *prometheus.Registry) *FollowMetrics {
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "social",
		Subsystem: "graph",
		Name:      "edge_operations_total",
		Help:      "Follow and unfollow calls by outcome.",
	}, []string{"op", "result"})
	registry.MustRegister(outcomes)
	return &FollowMetrics{outcomes: outcomes}
}

func (m *FollowMetrics) Observe(op, result string) {
	m.outcomes.WithLabelValues(op, result).Inc()
}
