package relay

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nazarhussain/contact-gate/internal/metrics"
	"github.com/nazarhussain/contact-gate/internal/middleware"
)

type RouterConfig struct {
	Route          string
	AllowedOrigins []string
	Logger         *slog.Logger
	Metrics        *metrics.Metrics // optional
}

// NewRouter mounts the relay at rc.Route next to /health and, when metrics
// are configured, /metrics.
func NewRouter(relay http.Handler, rc RouterConfig) http.Handler {
	logger := rc.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var observer middleware.HTTPObserver
	if rc.Metrics != nil {
		observer = rc.Metrics
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(logger, observer))
	r.Use(middleware.SecurityHeaders)

	r.Get("/health", HandleHealth)
	if rc.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", rc.Metrics.Handler())
	}
	r.With(middleware.CORS(rc.AllowedOrigins)).Handle(rc.Route, relay)
	return r
}

func HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
