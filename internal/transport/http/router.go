package httptransport

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler is the thin HTTP layer. It delegates to domain services without
// embedding business logic so transport concerns remain isolated.
type Handler struct {
	verifier Verifier
	usage    UsageReporter
	keys     KeyConfig
	logger   *slog.Logger
}

func NewHandler(verifier Verifier, usage UsageReporter, keys KeyConfig, logger *slog.Logger) *Handler {
	return &Handler{
		verifier: verifier,
		usage:    usage,
		keys:     keys,
		logger:   logger,
	}
}

// NewRouter wires all public endpoints. Everything under the key middleware
// is a protected resource; /usage, /healthz and /metrics are operational
// surfaces that verification never gates.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	r.Group(func(r chi.Router) {
		r.Use(RequireKey(h.verifier, h.keys, h.logger))
		r.Get("/api/ping", h.handlePing)
	})

	r.Get("/usage", h.handleUsage)
	r.Get("/healthz", h.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

func (h *Handler) handlePing(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError keeps the JSON error envelope consistent across middleware and
// handlers.
func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
