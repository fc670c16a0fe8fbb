package httptransport

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"keygate/internal/verify/models"
)

// KeyConfig tells the middleware where to find a candidate key and which
// zone applies when a route does not name one.
type KeyConfig struct {
	Header      string
	QueryParam  string
	DefaultZone string
}

// Verifier is the slice of the verification service the transport needs.
type Verifier interface {
	Verify(ctx context.Context, identity, zone string) error
}

// RequireKey protects everything below it using the configured default zone.
func RequireKey(v Verifier, cfg KeyConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	return RequireKeyZone(v, cfg, cfg.DefaultZone, logger)
}

// RequireKeyZone extracts a candidate key (header first, query parameter as
// fallback), verifies it against the given zone, and maps the outcome:
// authorization failures are the caller's fault (403), throttling failures
// clear up on their own (429), and backend failures are availability
// problems (503, fail-closed).
func RequireKeyZone(v Verifier, cfg KeyConfig, zone string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(cfg.Header))
			if key == "" {
				key = strings.TrimSpace(r.URL.Query().Get(cfg.QueryParam))
			}

			err := v.Verify(r.Context(), key, zone)
			if err == nil {
				next.ServeHTTP(w, r)
				return
			}

			switch {
			case models.IsAuthorizationError(err):
				writeError(w, http.StatusForbidden, err)
			case models.IsThrottleError(err):
				writeError(w, http.StatusTooManyRequests, err)
			default:
				var backendErr *models.BackendError
				if errors.As(err, &backendErr) && logger != nil {
					logger.ErrorContext(r.Context(), "verification backend failure",
						"op", backendErr.Op, "error", backendErr.Err)
				}
				// Never leak infrastructure detail to the caller.
				writeError(w, http.StatusServiceUnavailable,
					errors.New("verification temporarily unavailable"))
			}
		})
	}
}
