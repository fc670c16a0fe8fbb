package httptransport

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"keygate/internal/verify/models"
)

const (
	defaultReportDays = 7
	maxReportDays     = 31
)

// UsageReporter is the slice of the usage service the transport needs.
type UsageReporter interface {
	Report(ctx context.Context, identities []string, days int) (models.Usage, error)
}

// handleUsage serves GET /usage?days=7&keys=a,b as JSON. Omitting keys
// reports every identity with recorded counters.
func (h *Handler) handleUsage(w http.ResponseWriter, r *http.Request) {
	days := defaultReportDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxReportDays {
			writeError(w, http.StatusBadRequest, errors.New("days must be between 1 and 31"))
			return
		}
		days = parsed
	}

	var identities []string
	if raw := r.URL.Query().Get("keys"); raw != "" {
		for _, key := range strings.Split(raw, ",") {
			if key = strings.TrimSpace(key); key != "" {
				identities = append(identities, key)
			}
		}
	}

	usage, err := h.usage.Report(r.Context(), identities, days)
	if err != nil {
		if h.logger != nil {
			h.logger.ErrorContext(r.Context(), "usage report failed", "error", err)
		}
		writeError(w, http.StatusInternalServerError, errors.New("usage report failed"))
		return
	}
	writeJSON(w, http.StatusOK, usage)
}
