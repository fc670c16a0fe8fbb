// Package usage is the read-only reporting side: it aggregates quota
// counters out of the request path and shapes them for export.
package usage

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"keygate/internal/verify/models"
	"keygate/internal/verify/ports"
)

// reportConcurrency bounds parallel backend reads when a report names many
// identities; the shared store should not absorb an unbounded fan-out.
const reportConcurrency = 8

type Reporter struct {
	backend ports.Backend
	logger  *slog.Logger
}

type Option func(*Reporter)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Reporter) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func New(backend ports.Backend, opts ...Option) (*Reporter, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend is required")
	}
	r := &Reporter{backend: backend}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Report returns usage for the trailing days window. With no identities it
// reports every identity the backend has counters for; with identities it
// fans the reads out per identity so large reports against the networked
// backend overlap their round trips.
func (r *Reporter) Report(ctx context.Context, identities []string, days int) (models.Usage, error) {
	if len(identities) == 0 {
		usage, err := r.backend.GetUsage(ctx, nil, days)
		if err != nil {
			return nil, fmt.Errorf("get usage: %w", err)
		}
		return usage, nil
	}

	var mu sync.Mutex
	merged := make(models.Usage, len(identities))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(reportConcurrency)
	for _, identity := range identities {
		g.Go(func() error {
			usage, err := r.backend.GetUsage(ctx, []string{identity}, days)
			if err != nil {
				return fmt.Errorf("get usage for %q: %w", identity, err)
			}
			mu.Lock()
			defer mu.Unlock()
			for id, byDate := range usage {
				merged[id] = byDate
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return merged, nil
}

// WriteCSV renders a report as rows of (key, zone, date, requests), sorted
// so output is stable across runs.
func (r *Reporter) WriteCSV(ctx context.Context, w io.Writer, identities []string, days int) error {
	usage, err := r.Report(ctx, identities, days)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"key", "zone", "date", "requests"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, identity := range sortedKeys(usage) {
		byDate := usage[identity]
		for _, date := range sortedKeys(byDate) {
			byZone := byDate[date]
			for _, zone := range sortedKeys(byZone) {
				row := []string{identity, zone, date, strconv.Itoa(byZone[zone])}
				if err := cw.Write(row); err != nil {
					return fmt.Errorf("write csv row: %w", err)
				}
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
