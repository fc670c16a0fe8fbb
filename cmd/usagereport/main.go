// Command usagereport exports API usage as CSV, one row per
// (key, zone, date) triple in the trailing window.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"strings"
	"time"

	"keygate/internal/platform/config"
	platformredis "keygate/internal/platform/redis"
	"keygate/internal/verify/service/usage"
	"keygate/internal/verify/store"
)

func main() {
	days := flag.Int("days", 7, "days of usage to export")
	keys := flag.String("keys", "", "comma-separated keys to export (default: all)")
	flag.Parse()

	cfg := config.FromEnv()
	// CSV owns stdout; diagnostics go to stderr.
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis setup failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	backend, err := store.New(cfg, redisClient)
	if err != nil {
		log.Error("backend setup failed", "error", err)
		os.Exit(1)
	}

	reporter, err := usage.New(backend, usage.WithLogger(log))
	if err != nil {
		log.Error("usage reporter setup failed", "error", err)
		os.Exit(1)
	}

	var identities []string
	if *keys != "" {
		for _, key := range strings.Split(*keys, ",") {
			if key = strings.TrimSpace(key); key != "" {
				identities = append(identities, key)
			}
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := reporter.WriteCSV(ctx, os.Stdout, identities, *days); err != nil {
		log.Error("usage export failed", "error", err)
		os.Exit(1)
	}
}
