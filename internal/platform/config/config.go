package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Backend kinds selectable at startup.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config captures everything main needs to wire the process. It is resolved
// once from the environment and passed by reference; nothing in the request
// path re-reads env vars or lazily initializes.
type Config struct {
	Addr string

	// Backend selects the verification state store: "memory" or "redis".
	Backend string
	Redis   RedisConfig

	// PostgresDSN enables the Postgres registry when set; otherwise the
	// in-memory registry is used (tests, single-binary development).
	PostgresDSN string

	// DefaultZone applies when a route does not name a zone.
	DefaultZone string
	// KeyHeader and KeyQueryParam are where the request pipeline looks for
	// a candidate key, in that order.
	KeyHeader     string
	KeyQueryParam string

	// KafkaSeeds enables the Kafka audit publisher when non-empty.
	KafkaSeeds []string
	AuditTopic string
}

// RedisConfig carries go-redis connection settings.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	cfg := Config{
		Addr:          envOr("KEYGATE_ADDR", ":8080"),
		Backend:       envOr("KEYGATE_BACKEND", BackendMemory),
		PostgresDSN:   os.Getenv("KEYGATE_POSTGRES_DSN"),
		DefaultZone:   envOr("KEYGATE_DEFAULT_ZONE", "default"),
		KeyHeader:     envOr("KEYGATE_KEY_HEADER", "X-API-Key"),
		KeyQueryParam: envOr("KEYGATE_KEY_PARAM", "apikey"),
		AuditTopic:    envOr("KEYGATE_AUDIT_TOPIC", "keygate.audit"),
		Redis: RedisConfig{
			URL:          os.Getenv("KEYGATE_REDIS_URL"),
			PoolSize:     envIntOr("KEYGATE_REDIS_POOL_SIZE", 10),
			MinIdleConns: envIntOr("KEYGATE_REDIS_MIN_IDLE", 2),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
	}

	if seeds := os.Getenv("KEYGATE_KAFKA_SEEDS"); seeds != "" {
		for _, seed := range strings.Split(seeds, ",") {
			if seed = strings.TrimSpace(seed); seed != "" {
				cfg.KafkaSeeds = append(cfg.KafkaSeeds, seed)
			}
		}
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
