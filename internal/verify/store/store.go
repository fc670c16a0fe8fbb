// Package store selects a verification backend at startup.
package store

import (
	"fmt"

	"keygate/internal/platform/config"
	platformredis "keygate/internal/platform/redis"
	"keygate/internal/verify/ports"
	memorystore "keygate/internal/verify/store/memory"
	redisstore "keygate/internal/verify/store/redis"
)

// New builds the backend named by cfg.Backend. The redis kind requires a
// connected client; callers own its lifecycle.
func New(cfg config.Config, redisClient *platformredis.Client) (ports.Backend, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return memorystore.New(), nil
	case config.BackendRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("backend %q requires KEYGATE_REDIS_URL", cfg.Backend)
		}
		return redisstore.New(redisClient.Client)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
