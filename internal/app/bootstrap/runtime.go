package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"

	appconfig "github.com/wolfman30/bakame-ivr/internal/config"
	"github.com/wolfman30/bakame-ivr/internal/session"
	"github.com/wolfman30/bakame-ivr/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr()) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "addr", cfg.RedisAddr(), "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildSessionStore picks the Redis store when a client is available and the
// in-process store otherwise. The second return names the backend in use.
func BuildSessionStore(redisClient *redis.Client, cfg *appconfig.Config, tracer trace.Tracer, logger *logging.Logger) (session.Store, string, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if redisClient != nil {
		return session.NewRedisStore(redisClient, tracer), "redis", nil
	}
	capacity := 0
	if cfg != nil {
		capacity = cfg.MemorySessionCapacity
	}
	store, err := session.NewMemoryStore(capacity)
	if err != nil {
		return nil, "", err
	}
	logger.Warn("using in-memory session store; sessions will not survive a restart", "capacity", capacity)
	return store, "memory", nil
}
