// Package runguard keeps two matching runs over the same cohort from
// executing at once. The guard is advisory: lock atomicity in the repository
// is what keeps overlapping runs correct.
package runguard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"matchcore/pkg/platform/sentinel"
)

const (
	DefaultTTL       = 5 * time.Minute
	defaultKeyPrefix = "matchcore:guard:"
)

// releaseScript deletes the key only while it still holds our token, so a
// run that outlived its TTL cannot release a successor's guard.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisGuard implements ports.RunGuard with SET NX PX.
type RedisGuard struct {
	client    redis.UniversalClient
	ttl       time.Duration
	keyPrefix string
	logger    *slog.Logger
}

type Option func(*RedisGuard)

func WithTTL(ttl time.Duration) Option {
	return func(g *RedisGuard) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

func WithKeyPrefix(prefix string) Option {
	return func(g *RedisGuard) {
		g.keyPrefix = prefix
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(g *RedisGuard) {
		g.logger = logger
	}
}

func NewRedisGuard(client redis.UniversalClient, opts ...Option) *RedisGuard {
	g := &RedisGuard{
		client:    client,
		ttl:       DefaultTTL,
		keyPrefix: defaultKeyPrefix,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Acquire sets the guard key. A key already held returns sentinel.ErrConflict;
// a Redis failure returns sentinel.ErrUnavailable.
func (g *RedisGuard) Acquire(ctx context.Context, key string) (func(context.Context), error) {
	fullKey := g.keyPrefix + key
	token := uuid.NewString()

	ok, err := g.client.SetNX(ctx, fullKey, token, g.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire run guard %s: %w: %w", key, sentinel.ErrUnavailable, err)
	}
	if !ok {
		return nil, fmt.Errorf("run guard %s is held: %w", key, sentinel.ErrConflict)
	}

	release := func(ctx context.Context) {
		if err := releaseScript.Run(ctx, g.client, []string{fullKey}, token).Err(); err != nil {
			g.logger.WarnContext(ctx, "failed to release run guard", "key", key, "error", err)
		}
	}
	return release, nil
}
