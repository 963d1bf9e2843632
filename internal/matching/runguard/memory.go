package runguard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"matchcore/pkg/platform/sentinel"
	"matchcore/pkg/requestcontext"
)

// MemoryGuard is a process-local guard for single-node deployments and tests.
type MemoryGuard struct {
	mu   sync.Mutex
	ttl  time.Duration
	held map[string]holder
	seq  uint64
}

type holder struct {
	token   uint64
	expires time.Time
}

func NewMemoryGuard(ttl time.Duration) *MemoryGuard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryGuard{ttl: ttl, held: make(map[string]holder)}
}

func (g *MemoryGuard) Acquire(ctx context.Context, key string) (func(context.Context), error) {
	now := requestcontext.Now(ctx)
	g.mu.Lock()
	defer g.mu.Unlock()

	if h, ok := g.held[key]; ok && now.Before(h.expires) {
		return nil, fmt.Errorf("run guard %s is held: %w", key, sentinel.ErrConflict)
	}
	g.seq++
	token := g.seq
	g.held[key] = holder{token: token, expires: now.Add(g.ttl)}

	return func(context.Context) {
		g.mu.Lock()
		defer g.mu.Unlock()
		if h, ok := g.held[key]; ok && h.token == token {
			delete(g.held, key)
		}
	}, nil
}
