package cache

import (
	"context"
	"time"
)

// Noop satisfies the cache port when no Redis address is configured; every
// lookup misses.
type Noop struct{}

func (Noop) Get(ctx context.Context, key string) ([]byte, bool)                 { return nil, false }
func (Noop) Set(ctx context.Context, key string, payload []byte, d time.Duration) {}
func (Noop) Invalidate(ctx context.Context, key string)                         {}
