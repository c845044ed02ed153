package outbound

import (
	"context"
	"time"
)

// Cache is a TTL cache for client working copies (category lists, item
// pages). Entries are advisory: a miss or an unavailable backend just means
// a re-fetch, never an error surfaced to the caller.
type Cache interface {
	// Get returns the cached payload for key and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores payload under key for ttl. Failures are ignored.
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration)

	// Invalidate drops any entry stored under key.
	Invalidate(ctx context.Context, key string)
}
