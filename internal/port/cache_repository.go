package port

import (
	"context"
	"time"
)

type CacheRepository interface {
	// AcquireLock takes a short-lived command lock, returning false if it
	// is already held.
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// ReleaseLock drops a lock taken with AcquireLock.
	ReleaseLock(ctx context.Context, key string) error

	// SetIdempotency sets a dedupe key, returns false if already set.
	SetIdempotency(ctx context.Context, key string) (bool, error)
}
