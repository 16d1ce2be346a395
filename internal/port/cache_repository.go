package port

import "context"

type CacheRepository interface {
	// SetIdempotency claims a key for an idempotent request, returns false if already claimed
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// ClearIdempotency releases a claimed key so the request can be retried
	ClearIdempotency(ctx context.Context, key string) error
}
