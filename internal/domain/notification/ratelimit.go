package notification

import "context"

// RecipientRateLimiter defines the contract for per-user publish rate limiting.
// Implementations live in infra/ratelimit/.
type RecipientRateLimiter interface {
	// Allow checks whether another notification may be published to the given user.
	Allow(ctx context.Context, userID string) (bool, error)
}
