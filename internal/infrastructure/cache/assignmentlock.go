package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/orris-inc/storefront/internal/shared/constants"
)

// DefaultAssignmentLockTTL bounds how long a crashed holder can block a pair.
const DefaultAssignmentLockTTL = 30 * time.Second

// releaseScript deletes the key only when it still holds our token, so an
// expired lock taken over by another instance is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// AssignmentLock marks a funnel/resource pair busy across instances.
type AssignmentLock struct {
	client *redis.Client
	ttl    time.Duration
	token  string
}

// NewAssignmentLock creates a lock owned by this process. ttl <= 0 uses
// DefaultAssignmentLockTTL.
func NewAssignmentLock(client *redis.Client, ttl time.Duration) *AssignmentLock {
	if ttl <= 0 {
		ttl = DefaultAssignmentLockTTL
	}
	return &AssignmentLock{client: client, ttl: ttl, token: uuid.NewString()}
}

// buildKey format: storefront:assign:busy:{funnel_id}:{resource_id}
func (l *AssignmentLock) buildKey(funnelID, resourceID string) string {
	return fmt.Sprintf("%s%s:%s", constants.KeyPrefixAssignBusy, funnelID, resourceID)
}

// Acquire atomically takes the pair. It returns false while another holder owns it.
func (l *AssignmentLock) Acquire(ctx context.Context, funnelID, resourceID string) (bool, error) {
	acquired, err := l.client.SetNX(ctx, l.buildKey(funnelID, resourceID), l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire assignment lock: %w", err)
	}
	return acquired, nil
}

func (l *AssignmentLock) Release(ctx context.Context, funnelID, resourceID string) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.buildKey(funnelID, resourceID)}, l.token).Err(); err != nil {
		return fmt.Errorf("failed to release assignment lock: %w", err)
	}
	return nil
}
