package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/NordCoder/Gatehouse/internal/domain/auth"
)

var _ auth.Blacklist = (*Blacklist)(nil)

const keyBlacklist = "blacklist:"

// Blacklist denies access tokens that were invalidated before their natural
// expiry. Entries carry the token's remaining lifetime as TTL, so the set
// never needs pruning.
type Blacklist struct {
	client *redis.Client
}

func NewBlacklist(client *redis.Client) *Blacklist { return &Blacklist{client: client} }

func (b *Blacklist) Add(ctx context.Context, tokenHash string, ttl time.Duration) error {
	if ttl <= 0 {
		// Token is already past its natural expiry; nothing to deny.
		return nil
	}
	if err := b.client.Set(ctx, keyBlacklist+tokenHash, "1", ttl).Err(); err != nil {
		return fmt.Errorf("blacklist add: %w", err)
	}
	return nil
}

func (b *Blacklist) Contains(ctx context.Context, tokenHash string) (bool, error) {
	n, err := b.client.Exists(ctx, keyBlacklist+tokenHash).Result()
	if err != nil {
		return false, fmt.Errorf("blacklist check: %w", err)
	}
	return n > 0, nil
}
