package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/NordCoder/Gatehouse/internal/domain/auth"
)

var _ auth.Flags = (*FlagStore)(nil)

const (
	keyReauth = "sec:reauth:"
	keyVerify = "sec:verify:"
)

// FlagStore holds the security monitor's per-user markers: forced
// re-authentication and required additional verification.
type FlagStore struct {
	client *redis.Client
}

func NewFlagStore(client *redis.Client) *FlagStore { return &FlagStore{client: client} }

func (s *FlagStore) SetReauthRequired(ctx context.Context, userID int64, ttl time.Duration) error {
	if err := s.client.Set(ctx, keyReauth+strconv.FormatInt(userID, 10), "1", ttl).Err(); err != nil {
		return fmt.Errorf("set reauth flag: %w", err)
	}
	return nil
}

func (s *FlagStore) ReauthRequired(ctx context.Context, userID int64) (bool, error) {
	n, err := s.client.Exists(ctx, keyReauth+strconv.FormatInt(userID, 10)).Result()
	if err != nil {
		return false, fmt.Errorf("read reauth flag: %w", err)
	}
	return n > 0, nil
}

func (s *FlagStore) ClearReauthRequired(ctx context.Context, userID int64) error {
	if err := s.client.Del(ctx, keyReauth+strconv.FormatInt(userID, 10)).Err(); err != nil {
		return fmt.Errorf("clear reauth flag: %w", err)
	}
	return nil
}

func (s *FlagStore) SetVerificationRequired(ctx context.Context, userID int64, reason string, ttl time.Duration) error {
	if err := s.client.Set(ctx, keyVerify+strconv.FormatInt(userID, 10), reason, ttl).Err(); err != nil {
		return fmt.Errorf("set verification flag: %w", err)
	}
	return nil
}

func (s *FlagStore) VerificationRequired(ctx context.Context, userID int64) (string, bool, error) {
	reason, err := s.client.Get(ctx, keyVerify+strconv.FormatInt(userID, 10)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read verification flag: %w", err)
	}
	return reason, true, nil
}

func (s *FlagStore) ClearVerificationRequired(ctx context.Context, userID int64) error {
	if err := s.client.Del(ctx, keyVerify+strconv.FormatInt(userID, 10)).Err(); err != nil {
		return fmt.Errorf("clear verification flag: %w", err)
	}
	return nil
}
