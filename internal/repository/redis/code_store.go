package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/NordCoder/Gatehouse/internal/domain/auth"
)

var _ auth.CodeStore = (*CodeStore)(nil)

const (
	keyCode     = "verify:code:"
	keyVerified = "verify:ok:"
)

// redeemScript compares the stored code and deletes it in one atomic step,
// so two concurrent redeemers cannot both observe the code before either
// deletes it.
var redeemScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	redis.call("DEL", KEYS[1])
	return 1
end
return 0
`)

type CodeStore struct {
	client *redis.Client
}

func NewCodeStore(client *redis.Client) *CodeStore { return &CodeStore{client: client} }

// PutCode overwrites any outstanding code for the phone: at most one live
// code per phone.
func (s *CodeStore) PutCode(ctx context.Context, phone, code string, ttl time.Duration) error {
	if err := s.client.Set(ctx, keyCode+phone, code, ttl).Err(); err != nil {
		return fmt.Errorf("save code: %w", err)
	}
	return nil
}

func (s *CodeStore) RedeemCode(ctx context.Context, phone, code string) (bool, error) {
	n, err := redeemScript.Run(ctx, s.client, []string{keyCode + phone}, code).Int()
	if err != nil {
		return false, fmt.Errorf("redeem code: %w", err)
	}
	return n == 1, nil
}

func (s *CodeStore) MarkVerified(ctx context.Context, phone string, ttl time.Duration) error {
	if err := s.client.Set(ctx, keyVerified+phone, "1", ttl).Err(); err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	return nil
}

func (s *CodeStore) ConsumeVerified(ctx context.Context, phone string) (bool, error) {
	n, err := s.client.Del(ctx, keyVerified+phone).Result()
	if err != nil {
		return false, fmt.Errorf("consume verified: %w", err)
	}
	return n > 0, nil
}
