package auth

import (
	"context"
	"time"
)

type RefreshTokenRepo interface {
	Create(ctx context.Context, t *RefreshToken) error
	// DeleteByHash removes the row for tokenHash and reports whether a row
	// existed. A false return on a syntactically valid token means replay.
	DeleteByHash(ctx context.Context, tokenHash string) (bool, error)
	DeleteAllForUser(ctx context.Context, userID int64) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// CodeStore keeps short-lived phone verification state: the outstanding code
// per phone and the "recently verified" marker consumed by signup.
type CodeStore interface {
	PutCode(ctx context.Context, phone, code string, ttl time.Duration) error
	// RedeemCode atomically compares and deletes. At most one concurrent
	// caller observes true for the same code.
	RedeemCode(ctx context.Context, phone, code string) (bool, error)
	MarkVerified(ctx context.Context, phone string, ttl time.Duration) error
	ConsumeVerified(ctx context.Context, phone string) (bool, error)
}

type Blacklist interface {
	Add(ctx context.Context, tokenHash string, ttl time.Duration) error
	Contains(ctx context.Context, tokenHash string) (bool, error)
}

// RateLimiter is a fixed-window counter. Window-boundary bursts of up to
// twice the limit are an accepted property of the algorithm.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error)
}

// Flags holds the security monitor's per-user markers. A successful phone
// re-verification clears both.
type Flags interface {
	SetReauthRequired(ctx context.Context, userID int64, ttl time.Duration) error
	ReauthRequired(ctx context.Context, userID int64) (bool, error)
	ClearReauthRequired(ctx context.Context, userID int64) error
	SetVerificationRequired(ctx context.Context, userID int64, reason string, ttl time.Duration) error
	VerificationRequired(ctx context.Context, userID int64) (string, bool, error)
	ClearVerificationRequired(ctx context.Context, userID int64) error
}
