package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/NordCoder/Gatehouse/internal/domain/auth"
)

var _ auth.RefreshTokenRepo = (*RefreshTokenRepo)(nil)

type RefreshTokenRepo struct{ db *DB }

func NewRefreshTokenRepo(db *DB) *RefreshTokenRepo { return &RefreshTokenRepo{db: db} }

const (
	qRTCreate = `
INSERT INTO refresh_tokens(user_id, token_hash, issued_at, expires_at)
VALUES ($1, $2, $3, $4)
RETURNING id;
`
	qRTDeleteByHash = `
DELETE FROM refresh_tokens WHERE token_hash = $1 AND expires_at > NOW();
`
	qRTDeleteForUser = `
DELETE FROM refresh_tokens WHERE user_id = $1;
`
	qRTDeleteExpired = `
DELETE FROM refresh_tokens WHERE expires_at <= $1;
`
)

func (r *RefreshTokenRepo) Create(ctx context.Context, t *auth.RefreshToken) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	return r.db.Pool.QueryRow(ctx, qRTCreate, t.UserID, t.TokenHash, t.IssuedAt, t.ExpiresAt).Scan(&t.ID)
}

// DeleteByHash is the redemption step of rotation: the row count tells the
// caller whether the token was still live. Zero rows on a well-formed token
// means it was already rotated or revoked.
func (r *RefreshTokenRepo) DeleteByHash(ctx context.Context, tokenHash string) (bool, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.Pool.Exec(ctx, qRTDeleteByHash, tokenHash)
	if err != nil {
		return false, fmt.Errorf("delete refresh by hash: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *RefreshTokenRepo) DeleteAllForUser(ctx context.Context, userID int64) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if _, err := r.db.Pool.Exec(ctx, qRTDeleteForUser, userID); err != nil {
		return fmt.Errorf("delete refresh for user: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.Pool.Exec(ctx, qRTDeleteExpired, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh: %w", err)
	}
	return tag.RowsAffected(), nil
}
