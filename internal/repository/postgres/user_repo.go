package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/NordCoder/Gatehouse/internal/domain/user"
)

var _ user.Repo = (*UserRepo)(nil)

type UserRepo struct {
	db *DB
}

func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

const (
	qUserCols = `id, phone, name, username, email, bio, account_type, status, trust_score, phone_verified, created_at, updated_at`

	qUserInsert = `
INSERT INTO users (phone, name, username, email, bio, account_type, status, trust_score, phone_verified)
VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, 'active', $7, TRUE)
RETURNING ` + qUserCols + `;`

	qUserByID = `
SELECT ` + qUserCols + `
FROM users
WHERE id = $1;`

	qUserByPhone = `
SELECT ` + qUserCols + `
FROM users
WHERE phone = $1;`

	qUserSetStatus = `
UPDATE users SET status = $2, updated_at = NOW() WHERE id = $1;`

	qUserUpdate = `
UPDATE users
SET name       = $2,
    username   = NULLIF($3, ''),
    email      = NULLIF($4, ''),
    bio        = $5,
    trust_score = $6,
    updated_at = NOW()
WHERE id = $1
RETURNING ` + qUserCols + `;`
)

func (r *UserRepo) Create(ctx context.Context, u *user.User) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if err := scanUser(r.db.Pool.QueryRow(ctx, qUserInsert,
		u.Phone, u.Name, u.Username, u.Email, u.Bio, u.AccountType, u.TrustScore), u); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("user insert: %w", err)
	}
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id int64) (*user.User, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var u user.User
	if err := scanUser(r.db.Pool.QueryRow(ctx, qUserByID, id), &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) GetByPhone(ctx context.Context, phone string) (*user.User, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var u user.User
	if err := scanUser(r.db.Pool.QueryRow(ctx, qUserByPhone, phone), &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) SetStatus(ctx context.Context, id int64, status user.Status) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.Pool.Exec(ctx, qUserSetStatus, id, status)
	if err != nil {
		return fmt.Errorf("user set status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepo) Update(ctx context.Context, u *user.User) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if err := scanUser(r.db.Pool.QueryRow(ctx, qUserUpdate,
		u.ID, u.Name, u.Username, u.Email, u.Bio, u.TrustScore), u); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return fmt.Errorf("user update: %w", err)
	}
	return nil
}

func scanUser(row pgx.Row, out *user.User) error {
	var username, email *string
	if err := row.Scan(&out.ID, &out.Phone, &out.Name, &username, &email, &out.Bio,
		&out.AccountType, &out.Status, &out.TrustScore, &out.PhoneVerified,
		&out.CreatedAt, &out.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("scan user: %w", err)
	}
	if username != nil {
		out.Username = *username
	}
	if email != nil {
		out.Email = *email
	}
	return nil
}
