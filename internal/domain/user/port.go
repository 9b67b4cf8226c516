package user

import "context"

type Repo interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByPhone(ctx context.Context, phone string) (*User, error)
	SetStatus(ctx context.Context, id int64, status Status) error
	Update(ctx context.Context, u *User) error
}
