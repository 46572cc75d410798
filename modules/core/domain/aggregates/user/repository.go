package user

import "context"

type Repository interface {
	GetByID(ctx context.Context, id uint) (User, error)
	// GetByEmail matches case-insensitively within the tenant in context.
	GetByEmail(ctx context.Context, email string) (User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, data User) (User, error)
	Update(ctx context.Context, data User) (User, error)
	Count(ctx context.Context) (int64, error)
}
