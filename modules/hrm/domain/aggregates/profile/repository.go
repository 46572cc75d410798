package profile

import "context"

type Repository interface {
	Count(ctx context.Context) (int64, error)
	GetByID(ctx context.Context, id uint) (Profile, error)
	// GetByEmail matches case-insensitively within the current tenant.
	GetByEmail(ctx context.Context, email string) (Profile, error)
	GetByUserID(ctx context.Context, userID uint) (Profile, error)
	Create(ctx context.Context, p Profile) (Profile, error)
	Update(ctx context.Context, p Profile) (Profile, error)
}
