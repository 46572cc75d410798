package department

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Department struct {
	ID        uint
	TenantID  uuid.UUID
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Repository interface {
	GetAll(ctx context.Context) ([]*Department, error)
	GetByID(ctx context.Context, id uint) (*Department, error)
	Create(ctx context.Context, d *Department) (*Department, error)
}
