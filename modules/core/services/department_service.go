package services

import (
	"context"

	"github.com/staffbridge/staffbridge/modules/core/domain/entities/department"
	"github.com/staffbridge/staffbridge/pkg/composables"
	"github.com/staffbridge/staffbridge/pkg/eventbus"
)

type DepartmentService struct {
	repo      department.Repository
	publisher eventbus.EventBus
}

func NewDepartmentService(repo department.Repository, publisher eventbus.EventBus) *DepartmentService {
	return &DepartmentService{
		repo:      repo,
		publisher: publisher,
	}
}

func (s *DepartmentService) GetAll(ctx context.Context) ([]*department.Department, error) {
	return composables.InTenantTxResult(ctx, func(txCtx context.Context) ([]*department.Department, error) {
		return s.repo.GetAll(txCtx)
	})
}

func (s *DepartmentService) GetByID(ctx context.Context, id uint) (*department.Department, error) {
	return composables.InTenantTxResult(ctx, func(txCtx context.Context) (*department.Department, error) {
		return s.repo.GetByID(txCtx, id)
	})
}

func (s *DepartmentService) Create(ctx context.Context, d *department.Department) (*department.Department, error) {
	return composables.InTenantTxResult(ctx, func(txCtx context.Context) (*department.Department, error) {
		return s.repo.Create(txCtx, d)
	})
}
