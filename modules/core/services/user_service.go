package services

import (
	"context"

	"github.com/staffbridge/staffbridge/modules/core/domain/aggregates/user"
	"github.com/staffbridge/staffbridge/pkg/composables"
	"github.com/staffbridge/staffbridge/pkg/eventbus"
)

type UserService struct {
	repo      user.Repository
	publisher eventbus.EventBus
}

func NewUserService(repo user.Repository, publisher eventbus.EventBus) *UserService {
	return &UserService{
		repo:      repo,
		publisher: publisher,
	}
}

func (s *UserService) Count(ctx context.Context) (int64, error) {
	return composables.InTenantTxResult(ctx, func(txCtx context.Context) (int64, error) {
		return s.repo.Count(txCtx)
	})
}

func (s *UserService) GetByID(ctx context.Context, id uint) (user.User, error) {
	return composables.InTenantTxResult(ctx, func(txCtx context.Context) (user.User, error) {
		return s.repo.GetByID(txCtx, id)
	})
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return composables.InTenantTxResult(ctx, func(txCtx context.Context) (user.User, error) {
		return s.repo.GetByEmail(txCtx, email)
	})
}

func (s *UserService) Create(ctx context.Context, entity user.User) (user.User, error) {
	return composables.InTenantTxResult(ctx, func(txCtx context.Context) (user.User, error) {
		created, err := s.repo.Create(txCtx, entity)
		if err != nil {
			return nil, err
		}
		s.publisher.Publish(user.NewCreatedEvent(txCtx, created))
		return created, nil
	})
}

func (s *UserService) Update(ctx context.Context, entity user.User) (user.User, error) {
	return composables.InTenantTxResult(ctx, func(txCtx context.Context) (user.User, error) {
		updated, err := s.repo.Update(txCtx, entity)
		if err != nil {
			return nil, err
		}
		s.publisher.Publish(user.NewUpdatedEvent(txCtx, updated))
		return updated, nil
	})
}
