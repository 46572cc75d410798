package services

import (
	"context"

	"github.com/staffbridge/staffbridge/modules/hrm/domain/aggregates/profile"
	"github.com/staffbridge/staffbridge/pkg/composables"
	"github.com/staffbridge/staffbridge/pkg/eventbus"
)

type ProfileService struct {
	repo      profile.Repository
	publisher eventbus.EventBus
}

func NewProfileService(repo profile.Repository, publisher eventbus.EventBus) *ProfileService {
	return &ProfileService{
		repo:      repo,
		publisher: publisher,
	}
}

func (s *ProfileService) Count(ctx context.Context) (int64, error) {
	return composables.InTenantTxResult(ctx, func(txCtx context.Context) (int64, error) {
		return s.repo.Count(txCtx)
	})
}

func (s *ProfileService) GetByID(ctx context.Context, id uint) (profile.Profile, error) {
	return composables.InTenantTxResult(ctx, func(txCtx context.Context) (profile.Profile, error) {
		return s.repo.GetByID(txCtx, id)
	})
}

func (s *ProfileService) GetByEmail(ctx context.Context, email string) (profile.Profile, error) {
	return composables.InTenantTxResult(ctx, func(txCtx context.Context) (profile.Profile, error) {
		return s.repo.GetByEmail(txCtx, email)
	})
}

func (s *ProfileService) Create(ctx context.Context, entity profile.Profile) (profile.Profile, error) {
	return composables.InTenantTxResult(ctx, func(txCtx context.Context) (profile.Profile, error) {
		created, err := s.repo.Create(txCtx, entity)
		if err != nil {
			return nil, err
		}
		s.publisher.Publish(profile.NewCreatedEvent(txCtx, created))
		return created, nil
	})
}

func (s *ProfileService) Update(ctx context.Context, entity profile.Profile) (profile.Profile, error) {
	return composables.InTenantTxResult(ctx, func(txCtx context.Context) (profile.Profile, error) {
		updated, err := s.repo.Update(txCtx, entity)
		if err != nil {
			return nil, err
		}
		s.publisher.Publish(profile.NewUpdatedEvent(txCtx, updated))
		return updated, nil
	})
}
