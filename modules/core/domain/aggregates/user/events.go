package user

import (
	"context"

	"github.com/google/uuid"

	"github.com/staffbridge/staffbridge/pkg/constants"
)

type CreatedEvent struct {
	TenantID uuid.UUID
	Result   User
}

type UpdatedEvent struct {
	TenantID uuid.UUID
	Result   User
}

func NewCreatedEvent(ctx context.Context, result User) *CreatedEvent {
	return &CreatedEvent{TenantID: tenantFromContext(ctx), Result: result}
}

func NewUpdatedEvent(ctx context.Context, result User) *UpdatedEvent {
	return &UpdatedEvent{TenantID: tenantFromContext(ctx), Result: result}
}

func tenantFromContext(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(constants.TenantIDKey).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}
