package importjob

import (
	"context"

	"github.com/google/uuid"

	"github.com/staffbridge/staffbridge/pkg/constants"
)

type CreatedEvent struct {
	TenantID uuid.UUID
	Result   ImportJob
}

type CompletedEvent struct {
	TenantID uuid.UUID
	Result   ImportJob
}

type FailedEvent struct {
	TenantID uuid.UUID
	Result   ImportJob
}

func NewCreatedEvent(ctx context.Context, result ImportJob) *CreatedEvent {
	return &CreatedEvent{TenantID: tenantFromContext(ctx), Result: result}
}

func NewCompletedEvent(ctx context.Context, result ImportJob) *CompletedEvent {
	return &CompletedEvent{TenantID: tenantFromContext(ctx), Result: result}
}

func NewFailedEvent(ctx context.Context, result ImportJob) *FailedEvent {
	return &FailedEvent{TenantID: tenantFromContext(ctx), Result: result}
}

func tenantFromContext(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(constants.TenantIDKey).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}
