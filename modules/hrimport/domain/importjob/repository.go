package importjob

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type FindParams struct {
	Limit  int
	Offset int
	Status Status // empty matches all statuses
}

// QueueRef identifies a job outside any tenant-scoped request, so the
// background sweep can rebuild the tenant context before reprocessing.
type QueueRef struct {
	ID       uuid.UUID
	TenantID uuid.UUID
}

type Repository interface {
	Create(ctx context.Context, job ImportJob) (ImportJob, error)
	GetByID(ctx context.Context, id uuid.UUID) (ImportJob, error)
	// GetPaginated returns summary projections: counters and
	// timestamps without the raw rows payload.
	GetPaginated(ctx context.Context, params *FindParams) ([]ImportJob, error)
	Count(ctx context.Context) (int64, error)

	// ClaimPending atomically moves a pending job to processing and
	// reports whether this caller won the claim. A false return with a
	// nil error means another worker holds the job or it already
	// finished.
	ClaimPending(ctx context.Context, id uuid.UUID) (bool, error)

	// UpdateProgress persists counters for a processing job. Progress
	// never moves backwards; stale writes are dropped.
	UpdateProgress(ctx context.Context, id uuid.UUID, processed, success, failed, authCreated int) error

	Heartbeat(ctx context.Context, id uuid.UUID) error

	// Finalize records the terminal status, result and row errors, and
	// clears the raw rows payload.
	Finalize(ctx context.Context, id uuid.UUID, status Status, result Result, rowErrors []RowError) error

	// FindStuckPending lists pending jobs older than the threshold
	// whose dispatch was evidently lost.
	FindStuckPending(ctx context.Context, olderThan time.Duration) ([]QueueRef, error)

	// RequeueStale moves processing jobs whose heartbeat expired back
	// to pending and returns them for redispatch.
	RequeueStale(ctx context.Context, heartbeatOlderThan time.Duration) ([]QueueRef, error)
}
