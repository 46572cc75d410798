package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/staffbridge/staffbridge/modules/core/domain/aggregates/user"
	"github.com/staffbridge/staffbridge/modules/core/domain/entities/department"
	"github.com/staffbridge/staffbridge/modules/hrimport/domain/importjob"
	"github.com/staffbridge/staffbridge/modules/hrimport/domain/mapping"
	"github.com/staffbridge/staffbridge/modules/hrm/domain/aggregates/profile"
	"github.com/staffbridge/staffbridge/pkg/composables"
	"github.com/staffbridge/staffbridge/pkg/eventbus"
)

var (
	ErrEmptyBatch    = errors.New("import batch contains no rows")
	ErrBatchTooLarge = errors.New("import batch exceeds the row limit")
	ErrJobNotPending = errors.New("import job is not pending")
	ErrJobNotClaimed = errors.New("import job is not in processing state")
)

// ImportServiceOptions tunes batch behavior; zero values fall back to
// safe defaults.
type ImportServiceOptions struct {
	ProgressEvery int
	MaxRows       int
}

// ImportService owns the import job lifecycle: submission, claiming,
// batch processing and terminal bookkeeping.
type ImportService struct {
	jobs        importjob.Repository
	users       user.Repository
	profiles    profile.Repository
	departments department.Repository
	publisher   eventbus.EventBus
	metrics     *PipelineMetrics
	queue       chan<- importjob.QueueRef
	opts        ImportServiceOptions
}

func NewImportService(
	jobs importjob.Repository,
	users user.Repository,
	profiles profile.Repository,
	departments department.Repository,
	publisher eventbus.EventBus,
	metrics *PipelineMetrics,
	queue chan<- importjob.QueueRef,
	opts ImportServiceOptions,
) *ImportService {
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = 50
	}
	if opts.MaxRows <= 0 {
		opts.MaxRows = 50000
	}
	return &ImportService{
		jobs:        jobs,
		users:       users,
		profiles:    profiles,
		departments: departments,
		publisher:   publisher,
		metrics:     metrics,
		queue:       queue,
		opts:        opts,
	}
}

// Submit validates the batch, persists it as a pending job and hands it
// to the background workers. The pending record is durable before
// dispatch, so a lost dispatch is recoverable by the sweep.
func (s *ImportService) Submit(ctx context.Context, config mapping.FieldMappingConfig, rows []mapping.RawRow) (importjob.ImportJob, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(rows) > s.opts.MaxRows {
		return nil, fmt.Errorf("%w: %d rows, limit %d", ErrBatchTooLarge, len(rows), s.opts.MaxRows)
	}

	opts := make([]importjob.Option, 0, 1)
	if creator, err := composables.UseUser(ctx); err == nil {
		opts = append(opts, importjob.WithCreatedBy(creator.ID()))
	}

	created, err := composables.InTenantTxResult(ctx, func(txCtx context.Context) (importjob.ImportJob, error) {
		return s.jobs.Create(txCtx, importjob.New(config, rows, opts...))
	})
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(importjob.NewCreatedEvent(ctx, created))
	s.dispatch(ctx, importjob.QueueRef{ID: created.ID(), TenantID: created.TenantID()})
	return created, nil
}

// dispatch is fire-and-forget: when the queue is saturated the pending
// row stays behind and the reclaim sweep re-dispatches it later.
func (s *ImportService) dispatch(ctx context.Context, ref importjob.QueueRef) {
	select {
	case s.queue <- ref:
	default:
		s.log(ctx).WithField("job_id", ref.ID).Warn("import queue full, job left for the reclaim sweep")
	}
}

// Trigger claims a pending job for processing. Exactly one caller wins;
// the rest get ErrJobNotPending.
func (s *ImportService) Trigger(ctx context.Context, id uuid.UUID) error {
	claimed, err := composables.InTenantTxResult(ctx, func(txCtx context.Context) (bool, error) {
		return s.jobs.ClaimPending(txCtx, id)
	})
	if err != nil {
		return err
	}
	if !claimed {
		return ErrJobNotPending
	}
	s.metrics.JobStarted()
	return nil
}

// Process runs the batch of an already-claimed job. Row failures are
// recorded and the job still completes; only a batch-level fault moves
// it to failed, with a synthetic row-0 error explaining why.
func (s *ImportService) Process(ctx context.Context, id uuid.UUID) error {
	job, err := composables.InTenantTxResult(ctx, func(txCtx context.Context) (importjob.ImportJob, error) {
		return s.jobs.GetByID(txCtx, id)
	})
	if err != nil {
		return err
	}
	if job.Status() != importjob.StatusProcessing {
		return fmt.Errorf("%w: status is %q", ErrJobNotClaimed, job.Status())
	}

	start := time.Now()
	result, runErr := s.runBatch(ctx, job)
	duration := time.Since(start)

	if runErr != nil {
		return s.finalizeFailed(ctx, job, runErr, duration)
	}
	return s.finalizeCompleted(ctx, job, result, duration)
}

func (s *ImportService) runBatch(ctx context.Context, job importjob.ImportJob) (*BatchResult, error) {
	departments, err := composables.InTenantTxResult(ctx, func(txCtx context.Context) ([]*department.Department, error) {
		return s.departments.GetAll(txCtx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to preload departments: %w", err)
	}

	resolver := newIdentityResolver(s.users, s.profiles, departments, s.log(ctx))
	orchestrator := newBatchOrchestrator(s.opts.ProgressEvery)

	return orchestrator.Run(
		ctx,
		job.Rows(),
		job.MappingConfig(),
		func(rowCtx context.Context, record *mapping.NormalizedRecord) (bool, error) {
			// each row in its own transaction: a failed row rolls back
			// alone and cannot poison its neighbors
			return composables.InTenantTxResult(rowCtx, func(txCtx context.Context) (bool, error) {
				return resolver.Resolve(txCtx, record)
			})
		},
		func(progress BatchProgress) {
			s.persistProgress(ctx, job.ID(), progress)
		},
	)
}

// persistProgress writes counters and refreshes the heartbeat. Progress
// writes are best effort; a failed write only delays visibility.
func (s *ImportService) persistProgress(ctx context.Context, id uuid.UUID, progress BatchProgress) {
	err := composables.InTenantTx(ctx, func(txCtx context.Context) error {
		if err := s.jobs.UpdateProgress(txCtx, id, progress.Processed, progress.Success, progress.Failed, progress.AuthCreated); err != nil {
			return err
		}
		return s.jobs.Heartbeat(txCtx, id)
	})
	if err != nil {
		s.log(ctx).WithField("job_id", id).WithError(err).Warn("failed to persist import progress")
	}
}

func (s *ImportService) finalizeCompleted(ctx context.Context, job importjob.ImportJob, result *BatchResult, duration time.Duration) error {
	err := composables.InTenantTx(ctx, func(txCtx context.Context) error {
		return s.jobs.Finalize(
			txCtx,
			job.ID(),
			importjob.StatusCompleted,
			importjob.Result{
				Success:     result.Success,
				Failed:      result.Failed,
				AuthCreated: result.AuthCreated,
				Duration:    duration,
			},
			result.Errors,
		)
	})
	if err != nil {
		return err
	}
	s.metrics.JobCompleted(duration, result)

	finished, err := composables.InTenantTxResult(ctx, func(txCtx context.Context) (importjob.ImportJob, error) {
		return s.jobs.GetByID(txCtx, job.ID())
	})
	if err != nil {
		return err
	}
	s.publisher.Publish(importjob.NewCompletedEvent(ctx, finished))
	s.log(ctx).WithFields(logrus.Fields{
		"job_id":  job.ID(),
		"success": result.Success,
		"failed":  result.Failed,
	}).Info("import job completed")
	return nil
}

func (s *ImportService) finalizeFailed(ctx context.Context, job importjob.ImportJob, cause error, duration time.Duration) error {
	rowErrors := []importjob.RowError{{Row: 0, Message: cause.Error()}}
	err := composables.InTenantTx(ctx, func(txCtx context.Context) error {
		return s.jobs.Finalize(
			txCtx,
			job.ID(),
			importjob.StatusFailed,
			importjob.Result{Failed: job.TotalRows(), Duration: duration},
			rowErrors,
		)
	})
	if err != nil {
		return errors.Join(cause, err)
	}
	s.metrics.JobFailed()

	failed, err := composables.InTenantTxResult(ctx, func(txCtx context.Context) (importjob.ImportJob, error) {
		return s.jobs.GetByID(txCtx, job.ID())
	})
	if err == nil {
		s.publisher.Publish(importjob.NewFailedEvent(ctx, failed))
	}
	s.log(ctx).WithField("job_id", job.ID()).WithError(cause).Error("import job failed")
	return cause
}

func (s *ImportService) GetByID(ctx context.Context, id uuid.UUID) (importjob.ImportJob, error) {
	return composables.InTenantTxResult(ctx, func(txCtx context.Context) (importjob.ImportJob, error) {
		return s.jobs.GetByID(txCtx, id)
	})
}

func (s *ImportService) ListRecent(ctx context.Context, params *importjob.FindParams) ([]importjob.ImportJob, error) {
	return composables.InTenantTxResult(ctx, func(txCtx context.Context) ([]importjob.ImportJob, error) {
		return s.jobs.GetPaginated(txCtx, params)
	})
}

func (s *ImportService) Count(ctx context.Context) (int64, error) {
	return composables.InTenantTxResult(ctx, func(txCtx context.Context) (int64, error) {
		return s.jobs.Count(txCtx)
	})
}

func (s *ImportService) log(ctx context.Context) *logrus.Entry {
	if entry, ok := composables.TryUseLogger(ctx); ok {
		return entry
	}
	return logrus.NewEntry(logrus.StandardLogger()).WithField("component", "hrimport")
}
