package services

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/staffbridge/staffbridge/modules/hrimport/domain/importjob"
	"github.com/staffbridge/staffbridge/pkg/composables"
	"github.com/staffbridge/staffbridge/pkg/constants"
)

// SchedulerOptions tunes the background workers and the reclaim sweep.
type SchedulerOptions struct {
	Workers          int
	SweepInterval    time.Duration
	PendingThreshold time.Duration
	HeartbeatTimeout time.Duration
	JobTimeout       time.Duration
}

func (o *SchedulerOptions) setDefaults() {
	if o.Workers <= 0 {
		o.Workers = 2
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = 30 * time.Second
	}
	if o.PendingThreshold <= 0 {
		o.PendingThreshold = time.Minute
	}
	if o.HeartbeatTimeout <= 0 {
		o.HeartbeatTimeout = 5 * time.Minute
	}
	if o.JobTimeout <= 0 {
		o.JobTimeout = 5 * time.Minute
	}
}

// ImportScheduler runs the worker pool that processes queued import
// jobs and the periodic sweep that rescues jobs whose dispatch was lost
// or whose worker died mid-batch.
type ImportScheduler struct {
	service *ImportService
	jobs    importjob.Repository
	pool    *pgxpool.Pool
	queue   <-chan importjob.QueueRef
	logger  *logrus.Logger
	opts    SchedulerOptions
}

func NewImportScheduler(
	service *ImportService,
	jobs importjob.Repository,
	pool *pgxpool.Pool,
	queue <-chan importjob.QueueRef,
	logger *logrus.Logger,
	opts SchedulerOptions,
) *ImportScheduler {
	opts.setDefaults()
	return &ImportScheduler{
		service: service,
		jobs:    jobs,
		pool:    pool,
		queue:   queue,
		logger:  logger,
		opts:    opts,
	}
}

// Run blocks until ctx is cancelled.
func (s *ImportScheduler) Run(ctx context.Context) error {
	for i := 0; i < s.opts.Workers; i++ {
		go s.workerLoop(ctx, i)
	}
	return s.sweepLoop(ctx)
}

func (s *ImportScheduler) workerLoop(ctx context.Context, worker int) {
	logger := s.logger.WithFields(logrus.Fields{"component": "hrimport.worker", "worker": worker})
	for {
		select {
		case <-ctx.Done():
			return
		case ref := <-s.queue:
			s.processRef(ctx, logger, ref)
		}
	}
}

func (s *ImportScheduler) processRef(ctx context.Context, logger *logrus.Entry, ref importjob.QueueRef) {
	jobCtx, cancel := context.WithTimeout(s.jobContext(ctx, logger, ref), s.opts.JobTimeout)
	defer cancel()

	if err := s.service.Trigger(jobCtx, ref.ID); err != nil {
		if errors.Is(err, ErrJobNotPending) {
			// lost the claim race or the job already finished
			logger.WithField("job_id", ref.ID).Debug("skipping job, not pending")
			return
		}
		logger.WithField("job_id", ref.ID).WithError(err).Error("failed to claim import job")
		return
	}
	if err := s.service.Process(jobCtx, ref.ID); err != nil {
		logger.WithField("job_id", ref.ID).WithError(err).Error("import job processing failed")
	}
}

// jobContext rebuilds the ambient request context for background work:
// pool, tenant and a scoped logger.
func (s *ImportScheduler) jobContext(ctx context.Context, logger *logrus.Entry, ref importjob.QueueRef) context.Context {
	jobCtx := composables.WithPool(ctx, s.pool)
	jobCtx = composables.WithTenantID(jobCtx, ref.TenantID)
	return context.WithValue(jobCtx, constants.LoggerKey, logger.WithField("job_id", ref.ID))
}

func (s *ImportScheduler) sweepLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep finds pending jobs nobody picked up and processing jobs whose
// heartbeat expired, and feeds both back through the workers.
func (s *ImportScheduler) sweep(ctx context.Context) {
	logger := s.logger.WithField("component", "hrimport.sweep")
	sweepCtx := composables.WithPool(ctx, s.pool)

	stuck, err := s.jobs.FindStuckPending(sweepCtx, s.opts.PendingThreshold)
	if err != nil {
		logger.WithError(err).Error("failed to list stuck pending jobs")
	}

	stale, err := s.jobs.RequeueStale(sweepCtx, s.opts.HeartbeatTimeout)
	if err != nil {
		logger.WithError(err).Error("failed to requeue stale jobs")
	}

	for _, ref := range append(stuck, stale...) {
		logger.WithField("job_id", ref.ID).Info("re-dispatching stuck import job")
		s.service.metrics.JobReclaimed()
		select {
		case <-ctx.Done():
			return
		default:
			s.processRef(ctx, logger, ref)
		}
	}
}
