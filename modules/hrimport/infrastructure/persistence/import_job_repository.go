package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	gfErrors "github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/staffbridge/staffbridge/modules/hrimport/domain/importjob"
	"github.com/staffbridge/staffbridge/modules/hrimport/infrastructure/persistence/models"
	"github.com/staffbridge/staffbridge/pkg/composables"
	"github.com/staffbridge/staffbridge/pkg/repo"
)

var (
	ErrImportJobNotFound = errors.New("import job not found")
)

const (
	importJobFindQuery = `
		SELECT
			j.id,
			j.tenant_id,
			j.created_by,
			j.status,
			j.config,
			j.payload,
			j.total_rows,
			j.processed_rows,
			j.success_count,
			j.failure_count,
			j.auth_created_count,
			j.errors,
			j.result,
			j.created_at,
			j.updated_at,
			j.started_at,
			j.completed_at,
			j.heartbeat_at
		FROM import_jobs j`

	// summary projection: NULL in place of the payload column keeps
	// listing cheap for jobs carrying large batches
	importJobSummaryQuery = `
		SELECT
			j.id,
			j.tenant_id,
			j.created_by,
			j.status,
			j.config,
			NULL::jsonb,
			j.total_rows,
			j.processed_rows,
			j.success_count,
			j.failure_count,
			j.auth_created_count,
			j.errors,
			j.result,
			j.created_at,
			j.updated_at,
			j.started_at,
			j.completed_at,
			j.heartbeat_at
		FROM import_jobs j`

	importJobCountQuery = `SELECT COUNT(j.id) FROM import_jobs j WHERE j.tenant_id = $1`

	importJobClaimQuery = `
		UPDATE import_jobs
		SET status = 'processing', started_at = NOW(), heartbeat_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2 AND status = 'pending'`

	importJobProgressQuery = `
		UPDATE import_jobs
		SET processed_rows = $2,
			success_count = $3,
			failure_count = $4,
			auth_created_count = $5,
			updated_at = NOW()
		WHERE id = $1 AND tenant_id = $6 AND status = 'processing' AND processed_rows <= $2`

	importJobHeartbeatQuery = `
		UPDATE import_jobs
		SET heartbeat_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2 AND status = 'processing'`

	// the terminal write is authoritative for the counters: progress
	// updates are best effort and the last one may have been lost
	importJobFinalizeQuery = `
		UPDATE import_jobs
		SET status = $2,
			result = $3,
			errors = $4,
			processed_rows = $5,
			success_count = $6,
			failure_count = $7,
			auth_created_count = $8,
			payload = NULL,
			completed_at = NOW(),
			updated_at = NOW()
		WHERE id = $1 AND tenant_id = $9 AND status = 'processing'`

	importJobStuckPendingQuery = `
		SELECT j.id, j.tenant_id FROM import_jobs j
		WHERE j.status = 'pending' AND j.updated_at < $1
		ORDER BY j.updated_at`

	importJobRequeueStaleQuery = `
		UPDATE import_jobs
		SET status = 'pending', heartbeat_at = NULL, updated_at = NOW()
		WHERE status = 'processing' AND heartbeat_at < $1
		RETURNING id, tenant_id`
)

type PgImportJobRepository struct{}

func NewImportJobRepository() importjob.Repository {
	return &PgImportJobRepository{}
}

func (g *PgImportJobRepository) queryJobs(ctx context.Context, query string, args ...interface{}) ([]importjob.ImportJob, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, gfErrors.Wrap(err, "failed to query import jobs")
	}
	defer rows.Close()

	jobs := make([]importjob.ImportJob, 0)
	for rows.Next() {
		var dbJob models.ImportJob
		if err := rows.Scan(
			&dbJob.ID,
			&dbJob.TenantID,
			&dbJob.CreatedBy,
			&dbJob.Status,
			&dbJob.Config,
			&dbJob.Payload,
			&dbJob.TotalRows,
			&dbJob.ProcessedRows,
			&dbJob.SuccessCount,
			&dbJob.FailureCount,
			&dbJob.AuthCreatedCount,
			&dbJob.Errors,
			&dbJob.Result,
			&dbJob.CreatedAt,
			&dbJob.UpdatedAt,
			&dbJob.StartedAt,
			&dbJob.CompletedAt,
			&dbJob.HeartbeatAt,
		); err != nil {
			return nil, gfErrors.Wrap(err, "failed to scan import job row")
		}
		entity, err := toDomainImportJob(&dbJob)
		if err != nil {
			return nil, gfErrors.Wrap(err, "failed to map import job")
		}
		jobs = append(jobs, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, gfErrors.Wrap(err, "failed to iterate import job rows")
	}
	return jobs, nil
}

func (g *PgImportJobRepository) Create(ctx context.Context, entity importjob.ImportJob) (importjob.ImportJob, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	dbJob, err := toDBImportJob(entity)
	if err != nil {
		return nil, err
	}
	dbJob.TenantID = tenantID.String()

	fields := []string{
		"id",
		"tenant_id",
		"created_by",
		"status",
		"config",
		"payload",
		"total_rows",
		"processed_rows",
		"success_count",
		"failure_count",
		"auth_created_count",
		"errors",
		"result",
		"created_at",
		"updated_at",
	}
	if _, err := tx.Exec(
		ctx,
		repo.Insert("import_jobs", fields),
		dbJob.ID,
		dbJob.TenantID,
		dbJob.CreatedBy,
		dbJob.Status,
		dbJob.Config,
		dbJob.Payload,
		dbJob.TotalRows,
		dbJob.ProcessedRows,
		dbJob.SuccessCount,
		dbJob.FailureCount,
		dbJob.AuthCreatedCount,
		dbJob.Errors,
		dbJob.Result,
		dbJob.CreatedAt,
		dbJob.UpdatedAt,
	); err != nil {
		return nil, gfErrors.Wrap(err, "failed to insert import job")
	}
	return g.GetByID(ctx, entity.ID())
}

func (g *PgImportJobRepository) GetByID(ctx context.Context, id uuid.UUID) (importjob.ImportJob, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	jobs, err := g.queryJobs(ctx, repo.Join(importJobFindQuery, "WHERE j.id = $1 AND j.tenant_id = $2"), id, tenantID)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, ErrImportJobNotFound
	}
	return jobs[0], nil
}

func (g *PgImportJobRepository) GetPaginated(ctx context.Context, params *importjob.FindParams) ([]importjob.ImportJob, error) {
	if params == nil {
		params = &importjob.FindParams{}
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}

	limit := params.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}

	where := "WHERE j.tenant_id = $1"
	args := []interface{}{tenantID}
	if params.Status != "" {
		where += " AND j.status = $2"
		args = append(args, string(params.Status))
	}

	query := repo.Join(
		importJobSummaryQuery,
		where,
		"ORDER BY j.created_at DESC",
		repo.FormatLimitOffset(limit, offset),
	)
	return g.queryJobs(ctx, query, args...)
}

func (g *PgImportJobRepository) Count(ctx context.Context) (int64, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return 0, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	var count int64
	if err := tx.QueryRow(ctx, importJobCountQuery, tenantID).Scan(&count); err != nil {
		return 0, gfErrors.Wrap(err, "failed to count import jobs")
	}
	return count, nil
}

func (g *PgImportJobRepository) ClaimPending(ctx context.Context, id uuid.UUID) (bool, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return false, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return false, err
	}
	tag, err := tx.Exec(ctx, importJobClaimQuery, id, tenantID)
	if err != nil {
		return false, gfErrors.Wrap(err, "failed to claim import job")
	}
	return tag.RowsAffected() == 1, nil
}

func (g *PgImportJobRepository) UpdateProgress(ctx context.Context, id uuid.UUID, processed, success, failed, authCreated int) error {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, importJobProgressQuery, id, processed, success, failed, authCreated, tenantID); err != nil {
		return gfErrors.Wrap(err, "failed to update import job progress")
	}
	return nil
}

func (g *PgImportJobRepository) Heartbeat(ctx context.Context, id uuid.UUID) error {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, importJobHeartbeatQuery, id, tenantID); err != nil {
		return gfErrors.Wrap(err, "failed to heartbeat import job")
	}
	return nil
}

func (g *PgImportJobRepository) Finalize(ctx context.Context, id uuid.UUID, status importjob.Status, result importjob.Result, rowErrors []importjob.RowError) error {
	if !status.IsTerminal() {
		return gfErrors.Errorf("cannot finalize import job with non-terminal status %q", status)
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	encodedResult, err := json.Marshal(result)
	if err != nil {
		return gfErrors.Wrap(err, "failed to encode result")
	}
	var encodedErrors []byte
	if len(rowErrors) > 0 {
		encodedErrors, err = json.Marshal(rowErrors)
		if err != nil {
			return gfErrors.Wrap(err, "failed to encode row errors")
		}
	}

	tag, err := tx.Exec(
		ctx,
		importJobFinalizeQuery,
		id,
		string(status),
		encodedResult,
		encodedErrors,
		result.Success+result.Failed,
		result.Success,
		result.Failed,
		result.AuthCreated,
		tenantID,
	)
	if err != nil {
		return gfErrors.Wrap(err, "failed to finalize import job")
	}
	if tag.RowsAffected() == 0 {
		return ErrImportJobNotFound
	}
	return nil
}

func (g *PgImportJobRepository) FindStuckPending(ctx context.Context, olderThan time.Duration) ([]importjob.QueueRef, error) {
	return g.queryRefs(ctx, importJobStuckPendingQuery, time.Now().Add(-olderThan))
}

func (g *PgImportJobRepository) RequeueStale(ctx context.Context, heartbeatOlderThan time.Duration) ([]importjob.QueueRef, error) {
	return g.queryRefs(ctx, importJobRequeueStaleQuery, time.Now().Add(-heartbeatOlderThan))
}

func (g *PgImportJobRepository) queryRefs(ctx context.Context, query string, cutoff time.Time) ([]importjob.QueueRef, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, query, cutoff)
	if err != nil {
		return nil, gfErrors.Wrap(err, "failed to query job refs")
	}
	defer rows.Close()

	refs := make([]importjob.QueueRef, 0)
	for rows.Next() {
		var idRaw, tenantRaw string
		if err := rows.Scan(&idRaw, &tenantRaw); err != nil {
			return nil, gfErrors.Wrap(err, "failed to scan job ref")
		}
		id, err := uuid.Parse(idRaw)
		if err != nil {
			return nil, gfErrors.Wrap(err, "failed to parse job id")
		}
		tenantID, err := uuid.Parse(tenantRaw)
		if err != nil {
			return nil, gfErrors.Wrap(err, "failed to parse tenant id")
		}
		refs = append(refs, importjob.QueueRef{ID: id, TenantID: tenantID})
	}
	if err := rows.Err(); err != nil {
		return nil, gfErrors.Wrap(err, "failed to iterate job refs")
	}
	return refs, nil
}
