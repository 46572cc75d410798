package persistence

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/staffbridge/staffbridge/modules/hrimport/domain/importjob"
	"github.com/staffbridge/staffbridge/modules/hrimport/domain/mapping"
	"github.com/staffbridge/staffbridge/modules/hrimport/infrastructure/persistence/models"
)

func toDomainImportJob(dbJob *models.ImportJob) (importjob.ImportJob, error) {
	id, err := uuid.Parse(dbJob.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse job id %q: %w", dbJob.ID, err)
	}
	tenantID, err := uuid.Parse(dbJob.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse tenant id %q: %w", dbJob.TenantID, err)
	}
	status, err := importjob.NewStatus(dbJob.Status)
	if err != nil {
		return nil, err
	}

	var config mapping.FieldMappingConfig
	if err := json.Unmarshal(dbJob.Config, &config); err != nil {
		return nil, fmt.Errorf("failed to decode mapping config: %w", err)
	}

	var rows []mapping.RawRow
	if len(dbJob.Payload) > 0 {
		if err := json.Unmarshal(dbJob.Payload, &rows); err != nil {
			return nil, fmt.Errorf("failed to decode payload: %w", err)
		}
	}

	var rowErrors []importjob.RowError
	if len(dbJob.Errors) > 0 {
		if err := json.Unmarshal(dbJob.Errors, &rowErrors); err != nil {
			return nil, fmt.Errorf("failed to decode row errors: %w", err)
		}
	}

	var result *importjob.Result
	if len(dbJob.Result) > 0 {
		result = &importjob.Result{}
		if err := json.Unmarshal(dbJob.Result, result); err != nil {
			return nil, fmt.Errorf("failed to decode result: %w", err)
		}
	}

	opts := []importjob.Option{
		importjob.WithID(id),
		importjob.WithTenantID(tenantID),
		importjob.WithStatus(status),
		importjob.WithTotalRows(dbJob.TotalRows),
		importjob.WithProgress(dbJob.ProcessedRows, dbJob.SuccessCount, dbJob.FailureCount, dbJob.AuthCreatedCount),
		importjob.WithErrors(rowErrors),
		importjob.WithResult(result),
		importjob.WithCreatedAt(dbJob.CreatedAt),
		importjob.WithUpdatedAt(dbJob.UpdatedAt),
	}
	if dbJob.CreatedBy.Valid {
		opts = append(opts, importjob.WithCreatedBy(uint(dbJob.CreatedBy.Int64)))
	}
	if dbJob.StartedAt.Valid {
		startedAt := dbJob.StartedAt.Time
		opts = append(opts, importjob.WithStartedAt(&startedAt))
	}
	if dbJob.CompletedAt.Valid {
		completedAt := dbJob.CompletedAt.Time
		opts = append(opts, importjob.WithCompletedAt(&completedAt))
	}
	if dbJob.HeartbeatAt.Valid {
		heartbeatAt := dbJob.HeartbeatAt.Time
		opts = append(opts, importjob.WithHeartbeatAt(&heartbeatAt))
	}

	return importjob.New(config, rows, opts...), nil
}

func toDBImportJob(entity importjob.ImportJob) (*models.ImportJob, error) {
	config, err := json.Marshal(entity.MappingConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to encode mapping config: %w", err)
	}

	dbJob := &models.ImportJob{
		ID:               entity.ID().String(),
		TenantID:         entity.TenantID().String(),
		Status:           string(entity.Status()),
		Config:           config,
		TotalRows:        entity.TotalRows(),
		ProcessedRows:    entity.ProcessedRows(),
		SuccessCount:     entity.SuccessCount(),
		FailureCount:     entity.FailureCount(),
		AuthCreatedCount: entity.AuthCreatedCount(),
		CreatedAt:        entity.CreatedAt(),
		UpdatedAt:        entity.UpdatedAt(),
	}
	if entity.CreatedBy() != 0 {
		dbJob.CreatedBy = sql.NullInt64{Int64: int64(entity.CreatedBy()), Valid: true}
	}
	if rows := entity.Rows(); rows != nil {
		payload, err := json.Marshal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to encode payload: %w", err)
		}
		dbJob.Payload = payload
	}
	if rowErrors := entity.Errors(); len(rowErrors) > 0 {
		encoded, err := json.Marshal(rowErrors)
		if err != nil {
			return nil, fmt.Errorf("failed to encode row errors: %w", err)
		}
		dbJob.Errors = encoded
	}
	if result := entity.Result(); result != nil {
		encoded, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("failed to encode result: %w", err)
		}
		dbJob.Result = encoded
	}
	if startedAt := entity.StartedAt(); startedAt != nil {
		dbJob.StartedAt = sql.NullTime{Time: *startedAt, Valid: true}
	}
	if completedAt := entity.CompletedAt(); completedAt != nil {
		dbJob.CompletedAt = sql.NullTime{Time: *completedAt, Valid: true}
	}
	if heartbeatAt := entity.HeartbeatAt(); heartbeatAt != nil {
		dbJob.HeartbeatAt = sql.NullTime{Time: *heartbeatAt, Valid: true}
	}
	return dbJob, nil
}
