package dtos

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/staffbridge/staffbridge/modules/hrimport/domain/importjob"
	"github.com/staffbridge/staffbridge/modules/hrimport/domain/mapping"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// SubmitImportRequest is the POST body for a new import job.
type SubmitImportRequest struct {
	Config mapping.FieldMappingConfig `json:"config" validate:"required"`
	Rows   []mapping.RawRow           `json:"rows" validate:"required,min=1,dive,required"`
}

func (r *SubmitImportRequest) Validate() error {
	return validate.Struct(r)
}

type SubmitImportResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type RowErrorResponse struct {
	Row     int    `json:"row"`
	Email   string `json:"email,omitempty"`
	Message string `json:"message"`
}

type ResultResponse struct {
	Success     int    `json:"success"`
	Failed      int    `json:"failed"`
	AuthCreated int    `json:"auth_created"`
	DurationMS  int64  `json:"duration_ms"`
	Duration    string `json:"duration"`
}

// ImportJobResponse is the full polling view of one job.
type ImportJobResponse struct {
	ID            string             `json:"id"`
	Status        string             `json:"status"`
	TotalRows     int                `json:"total_rows"`
	ProcessedRows int                `json:"processed_rows"`
	SuccessCount  int                `json:"success_count"`
	FailureCount  int                `json:"failure_count"`
	AuthCreated   int                `json:"auth_created_count"`
	Errors        []RowErrorResponse `json:"errors,omitempty"`
	Result        *ResultResponse    `json:"result,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	StartedAt     *time.Time         `json:"started_at,omitempty"`
	CompletedAt   *time.Time         `json:"completed_at,omitempty"`
}

// ImportJobSummaryResponse is the listing view: counters without errors.
type ImportJobSummaryResponse struct {
	ID            string     `json:"id"`
	Status        string     `json:"status"`
	TotalRows     int        `json:"total_rows"`
	ProcessedRows int        `json:"processed_rows"`
	SuccessCount  int        `json:"success_count"`
	FailureCount  int        `json:"failure_count"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

func ToImportJobResponse(job importjob.ImportJob) *ImportJobResponse {
	resp := &ImportJobResponse{
		ID:            job.ID().String(),
		Status:        string(job.Status()),
		TotalRows:     job.TotalRows(),
		ProcessedRows: job.ProcessedRows(),
		SuccessCount:  job.SuccessCount(),
		FailureCount:  job.FailureCount(),
		AuthCreated:   job.AuthCreatedCount(),
		CreatedAt:     job.CreatedAt(),
		StartedAt:     job.StartedAt(),
		CompletedAt:   job.CompletedAt(),
	}
	for _, rowError := range job.Errors() {
		resp.Errors = append(resp.Errors, RowErrorResponse{
			Row:     rowError.Row,
			Email:   rowError.Email,
			Message: rowError.Message,
		})
	}
	if result := job.Result(); result != nil {
		resp.Result = &ResultResponse{
			Success:     result.Success,
			Failed:      result.Failed,
			AuthCreated: result.AuthCreated,
			DurationMS:  result.Duration.Milliseconds(),
			Duration:    result.Duration.String(),
		}
	}
	return resp
}

func ToImportJobSummaryResponse(job importjob.ImportJob) *ImportJobSummaryResponse {
	return &ImportJobSummaryResponse{
		ID:            job.ID().String(),
		Status:        string(job.Status()),
		TotalRows:     job.TotalRows(),
		ProcessedRows: job.ProcessedRows(),
		SuccessCount:  job.SuccessCount(),
		FailureCount:  job.FailureCount(),
		CreatedAt:     job.CreatedAt(),
		CompletedAt:   job.CompletedAt(),
	}
}
