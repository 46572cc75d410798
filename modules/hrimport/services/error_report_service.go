package services

import (
	"bytes"
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/staffbridge/staffbridge/modules/hrimport/domain/importjob"
	"github.com/staffbridge/staffbridge/pkg/composables"
)

var ErrJobNotFinished = fmt.Errorf("import job has not finished yet")

// ErrorReportService renders the row errors of a finished job as an
// XLSX workbook for HR operators to fix and resubmit.
type ErrorReportService struct {
	jobs importjob.Repository
}

func NewErrorReportService(jobs importjob.Repository) *ErrorReportService {
	return &ErrorReportService{jobs: jobs}
}

func (s *ErrorReportService) GenerateXLSX(ctx context.Context, id uuid.UUID) ([]byte, error) {
	job, err := composables.InTenantTxResult(ctx, func(txCtx context.Context) (importjob.ImportJob, error) {
		return s.jobs.GetByID(txCtx, id)
	})
	if err != nil {
		return nil, err
	}
	if !job.Status().IsTerminal() {
		return nil, ErrJobNotFinished
	}

	f := excelize.NewFile()
	const sheet = "Errors"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	headers := []string{"Row", "Email", "Error"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, err
		}
	}

	for i, rowError := range job.Errors() {
		rowIndex := i + 2
		values := []interface{}{rowError.Row, rowError.Email, rowError.Message}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, rowIndex)
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return nil, err
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
