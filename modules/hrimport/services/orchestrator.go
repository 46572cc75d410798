package services

import (
	"context"
	"fmt"

	"github.com/staffbridge/staffbridge/modules/hrimport/domain/importjob"
	"github.com/staffbridge/staffbridge/modules/hrimport/domain/mapping"
)

// BatchProgress is a progress snapshot emitted while a batch runs.
type BatchProgress struct {
	Processed   int
	Success     int
	Failed      int
	AuthCreated int
}

// BatchResult is the outcome of one full batch run. Processed always
// equals Success+Failed; Errors preserves input order.
type BatchResult struct {
	Processed   int
	Success     int
	Failed      int
	AuthCreated int
	Errors      []importjob.RowError
}

// rowFunc resolves one normalized record and reports whether a new user
// account was created for it.
type rowFunc func(ctx context.Context, record *mapping.NormalizedRecord) (bool, error)

// progressFunc receives snapshots every progressEvery rows and always
// after the final row.
type progressFunc func(progress BatchProgress)

// batchOrchestrator walks a batch row by row in input order. A failing
// row is recorded and never stops the batch; only context cancellation
// aborts the run.
type batchOrchestrator struct {
	progressEvery int
}

func newBatchOrchestrator(progressEvery int) *batchOrchestrator {
	if progressEvery <= 0 {
		progressEvery = 50
	}
	return &batchOrchestrator{progressEvery: progressEvery}
}

func (o *batchOrchestrator) Run(
	ctx context.Context,
	rows []mapping.RawRow,
	config mapping.FieldMappingConfig,
	process rowFunc,
	onProgress progressFunc,
) (*BatchResult, error) {
	result := &BatchResult{}

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("batch aborted at row %d: %w", i+1, err)
		}

		rowNumber := i + 1
		authCreated, err := o.processRow(ctx, row, config, process)
		result.Processed++
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, importjob.RowError{
				Row:     rowNumber,
				Email:   rowEmail(row, config),
				Message: err.Error(),
			})
		} else {
			result.Success++
			if authCreated {
				result.AuthCreated++
			}
		}

		if onProgress != nil && (result.Processed%o.progressEvery == 0 || result.Processed == len(rows)) {
			onProgress(BatchProgress{
				Processed:   result.Processed,
				Success:     result.Success,
				Failed:      result.Failed,
				AuthCreated: result.AuthCreated,
			})
		}
	}
	return result, nil
}

// processRow validates and resolves one row, converting a panic in the
// row handler into a row failure so one poisoned record cannot take the
// batch down.
func (o *batchOrchestrator) processRow(
	ctx context.Context,
	row mapping.RawRow,
	config mapping.FieldMappingConfig,
	process rowFunc,
) (authCreated bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			authCreated = false
			err = fmt.Errorf("row processing panicked: %v", r)
		}
	}()

	record, err := mapping.Validate(row, config)
	if err != nil {
		return false, err
	}
	return process(ctx, record)
}

// rowEmail extracts the email value of a failed row for the error
// report, best effort.
func rowEmail(row mapping.RawRow, config mapping.FieldMappingConfig) string {
	for source, target := range config.FieldMapping {
		if target == mapping.FieldEmail {
			return row[source]
		}
	}
	return ""
}
