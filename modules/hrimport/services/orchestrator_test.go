package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/staffbridge/staffbridge/modules/hrimport/domain/mapping"
)

func orchestratorConfig() mapping.FieldMappingConfig {
	return mapping.FieldMappingConfig{
		SystemName:     "workday",
		SourceFields:   []string{"name", "email"},
		FieldMapping:   map[string]string{"name": mapping.FieldFirstName, "email": mapping.FieldEmail},
		RequiredFields: []string{mapping.FieldFirstName, mapping.FieldEmail},
	}
}

func makeRows(n int) []mapping.RawRow {
	rows := make([]mapping.RawRow, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, mapping.RawRow{
			"name":  fmt.Sprintf("Person %d", i+1),
			"email": fmt.Sprintf("person%d@example.com", i+1),
		})
	}
	return rows
}

func TestBatchOrchestrator_AllRowsSucceed(t *testing.T) {
	orchestrator := newBatchOrchestrator(10)

	var snapshots []BatchProgress
	result, err := orchestrator.Run(
		context.Background(),
		makeRows(25),
		orchestratorConfig(),
		func(ctx context.Context, record *mapping.NormalizedRecord) (bool, error) {
			return true, nil
		},
		func(p BatchProgress) { snapshots = append(snapshots, p) },
	)
	require.NoError(t, err)
	require.Equal(t, 25, result.Processed)
	require.Equal(t, 25, result.Success)
	require.Equal(t, 0, result.Failed)
	require.Equal(t, 25, result.AuthCreated)
	require.Empty(t, result.Errors)

	// every 10 rows plus the final row
	require.Equal(t, []int{10, 20, 25}, processedCounts(snapshots))
}

func TestBatchOrchestrator_PartialFailureIsolation(t *testing.T) {
	orchestrator := newBatchOrchestrator(50)

	rows := makeRows(10)
	rows[2]["email"] = "" // fails validation
	rows[6]["email"] = "resolver-fails@example.com"

	result, err := orchestrator.Run(
		context.Background(),
		rows,
		orchestratorConfig(),
		func(ctx context.Context, record *mapping.NormalizedRecord) (bool, error) {
			if record.Email == "resolver-fails@example.com" {
				return false, errors.New("provisioning unavailable")
			}
			return false, nil
		},
		nil,
	)
	require.NoError(t, err)
	require.Equal(t, 10, result.Processed)
	require.Equal(t, 8, result.Success)
	require.Equal(t, 2, result.Failed)
	require.Equal(t, result.Processed, result.Success+result.Failed)

	require.Len(t, result.Errors, 2)
	require.Equal(t, 3, result.Errors[0].Row, "errors keep input order")
	require.Contains(t, result.Errors[0].Message, "missing required fields")
	require.Equal(t, 7, result.Errors[1].Row)
	require.Equal(t, "resolver-fails@example.com", result.Errors[1].Email)
}

func TestBatchOrchestrator_PanickingRowIsContained(t *testing.T) {
	orchestrator := newBatchOrchestrator(50)

	result, err := orchestrator.Run(
		context.Background(),
		makeRows(3),
		orchestratorConfig(),
		func(ctx context.Context, record *mapping.NormalizedRecord) (bool, error) {
			if record.Email == "person2@example.com" {
				panic("corrupted record")
			}
			return false, nil
		},
		nil,
	)
	require.NoError(t, err)
	require.Equal(t, 3, result.Processed)
	require.Equal(t, 1, result.Failed)
	require.Contains(t, result.Errors[0].Message, "panicked")
}

func TestBatchOrchestrator_FinalProgressAlwaysEmitted(t *testing.T) {
	orchestrator := newBatchOrchestrator(10)

	var snapshots []BatchProgress
	result, err := orchestrator.Run(
		context.Background(),
		makeRows(7),
		orchestratorConfig(),
		func(ctx context.Context, record *mapping.NormalizedRecord) (bool, error) {
			return false, nil
		},
		func(p BatchProgress) { snapshots = append(snapshots, p) },
	)
	require.NoError(t, err)
	require.Equal(t, 7, result.Processed)
	require.Equal(t, []int{7}, processedCounts(snapshots))
}

func TestBatchOrchestrator_CancellationAborts(t *testing.T) {
	orchestrator := newBatchOrchestrator(10)

	ctx, cancel := context.WithCancel(context.Background())
	processed := 0
	_, err := orchestrator.Run(
		ctx,
		makeRows(100),
		orchestratorConfig(),
		func(ctx context.Context, record *mapping.NormalizedRecord) (bool, error) {
			processed++
			if processed == 5 {
				cancel()
			}
			return false, nil
		},
		nil,
	)
	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 5, processed)
}

func processedCounts(snapshots []BatchProgress) []int {
	counts := make([]int, 0, len(snapshots))
	for _, s := range snapshots {
		counts = append(counts, s.Processed)
	}
	return counts
}
