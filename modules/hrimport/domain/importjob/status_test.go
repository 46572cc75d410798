package importjob_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/staffbridge/staffbridge/modules/hrimport/domain/importjob"
	"github.com/staffbridge/staffbridge/modules/hrimport/domain/mapping"
)

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from    importjob.Status
		to      importjob.Status
		allowed bool
	}{
		{importjob.StatusPending, importjob.StatusProcessing, true},
		{importjob.StatusPending, importjob.StatusCompleted, false},
		{importjob.StatusPending, importjob.StatusFailed, false},
		{importjob.StatusProcessing, importjob.StatusCompleted, true},
		{importjob.StatusProcessing, importjob.StatusFailed, true},
		{importjob.StatusProcessing, importjob.StatusPending, false},
		{importjob.StatusCompleted, importjob.StatusProcessing, false},
		{importjob.StatusCompleted, importjob.StatusFailed, false},
		{importjob.StatusFailed, importjob.StatusProcessing, false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestNewStatus(t *testing.T) {
	status, err := importjob.NewStatus("processing")
	require.NoError(t, err)
	require.Equal(t, importjob.StatusProcessing, status)

	_, err = importjob.NewStatus("stalled")
	require.Error(t, err)
}

func testConfig() mapping.FieldMappingConfig {
	return mapping.FieldMappingConfig{
		SystemName:   "bamboohr",
		SourceFields: []string{"email"},
		FieldMapping: map[string]string{"email": mapping.FieldEmail},
	}
}

func TestImportJobLifecycle(t *testing.T) {
	rows := []mapping.RawRow{{"email": "a@example.com"}, {"email": "b@example.com"}}
	job := importjob.New(testConfig(), rows)

	require.Equal(t, importjob.StatusPending, job.Status())
	require.Equal(t, 2, job.TotalRows())
	require.NotNil(t, job.Rows())

	require.NoError(t, job.Start())
	require.Equal(t, importjob.StatusProcessing, job.Status())
	require.NotNil(t, job.StartedAt())
	require.Error(t, job.Start(), "double start must be rejected")

	job.SetProgress(1, 1, 0, 1)
	require.Equal(t, 1, job.ProcessedRows())

	// stale progress writes are dropped
	job.SetProgress(0, 0, 0, 0)
	require.Equal(t, 1, job.ProcessedRows())

	result := importjob.Result{Success: 1, Failed: 1, AuthCreated: 1}
	rowErrors := []importjob.RowError{{Row: 2, Email: "b@example.com", Message: "missing required fields: first_name"}}
	require.NoError(t, job.Finish(importjob.StatusCompleted, result, rowErrors))
	require.Equal(t, importjob.StatusCompleted, job.Status())
	require.Nil(t, job.Rows(), "payload must be cleared at finalize")
	require.NotNil(t, job.CompletedAt())
	require.Equal(t, rowErrors, job.Errors())

	// finishing reconciles the counters with the result, even when the
	// last progress write never landed
	require.Equal(t, 2, job.ProcessedRows())
	require.Equal(t, 1, job.SuccessCount())
	require.Equal(t, 1, job.FailureCount())
	require.Equal(t, 1, job.AuthCreatedCount())

	require.Error(t, job.Finish(importjob.StatusFailed, result, nil), "terminal status is final")
}

func TestImportJobFinishRejectsNonTerminal(t *testing.T) {
	job := importjob.New(testConfig(), []mapping.RawRow{{"email": "a@example.com"}})
	require.NoError(t, job.Start())
	require.Error(t, job.Finish(importjob.StatusProcessing, importjob.Result{}, nil))
}
