package importjob

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/staffbridge/staffbridge/modules/hrimport/domain/mapping"
)

// RowError records why a single row was rejected. Row is the 1-based
// position of the row in the submitted batch; row 0 is reserved for
// batch-level failures.
type RowError struct {
	Row     int    `json:"row"`
	Email   string `json:"email,omitempty"`
	Message string `json:"message"`
}

// Result is the terminal outcome summary of a job.
type Result struct {
	Success     int           `json:"success"`
	Failed      int           `json:"failed"`
	AuthCreated int           `json:"auth_created"`
	Duration    time.Duration `json:"duration"`
}

// ImportJob is a persisted unit of batch HR-import work. The raw rows
// payload exists only while the job is pending or processing; it is
// cleared when the job reaches a terminal state.
type ImportJob interface {
	ID() uuid.UUID
	TenantID() uuid.UUID
	CreatedBy() uint
	Status() Status
	MappingConfig() mapping.FieldMappingConfig
	Rows() []mapping.RawRow
	TotalRows() int
	ProcessedRows() int
	SuccessCount() int
	FailureCount() int
	AuthCreatedCount() int
	Errors() []RowError
	Result() *Result
	CreatedAt() time.Time
	UpdatedAt() time.Time
	StartedAt() *time.Time
	CompletedAt() *time.Time
	HeartbeatAt() *time.Time

	Start() error
	Finish(status Status, result Result, errors []RowError) error
	SetProgress(processed, success, failed, authCreated int)
}

type Option func(*importJob)

func WithID(id uuid.UUID) Option {
	return func(j *importJob) {
		j.id = id
	}
}

func WithTenantID(tenantID uuid.UUID) Option {
	return func(j *importJob) {
		j.tenantID = tenantID
	}
}

func WithCreatedBy(userID uint) Option {
	return func(j *importJob) {
		j.createdBy = userID
	}
}

func WithStatus(status Status) Option {
	return func(j *importJob) {
		j.status = status
	}
}

func WithProgress(processed, success, failed, authCreated int) Option {
	return func(j *importJob) {
		j.processedRows = processed
		j.successCount = success
		j.failureCount = failed
		j.authCreatedCount = authCreated
	}
}

func WithTotalRows(total int) Option {
	return func(j *importJob) {
		j.totalRows = total
	}
}

func WithErrors(errors []RowError) Option {
	return func(j *importJob) {
		j.errors = errors
	}
}

func WithResult(result *Result) Option {
	return func(j *importJob) {
		j.result = result
	}
}

func WithCreatedAt(t time.Time) Option {
	return func(j *importJob) {
		j.createdAt = t
	}
}

func WithUpdatedAt(t time.Time) Option {
	return func(j *importJob) {
		j.updatedAt = t
	}
}

func WithStartedAt(t *time.Time) Option {
	return func(j *importJob) {
		j.startedAt = t
	}
}

func WithCompletedAt(t *time.Time) Option {
	return func(j *importJob) {
		j.completedAt = t
	}
}

func WithHeartbeatAt(t *time.Time) Option {
	return func(j *importJob) {
		j.heartbeatAt = t
	}
}

// New builds a pending job over the given rows. TotalRows is derived
// from the payload unless WithTotalRows overrides it (summary
// projections carry counts without the payload).
func New(config mapping.FieldMappingConfig, rows []mapping.RawRow, opts ...Option) ImportJob {
	now := time.Now()
	j := &importJob{
		id:        uuid.New(),
		status:    StatusPending,
		config:    config,
		rows:      rows,
		totalRows: len(rows),
		createdAt: now,
		updatedAt: now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

type importJob struct {
	id               uuid.UUID
	tenantID         uuid.UUID
	createdBy        uint
	status           Status
	config           mapping.FieldMappingConfig
	rows             []mapping.RawRow
	totalRows        int
	processedRows    int
	successCount     int
	failureCount     int
	authCreatedCount int
	errors           []RowError
	result           *Result
	createdAt        time.Time
	updatedAt        time.Time
	startedAt        *time.Time
	completedAt      *time.Time
	heartbeatAt      *time.Time
}

func (j *importJob) ID() uuid.UUID       { return j.id }
func (j *importJob) TenantID() uuid.UUID { return j.tenantID }
func (j *importJob) CreatedBy() uint     { return j.createdBy }
func (j *importJob) Status() Status      { return j.status }
func (j *importJob) MappingConfig() mapping.FieldMappingConfig {
	return j.config
}
func (j *importJob) Rows() []mapping.RawRow  { return j.rows }
func (j *importJob) TotalRows() int          { return j.totalRows }
func (j *importJob) ProcessedRows() int      { return j.processedRows }
func (j *importJob) SuccessCount() int       { return j.successCount }
func (j *importJob) FailureCount() int       { return j.failureCount }
func (j *importJob) AuthCreatedCount() int   { return j.authCreatedCount }
func (j *importJob) Errors() []RowError      { return j.errors }
func (j *importJob) Result() *Result         { return j.result }
func (j *importJob) CreatedAt() time.Time    { return j.createdAt }
func (j *importJob) UpdatedAt() time.Time    { return j.updatedAt }
func (j *importJob) StartedAt() *time.Time   { return j.startedAt }
func (j *importJob) CompletedAt() *time.Time { return j.completedAt }
func (j *importJob) HeartbeatAt() *time.Time { return j.heartbeatAt }

func (j *importJob) Start() error {
	if !j.status.CanTransitionTo(StatusProcessing) {
		return fmt.Errorf("cannot start job in status %q", j.status)
	}
	now := time.Now()
	j.status = StatusProcessing
	j.startedAt = &now
	j.heartbeatAt = &now
	j.updatedAt = now
	return nil
}

func (j *importJob) Finish(status Status, result Result, errors []RowError) error {
	if !status.IsTerminal() {
		return fmt.Errorf("%q is not a terminal status", status)
	}
	if !j.status.CanTransitionTo(status) {
		return fmt.Errorf("cannot finish job in status %q as %q", j.status, status)
	}
	now := time.Now()
	j.status = status
	j.result = &result
	j.errors = errors
	j.rows = nil
	// the terminal write is authoritative for the counters: progress
	// updates are best effort and may have been lost
	j.processedRows = result.Success + result.Failed
	j.successCount = result.Success
	j.failureCount = result.Failed
	j.authCreatedCount = result.AuthCreated
	j.completedAt = &now
	j.updatedAt = now
	return nil
}

func (j *importJob) SetProgress(processed, success, failed, authCreated int) {
	if processed < j.processedRows {
		return
	}
	j.processedRows = processed
	j.successCount = success
	j.failureCount = failed
	j.authCreatedCount = authCreated
	j.updatedAt = time.Now()
}
