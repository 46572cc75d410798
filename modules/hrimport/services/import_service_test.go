package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/staffbridge/staffbridge/modules/core/domain/aggregates/user"
	"github.com/staffbridge/staffbridge/modules/core/domain/entities/department"
	corepersistence "github.com/staffbridge/staffbridge/modules/core/infrastructure/persistence"
	"github.com/staffbridge/staffbridge/modules/hrimport/domain/importjob"
	"github.com/staffbridge/staffbridge/modules/hrimport/domain/mapping"
	"github.com/staffbridge/staffbridge/modules/hrm/domain/aggregates/profile"
	hrmpersistence "github.com/staffbridge/staffbridge/modules/hrm/infrastructure/persistence"
	"github.com/staffbridge/staffbridge/pkg/composables"
	"github.com/staffbridge/staffbridge/pkg/constants"
	"github.com/staffbridge/staffbridge/pkg/eventbus"
)

// fakeTx satisfies pgx.Tx for unit tests; the in-memory repositories
// never touch it.
type fakeTx struct{}

func (fakeTx) Begin(ctx context.Context) (pgx.Tx, error) { return fakeTx{}, nil }
func (fakeTx) Commit(ctx context.Context) error          { return nil }
func (fakeTx) Rollback(ctx context.Context) error        { return nil }
func (fakeTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (fakeTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (fakeTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (fakeTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (fakeTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (fakeTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (fakeTx) Conn() *pgx.Conn                                               { return nil }

type memJobRepo struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]importjob.ImportJob
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{jobs: make(map[uuid.UUID]importjob.ImportJob)}
}

func (m *memJobRepo) Create(ctx context.Context, job importjob.ImportJob) (importjob.ImportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	stored := importjob.New(
		job.MappingConfig(),
		job.Rows(),
		importjob.WithID(job.ID()),
		importjob.WithTenantID(tenantID),
		importjob.WithCreatedBy(job.CreatedBy()),
	)
	m.jobs[job.ID()] = stored
	return stored, nil
}

func (m *memJobRepo) GetByID(ctx context.Context, id uuid.UUID) (importjob.ImportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("import job not found")
	}
	return job, nil
}

func (m *memJobRepo) GetPaginated(ctx context.Context, params *importjob.FindParams) ([]importjob.ImportJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	jobs := make([]importjob.ImportJob, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (m *memJobRepo) Count(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.jobs)), nil
}

func (m *memJobRepo) ClaimPending(ctx context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok || job.Status() != importjob.StatusPending {
		return false, nil
	}
	return true, job.Start()
}

func (m *memJobRepo) UpdateProgress(ctx context.Context, id uuid.UUID, processed, success, failed, authCreated int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[id]; ok {
		job.SetProgress(processed, success, failed, authCreated)
	}
	return nil
}

func (m *memJobRepo) Heartbeat(ctx context.Context, id uuid.UUID) error { return nil }

func (m *memJobRepo) Finalize(ctx context.Context, id uuid.UUID, status importjob.Status, result importjob.Result, rowErrors []importjob.RowError) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return fmt.Errorf("import job not found")
	}
	return job.Finish(status, result, rowErrors)
}

func (m *memJobRepo) FindStuckPending(ctx context.Context, olderThan time.Duration) ([]importjob.QueueRef, error) {
	return nil, nil
}

func (m *memJobRepo) RequeueStale(ctx context.Context, heartbeatOlderThan time.Duration) ([]importjob.QueueRef, error) {
	return nil, nil
}

type memUserRepo struct {
	mu     sync.Mutex
	nextID uint
	users  map[string]user.User // lower(email) -> user
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]user.User)}
}

func (m *memUserRepo) GetByID(ctx context.Context, id uint) (user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID() == id {
			return u, nil
		}
	}
	return nil, corepersistence.ErrUserNotFound
}

func (m *memUserRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[strings.ToLower(email)]
	if !ok {
		return nil, corepersistence.ErrUserNotFound
	}
	return u, nil
}

func (m *memUserRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.users[strings.ToLower(email)]
	return ok, nil
}

func (m *memUserRepo) Create(ctx context.Context, entity user.User) (user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	stored := user.New(
		entity.FirstName(),
		entity.LastName(),
		entity.Email(),
		entity.Role(),
		user.WithID(m.nextID),
		user.WithPasswordHash(entity.PasswordHash()),
	)
	m.users[strings.ToLower(entity.Email().String())] = stored
	return stored, nil
}

func (m *memUserRepo) Update(ctx context.Context, entity user.User) (user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[strings.ToLower(entity.Email().String())] = entity
	return entity, nil
}

func (m *memUserRepo) Count(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.users)), nil
}

type memProfileRepo struct {
	mu       sync.Mutex
	nextID   uint
	profiles map[string]profile.Profile // lower(email) -> profile
}

func newMemProfileRepo() *memProfileRepo {
	return &memProfileRepo{profiles: make(map[string]profile.Profile)}
}

func (m *memProfileRepo) Count(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.profiles)), nil
}

func (m *memProfileRepo) GetByID(ctx context.Context, id uint) (profile.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.profiles {
		if p.ID() == id {
			return p, nil
		}
	}
	return nil, hrmpersistence.ErrProfileNotFound
}

func (m *memProfileRepo) GetByEmail(ctx context.Context, email string) (profile.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[strings.ToLower(email)]
	if !ok {
		return nil, hrmpersistence.ErrProfileNotFound
	}
	return p, nil
}

func (m *memProfileRepo) GetByUserID(ctx context.Context, userID uint) (profile.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.profiles {
		if p.UserID() != nil && *p.UserID() == userID {
			return p, nil
		}
	}
	return nil, hrmpersistence.ErrProfileNotFound
}

func (m *memProfileRepo) Create(ctx context.Context, entity profile.Profile) (profile.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	stored := profile.New(
		entity.FirstName(),
		entity.LastName(),
		entity.Email(),
		profile.WithID(m.nextID),
		profile.WithUserID(entity.UserID()),
		profile.WithEmployeeNumber(entity.EmployeeNumber()),
		profile.WithHireDate(entity.HireDate()),
		profile.WithDepartmentID(entity.DepartmentID()),
		profile.WithCustomFields(entity.CustomFields()),
	)
	m.profiles[strings.ToLower(entity.Email())] = stored
	return stored, nil
}

func (m *memProfileRepo) Update(ctx context.Context, entity profile.Profile) (profile.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[strings.ToLower(entity.Email())] = entity
	return entity, nil
}

type memDepartmentRepo struct {
	departments []*department.Department
}

func (m *memDepartmentRepo) GetAll(ctx context.Context) ([]*department.Department, error) {
	return m.departments, nil
}

func (m *memDepartmentRepo) GetByID(ctx context.Context, id uint) (*department.Department, error) {
	for _, d := range m.departments {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, corepersistence.ErrDepartmentNotFound
}

func (m *memDepartmentRepo) Create(ctx context.Context, d *department.Department) (*department.Department, error) {
	m.departments = append(m.departments, d)
	return d, nil
}

type pipelineFixture struct {
	service     *ImportService
	jobs        *memJobRepo
	users       *memUserRepo
	profiles    *memProfileRepo
	departments *memDepartmentRepo
	queue       chan importjob.QueueRef
	ctx         context.Context
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()

	f := &pipelineFixture{
		jobs:     newMemJobRepo(),
		users:    newMemUserRepo(),
		profiles: newMemProfileRepo(),
		departments: &memDepartmentRepo{departments: []*department.Department{
			{ID: 1, Name: "Engineering"},
			{ID: 2, Name: "Sales"},
		}},
		queue: make(chan importjob.QueueRef, 16),
	}
	f.service = f.serviceWithJobs(f.jobs)

	ctx := composables.WithTenantID(context.Background(), uuid.New())
	f.ctx = composables.WithTx(ctx, fakeTx{})
	return f
}

// serviceWithJobs builds a service over the fixture's repositories with
// the job store swapped out, for tests that need a misbehaving one.
func (f *pipelineFixture) serviceWithJobs(jobs importjob.Repository) *ImportService {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	return NewImportService(
		jobs,
		f.users,
		f.profiles,
		f.departments,
		eventbus.NewEventPublisher(logger),
		NewPipelineMetrics(prometheus.NewRegistry()),
		f.queue,
		ImportServiceOptions{ProgressEvery: 2, MaxRows: 100},
	)
}

func importConfig() mapping.FieldMappingConfig {
	return mapping.FieldMappingConfig{
		SystemName:   "workday",
		SourceFields: []string{"First", "Last", "Email", "Dept", "Hired"},
		FieldMapping: map[string]string{
			"First": mapping.FieldFirstName,
			"Last":  mapping.FieldLastName,
			"Email": mapping.FieldEmail,
			"Dept":  mapping.FieldDepartment,
			"Hired": mapping.FieldHireDate,
		},
		RequiredFields: []string{mapping.FieldFirstName, mapping.FieldLastName, mapping.FieldEmail},
	}
}

func TestImportService_SubmitValidation(t *testing.T) {
	f := newPipelineFixture(t)

	t.Run("empty batch rejected", func(t *testing.T) {
		_, err := f.service.Submit(f.ctx, importConfig(), nil)
		require.ErrorIs(t, err, ErrEmptyBatch)
	})

	t.Run("oversized batch rejected", func(t *testing.T) {
		rows := make([]mapping.RawRow, 101)
		for i := range rows {
			rows[i] = mapping.RawRow{"Email": fmt.Sprintf("u%d@example.com", i)}
		}
		_, err := f.service.Submit(f.ctx, importConfig(), rows)
		require.ErrorIs(t, err, ErrBatchTooLarge)
	})

	t.Run("malformed config rejected", func(t *testing.T) {
		cfg := importConfig()
		cfg.FieldMapping = map[string]string{"First": mapping.FieldFirstName}
		cfg.RequiredFields = nil
		_, err := f.service.Submit(f.ctx, cfg, []mapping.RawRow{{"First": "A"}})
		require.Error(t, err)
	})
}

func TestImportService_SubmitCreatesPendingAndDispatches(t *testing.T) {
	f := newPipelineFixture(t)

	job, err := f.service.Submit(f.ctx, importConfig(), []mapping.RawRow{
		{"First": "Jane", "Last": "Doe", "Email": "jane@example.com"},
	})
	require.NoError(t, err)
	require.Equal(t, importjob.StatusPending, job.Status())
	require.Equal(t, 1, job.TotalRows())

	select {
	case ref := <-f.queue:
		require.Equal(t, job.ID(), ref.ID)
	default:
		t.Fatal("expected a dispatched queue ref")
	}
}

func TestImportService_TriggerClaimsExactlyOnce(t *testing.T) {
	f := newPipelineFixture(t)

	job, err := f.service.Submit(f.ctx, importConfig(), []mapping.RawRow{
		{"First": "Jane", "Last": "Doe", "Email": "jane@example.com"},
	})
	require.NoError(t, err)

	require.NoError(t, f.service.Trigger(f.ctx, job.ID()))
	require.ErrorIs(t, f.service.Trigger(f.ctx, job.ID()), ErrJobNotPending)
}

func TestImportService_ProcessRequiresClaim(t *testing.T) {
	f := newPipelineFixture(t)

	job, err := f.service.Submit(f.ctx, importConfig(), []mapping.RawRow{
		{"First": "Jane", "Last": "Doe", "Email": "jane@example.com"},
	})
	require.NoError(t, err)
	require.ErrorIs(t, f.service.Process(f.ctx, job.ID()), ErrJobNotClaimed)
}

func TestImportService_ProcessFullBatch(t *testing.T) {
	f := newPipelineFixture(t)

	rows := []mapping.RawRow{
		{"First": "Jane", "Last": "Doe", "Email": "jane@example.com", "Dept": "engineering", "Hired": "2024-03-01"},
		{"First": "John", "Last": "Smith", "Email": "john@example.com", "Dept": "Unknown Dept"},
		{"First": "", "Last": "Nobody", "Email": "nobody@example.com"},
		{"First": "Bad", "Last": "Date", "Email": "bad.date@example.com", "Hired": "03/01/2024"},
	}
	job, err := f.service.Submit(f.ctx, importConfig(), rows)
	require.NoError(t, err)
	require.NoError(t, f.service.Trigger(f.ctx, job.ID()))
	require.NoError(t, f.service.Process(f.ctx, job.ID()))

	finished, err := f.service.GetByID(f.ctx, job.ID())
	require.NoError(t, err)
	require.Equal(t, importjob.StatusCompleted, finished.Status())
	require.Equal(t, 4, finished.ProcessedRows())
	require.Equal(t, 2, finished.SuccessCount())
	require.Equal(t, 2, finished.FailureCount())
	require.Equal(t, finished.ProcessedRows(), finished.SuccessCount()+finished.FailureCount())
	require.Equal(t, 2, finished.AuthCreatedCount())
	require.Nil(t, finished.Rows(), "payload must be cleared after finalize")

	require.NotNil(t, finished.Result())
	require.Equal(t, 2, finished.Result().Success)
	require.Equal(t, 2, finished.Result().Failed)

	require.Len(t, finished.Errors(), 2)
	require.Equal(t, 3, finished.Errors()[0].Row)
	require.Contains(t, finished.Errors()[0].Message, "missing required fields")
	require.Equal(t, 4, finished.Errors()[1].Row)
	require.Contains(t, finished.Errors()[1].Message, "hire date")

	// identity side effects
	jane, err := f.users.GetByEmail(f.ctx, "JANE@example.com")
	require.NoError(t, err)
	require.Equal(t, user.RoleEmployee, jane.Role())
	require.NotEmpty(t, jane.PasswordHash())

	janeProfile, err := f.profiles.GetByEmail(f.ctx, "jane@example.com")
	require.NoError(t, err)
	require.NotNil(t, janeProfile.DepartmentID())
	require.Equal(t, uint(1), *janeProfile.DepartmentID(), "department matched case-insensitively")
	require.NotNil(t, janeProfile.HireDate())

	johnProfile, err := f.profiles.GetByEmail(f.ctx, "john@example.com")
	require.NoError(t, err)
	require.Nil(t, johnProfile.DepartmentID(), "unknown department leaves the profile unassigned")
}

func TestImportService_ReprocessingIsIdempotent(t *testing.T) {
	f := newPipelineFixture(t)

	rows := []mapping.RawRow{
		{"First": "Jane", "Last": "Doe", "Email": "jane@example.com"},
		{"First": "John", "Last": "Smith", "Email": "john@example.com"},
	}

	first, err := f.service.Submit(f.ctx, importConfig(), rows)
	require.NoError(t, err)
	require.NoError(t, f.service.Trigger(f.ctx, first.ID()))
	require.NoError(t, f.service.Process(f.ctx, first.ID()))

	usersAfterFirst, err := f.users.Count(f.ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, usersAfterFirst)

	second, err := f.service.Submit(f.ctx, importConfig(), rows)
	require.NoError(t, err)
	require.NoError(t, f.service.Trigger(f.ctx, second.ID()))
	require.NoError(t, f.service.Process(f.ctx, second.ID()))

	finished, err := f.service.GetByID(f.ctx, second.ID())
	require.NoError(t, err)
	require.Equal(t, importjob.StatusCompleted, finished.Status())
	require.Equal(t, 2, finished.SuccessCount())
	require.Equal(t, 0, finished.AuthCreatedCount(), "existing identities are reused, not duplicated")

	usersAfterSecond, err := f.users.Count(f.ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, usersAfterSecond)

	profileCount, err := f.profiles.Count(f.ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, profileCount)
}

// failingProgressJobRepo drops every progress write, simulating a store
// that was unreachable for the whole run.
type failingProgressJobRepo struct {
	*memJobRepo
}

func (r *failingProgressJobRepo) UpdateProgress(ctx context.Context, id uuid.UUID, processed, success, failed, authCreated int) error {
	return fmt.Errorf("progress write refused")
}

func TestImportService_FinalizeIsAuthoritativeForCounters(t *testing.T) {
	f := newPipelineFixture(t)
	service := f.serviceWithJobs(&failingProgressJobRepo{memJobRepo: f.jobs})

	silent := logrus.New()
	silent.SetLevel(logrus.PanicLevel)
	ctx := context.WithValue(f.ctx, constants.LoggerKey, logrus.NewEntry(silent))

	rows := []mapping.RawRow{
		{"First": "Jane", "Last": "Doe", "Email": "jane@example.com"},
		{"First": "", "Last": "Nobody", "Email": "nobody@example.com"},
	}
	job, err := service.Submit(ctx, importConfig(), rows)
	require.NoError(t, err)
	require.NoError(t, service.Trigger(ctx, job.ID()))
	require.NoError(t, service.Process(ctx, job.ID()))

	finished, err := service.GetByID(ctx, job.ID())
	require.NoError(t, err)
	require.Equal(t, importjob.StatusCompleted, finished.Status())
	require.Equal(t, 2, finished.ProcessedRows())
	require.Equal(t, 1, finished.SuccessCount())
	require.Equal(t, 1, finished.FailureCount())
	require.Equal(t, 1, finished.AuthCreatedCount())
	require.Equal(t, finished.ProcessedRows(), finished.SuccessCount()+finished.FailureCount())

	require.NotNil(t, finished.Result())
	require.Equal(t, 1, finished.Result().Success)
	require.Equal(t, 1, finished.Result().Failed)
	require.Equal(t, 1, finished.Result().AuthCreated)
}

func TestImportService_CancelledBatchFails(t *testing.T) {
	f := newPipelineFixture(t)

	rows := make([]mapping.RawRow, 10)
	for i := range rows {
		rows[i] = mapping.RawRow{
			"First": "P", "Last": "Q",
			"Email": fmt.Sprintf("p%d@example.com", i),
		}
	}
	job, err := f.service.Submit(f.ctx, importConfig(), rows)
	require.NoError(t, err)
	require.NoError(t, f.service.Trigger(f.ctx, job.ID()))

	cancelled, cancel := context.WithCancel(f.ctx)
	cancel()
	require.Error(t, f.service.Process(cancelled, job.ID()))

	failed, err := f.service.GetByID(f.ctx, job.ID())
	require.NoError(t, err)
	require.Equal(t, importjob.StatusFailed, failed.Status())
	require.Len(t, failed.Errors(), 1)
	require.Equal(t, 0, failed.Errors()[0].Row, "batch-level failure is recorded as row 0")
	require.Nil(t, failed.Rows())
}
