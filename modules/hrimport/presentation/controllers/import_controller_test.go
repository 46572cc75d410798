package controllers_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
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
	"github.com/staffbridge/staffbridge/modules/hrimport/infrastructure/persistence"
	"github.com/staffbridge/staffbridge/modules/hrimport/presentation/controllers"
	"github.com/staffbridge/staffbridge/modules/hrimport/presentation/controllers/dtos"
	"github.com/staffbridge/staffbridge/modules/hrimport/services"
	"github.com/staffbridge/staffbridge/modules/hrm/domain/aggregates/profile"
	hrmpersistence "github.com/staffbridge/staffbridge/modules/hrm/infrastructure/persistence"
	"github.com/staffbridge/staffbridge/pkg/application"
	"github.com/staffbridge/staffbridge/pkg/composables"
	"github.com/staffbridge/staffbridge/pkg/eventbus"
)

func TestMain(m *testing.M) {
	_ = os.Setenv("LOG_PATH", filepath.Join(os.TempDir(), "staffbridge-test.log"))
	os.Exit(m.Run())
}

// fakeTx satisfies pgx.Tx; the in-memory repositories never touch it.
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

type stubJobRepo struct {
	jobs map[uuid.UUID]importjob.ImportJob
}

func (s *stubJobRepo) Create(ctx context.Context, job importjob.ImportJob) (importjob.ImportJob, error) {
	s.jobs[job.ID()] = job
	return job, nil
}

func (s *stubJobRepo) GetByID(ctx context.Context, id uuid.UUID) (importjob.ImportJob, error) {
	job, ok := s.jobs[id]
	if !ok {
		return nil, persistence.ErrImportJobNotFound
	}
	return job, nil
}

func (s *stubJobRepo) GetPaginated(ctx context.Context, params *importjob.FindParams) ([]importjob.ImportJob, error) {
	jobs := make([]importjob.ImportJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (s *stubJobRepo) Count(ctx context.Context) (int64, error) {
	return int64(len(s.jobs)), nil
}

func (s *stubJobRepo) ClaimPending(ctx context.Context, id uuid.UUID) (bool, error) {
	job, ok := s.jobs[id]
	if !ok || job.Status() != importjob.StatusPending {
		return false, nil
	}
	return true, job.Start()
}

func (s *stubJobRepo) UpdateProgress(ctx context.Context, id uuid.UUID, processed, success, failed, authCreated int) error {
	return nil
}

func (s *stubJobRepo) Heartbeat(ctx context.Context, id uuid.UUID) error { return nil }

func (s *stubJobRepo) Finalize(ctx context.Context, id uuid.UUID, status importjob.Status, result importjob.Result, rowErrors []importjob.RowError) error {
	job, ok := s.jobs[id]
	if !ok {
		return persistence.ErrImportJobNotFound
	}
	return job.Finish(status, result, rowErrors)
}

func (s *stubJobRepo) FindStuckPending(ctx context.Context, olderThan time.Duration) ([]importjob.QueueRef, error) {
	return nil, nil
}

func (s *stubJobRepo) RequeueStale(ctx context.Context, heartbeatOlderThan time.Duration) ([]importjob.QueueRef, error) {
	return nil, nil
}

type stubUserRepo struct{}

func (stubUserRepo) GetByID(ctx context.Context, id uint) (user.User, error) {
	return nil, corepersistence.ErrUserNotFound
}
func (stubUserRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return nil, corepersistence.ErrUserNotFound
}
func (stubUserRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	return false, nil
}
func (stubUserRepo) Create(ctx context.Context, data user.User) (user.User, error) {
	return data, nil
}
func (stubUserRepo) Update(ctx context.Context, data user.User) (user.User, error) {
	return data, nil
}
func (stubUserRepo) Count(ctx context.Context) (int64, error) { return 0, nil }

type stubProfileRepo struct{}

func (stubProfileRepo) Count(ctx context.Context) (int64, error) { return 0, nil }
func (stubProfileRepo) GetByID(ctx context.Context, id uint) (profile.Profile, error) {
	return nil, hrmpersistence.ErrProfileNotFound
}
func (stubProfileRepo) GetByEmail(ctx context.Context, email string) (profile.Profile, error) {
	return nil, hrmpersistence.ErrProfileNotFound
}
func (stubProfileRepo) GetByUserID(ctx context.Context, userID uint) (profile.Profile, error) {
	return nil, hrmpersistence.ErrProfileNotFound
}
func (stubProfileRepo) Create(ctx context.Context, data profile.Profile) (profile.Profile, error) {
	return data, nil
}
func (stubProfileRepo) Update(ctx context.Context, data profile.Profile) (profile.Profile, error) {
	return data, nil
}

type stubDepartmentRepo struct{}

func (stubDepartmentRepo) GetAll(ctx context.Context) ([]*department.Department, error) {
	return nil, nil
}
func (stubDepartmentRepo) GetByID(ctx context.Context, id uint) (*department.Department, error) {
	return nil, corepersistence.ErrDepartmentNotFound
}
func (stubDepartmentRepo) Create(ctx context.Context, d *department.Department) (*department.Department, error) {
	return d, nil
}

type controllerFixture struct {
	router *mux.Router
	jobs   *stubJobRepo
	ctx    context.Context
}

func newControllerFixture(t *testing.T) *controllerFixture {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	jobs := &stubJobRepo{jobs: make(map[uuid.UUID]importjob.ImportJob)}
	importService := services.NewImportService(
		jobs,
		stubUserRepo{},
		stubProfileRepo{},
		stubDepartmentRepo{},
		eventbus.NewEventPublisher(logger),
		services.NewPipelineMetrics(prometheus.NewRegistry()),
		make(chan importjob.QueueRef, 1),
		services.ImportServiceOptions{},
	)

	app := application.New(&application.ApplicationOptions{
		EventBus: eventbus.NewEventPublisher(logger),
		Logger:   logger,
	})
	app.RegisterServices(importService, services.NewErrorReportService(jobs))

	router := mux.NewRouter()
	controllers.NewImportController(app).Register(router)

	email, err := user.NewEmail("admin@example.com")
	require.NoError(t, err)
	admin := user.New("Ada", "Admin", email, user.RoleAdmin, user.WithID(1))

	ctx := composables.WithTenantID(context.Background(), uuid.New())
	ctx = composables.WithTx(ctx, fakeTx{})
	ctx = composables.WithUser(ctx, admin)

	return &controllerFixture{router: router, jobs: jobs, ctx: ctx}
}

func (f *controllerFixture) do(method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil).WithContext(f.ctx)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *controllerFixture) seedJob(status importjob.Status) importjob.ImportJob {
	config := mapping.FieldMappingConfig{
		SystemName:   "workday",
		SourceFields: []string{"Email"},
		FieldMapping: map[string]string{"Email": mapping.FieldEmail},
	}
	job := importjob.New(config, []mapping.RawRow{{"Email": "jane@example.com"}}, importjob.WithStatus(status))
	f.jobs.jobs[job.ID()] = job
	return job
}

func TestImportController_TriggerAlreadyClaimed(t *testing.T) {
	f := newControllerFixture(t)
	job := f.seedJob(importjob.StatusProcessing)

	rec := f.do(http.MethodPost, fmt.Sprintf("/hr/api/imports/%s/trigger", job.ID()))
	require.Equal(t, http.StatusOK, rec.Code, "a lost trigger race is a notice, not an error")

	var resp dtos.SubmitImportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, job.ID().String(), resp.ID)
	require.Equal(t, string(importjob.StatusProcessing), resp.Status)
}

func TestImportController_TriggerFinishedJobReportsState(t *testing.T) {
	f := newControllerFixture(t)
	job := f.seedJob(importjob.StatusCompleted)

	rec := f.do(http.MethodPost, fmt.Sprintf("/hr/api/imports/%s/trigger", job.ID()))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dtos.SubmitImportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, string(importjob.StatusCompleted), resp.Status)
}

func TestImportController_TriggerUnknownJob(t *testing.T) {
	f := newControllerFixture(t)

	rec := f.do(http.MethodPost, fmt.Sprintf("/hr/api/imports/%s/trigger", uuid.New()))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestImportController_TriggerRequiresAdmin(t *testing.T) {
	f := newControllerFixture(t)
	job := f.seedJob(importjob.StatusPending)

	email, err := user.NewEmail("emp@example.com")
	require.NoError(t, err)
	f.ctx = composables.WithUser(f.ctx, user.New("Eve", "Employee", email, user.RoleEmployee, user.WithID(2)))

	rec := f.do(http.MethodPost, fmt.Sprintf("/hr/api/imports/%s/trigger", job.ID()))
	require.Equal(t, http.StatusForbidden, rec.Code)
}
