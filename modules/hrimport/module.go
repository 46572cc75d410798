package hrimport

import (
	"embed"

	"github.com/prometheus/client_golang/prometheus"

	corepersistence "github.com/staffbridge/staffbridge/modules/core/infrastructure/persistence"
	"github.com/staffbridge/staffbridge/modules/hrimport/domain/importjob"
	"github.com/staffbridge/staffbridge/modules/hrimport/infrastructure/persistence"
	"github.com/staffbridge/staffbridge/modules/hrimport/presentation/controllers"
	"github.com/staffbridge/staffbridge/modules/hrimport/services"
	hrmpersistence "github.com/staffbridge/staffbridge/modules/hrm/infrastructure/persistence"
	"github.com/staffbridge/staffbridge/pkg/application"
	"github.com/staffbridge/staffbridge/pkg/configuration"
)

//go:embed infrastructure/persistence/schema/hrimport-schema.sql
var MigrationFiles embed.FS

// queueDepth bounds in-flight dispatches; overflow is recovered by the
// reclaim sweep.
const queueDepth = 256

func NewModule() application.Module {
	return &Module{}
}

type Module struct {
}

func (m *Module) Register(app application.Application) error {
	conf := configuration.Use()
	queue := make(chan importjob.QueueRef, queueDepth)
	jobs := persistence.NewImportJobRepository()

	importService := services.NewImportService(
		jobs,
		corepersistence.NewUserRepository(),
		hrmpersistence.NewProfileRepository(),
		corepersistence.NewDepartmentRepository(),
		app.EventPublisher(),
		services.NewPipelineMetrics(prometheus.DefaultRegisterer),
		queue,
		services.ImportServiceOptions{
			ProgressEvery: conf.Import.ProgressEvery,
			MaxRows:       conf.Import.MaxRows,
		},
	)
	scheduler := services.NewImportScheduler(
		importService,
		jobs,
		app.DB(),
		queue,
		app.Logger(),
		services.SchedulerOptions{
			SweepInterval:    conf.Import.ReclaimInterval,
			PendingThreshold: conf.Import.PendingThreshold,
			HeartbeatTimeout: conf.Import.JobTimeout,
			JobTimeout:       conf.Import.JobTimeout,
		},
	)

	app.RegisterSchema(&MigrationFiles)
	app.RegisterServices(
		importService,
		scheduler,
		services.NewErrorReportService(jobs),
	)
	app.RegisterControllers(
		controllers.NewImportController(app),
	)
	return nil
}

func (m *Module) Name() string {
	return "hrimport"
}
