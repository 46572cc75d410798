package hrm

import (
	"embed"

	"github.com/staffbridge/staffbridge/modules/hrm/infrastructure/persistence"
	"github.com/staffbridge/staffbridge/modules/hrm/services"
	"github.com/staffbridge/staffbridge/pkg/application"
)

//go:embed infrastructure/persistence/schema/hrm-schema.sql
var MigrationFiles embed.FS

func NewModule() application.Module {
	return &Module{}
}

type Module struct {
}

func (m *Module) Register(app application.Application) error {
	app.RegisterSchema(&MigrationFiles)
	app.RegisterServices(
		services.NewProfileService(persistence.NewProfileRepository(), app.EventPublisher()),
	)
	return nil
}

func (m *Module) Name() string {
	return "hrm"
}
