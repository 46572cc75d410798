package core

import (
	"embed"

	"github.com/staffbridge/staffbridge/modules/core/infrastructure/persistence"
	"github.com/staffbridge/staffbridge/modules/core/services"
	"github.com/staffbridge/staffbridge/pkg/application"
)

//go:embed infrastructure/persistence/schema/core-schema.sql
var MigrationFiles embed.FS

func NewModule() application.Module {
	return &Module{}
}

type Module struct {
}

func (m *Module) Register(app application.Application) error {
	app.RegisterSchema(&MigrationFiles)
	app.RegisterServices(
		services.NewUserService(persistence.NewUserRepository(), app.EventPublisher()),
		services.NewDepartmentService(persistence.NewDepartmentRepository(), app.EventPublisher()),
	)
	return nil
}

func (m *Module) Name() string {
	return "core"
}
