package modules

import (
	"github.com/staffbridge/staffbridge/modules/core"
	"github.com/staffbridge/staffbridge/modules/hrimport"
	"github.com/staffbridge/staffbridge/modules/hrm"
	"github.com/staffbridge/staffbridge/pkg/application"
)

var BuiltInModules = []application.Module{
	core.NewModule(),
	hrm.NewModule(),
	hrimport.NewModule(),
}

func Load(app application.Application, mods ...application.Module) error {
	return application.Load(app, mods...)
}
