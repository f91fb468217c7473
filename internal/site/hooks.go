package site

import (
	"github.com/markeidelman/clinicweb/app"
	"github.com/markeidelman/clinicweb/config"
	"go.uber.org/zap"
)

// Hooks runs the site with app.Run.
var Hooks = app.Hooks[Config, *Backends]{
	Name:         "clinicweb",
	LoadConfig:   loadConfig,
	Connect:      Connect,
	BuildHandler: BuildHandler,
	Close:        (*Backends).Close,
}

func loadConfig(logger *zap.Logger) (*config.CoreConfig, Config, error) {
	core, vals, err := config.LoadWithAppConfig(logger, "", Keys)
	if err != nil {
		return nil, Config{}, err
	}
	cfg, err := ConfigFromValues(core, vals)
	if err != nil {
		return nil, Config{}, err
	}
	return core, cfg, nil
}
