// app/app.go
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/markeidelman/clinicweb/config"
	"github.com/markeidelman/clinicweb/httputil"
	"github.com/markeidelman/clinicweb/logging"
	"github.com/markeidelman/clinicweb/metrics"
	"github.com/markeidelman/clinicweb/pantry/version"
	"github.com/markeidelman/clinicweb/server"
	"go.uber.org/zap"
)

// Hooks are the integration points a site provides to Run. C is the typed
// site configuration, B the bundle of backend clients.
type Hooks[C any, B any] struct {
	// Name is used only for logging.
	Name string

	// LoadConfig returns the core config and the site config. It typically
	// calls config.LoadWithAppConfig and converts the values.
	LoadConfig func(logger *zap.Logger) (*config.CoreConfig, C, error)

	// Connect opens caches and builds API clients. It should respect
	// core.BackendConnectTimeout.
	Connect func(ctx context.Context, core *config.CoreConfig, cfg C, logger *zap.Logger) (B, error)

	// BuildHandler constructs the final http.Handler.
	BuildHandler func(core *config.CoreConfig, cfg C, backends B, logger *zap.Logger) (http.Handler, error)

	// Close releases backends after the server stops. Optional.
	Close func(backends B) error
}

// Run executes the startup sequence:
//
//  1. Bootstrap logger
//  2. Load core + site config (Hooks.LoadConfig)
//  3. Build final logger from core config
//  4. Register metrics
//  5. Connect backends (Hooks.Connect)
//  6. Wire shutdown signals to a context
//  7. Build the HTTP handler (Hooks.BuildHandler)
//  8. Serve until shutdown, then Hooks.Close
func Run[C any, B any](ctx context.Context, hooks Hooks[C, B]) error {
	bootstrap := logging.BootstrapLogger()
	defer bootstrap.Sync()
	bootstrap.Info("bootstrap logger initialized", zap.String("app", hooks.Name))

	coreCfg, cfg, err := hooks.LoadConfig(bootstrap)
	if err != nil {
		bootstrap.Error("config load failed", zap.Error(err))
		return fmt.Errorf("load config: %w", err)
	}
	bootstrap.Info("config loaded",
		zap.String("env", coreCfg.Env),
		zap.String("log_level", coreCfg.LogLevel),
	)

	logger := logging.MustBuildLogger(coreCfg.LogLevel, coreCfg.Env)
	defer logger.Sync()
	logger.Info("logger initialized", append([]zap.Field{zap.String("app", hooks.Name)}, version.Fields()...)...)
	httputil.SetJSONLogger(logger)

	metrics.RegisterDefault(logger)

	connectCtx, cancelConnect := context.WithTimeout(ctx, coreCfg.BackendConnectTimeout)
	backends, err := hooks.Connect(connectCtx, coreCfg, cfg, logger)
	cancelConnect()
	if err != nil {
		logger.Error("backend connect failed", zap.Error(err))
		return fmt.Errorf("connect: %w", err)
	}
	if hooks.Close != nil {
		defer func() {
			if err := hooks.Close(backends); err != nil {
				logger.Warn("backend close failed", zap.Error(err))
			}
		}()
	}

	ctx, cancel := server.WithShutdownSignals(ctx, logger)
	defer cancel()

	handler, err := hooks.BuildHandler(coreCfg, cfg, backends, logger)
	if err != nil {
		logger.Error("handler build failed", zap.Error(err))
		return fmt.Errorf("build handler: %w", err)
	}

	if err := server.ListenAndServeWithContext(ctx, coreCfg, handler, logger); err != nil {
		logger.Error("server exited with error", zap.Error(err))
		return err
	}
	logger.Info("server stopped")
	return nil
}
