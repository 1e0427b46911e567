package injector

import (
	"github.com/google/wire"

	"github.com/zeusync/dodgesim/internal/config"
	"github.com/zeusync/dodgesim/internal/core/env"
	"github.com/zeusync/dodgesim/internal/core/events/bus"
	"github.com/zeusync/dodgesim/internal/core/observability/log"
	"github.com/zeusync/dodgesim/internal/core/rollout"
	"github.com/zeusync/dodgesim/internal/server"
)

// ServerApp is everything the serve command needs.
type ServerApp struct {
	Server *server.Server
	Logger *log.Logger
	Bus    bus.EventBus
}

// RolloutApp is everything the rollout command needs.
type RolloutApp struct {
	Runner *rollout.Runner
	Logger *log.Logger
}

var CommonSet = wire.NewSet(
	ProvideLogger,
	ProvideBus,
	ProvideEnvConfig,
)

var ServerSet = wire.NewSet(
	CommonSet,
	ProvideServerConfig,
	ProvideServer,
	wire.Struct(new(ServerApp), "*"),
)

var RolloutSet = wire.NewSet(
	CommonSet,
	ProvideRolloutConfig,
	ProvideRunner,
	wire.Struct(new(RolloutApp), "*"),
)

func ProvideLogger(cfg config.Config) *log.Logger {
	return log.New(cfg.Level())
}

func ProvideBus() bus.EventBus {
	return bus.New()
}

func ProvideEnvConfig(cfg config.Config) env.Config {
	return cfg.Env
}

func ProvideServerConfig(cfg config.Config) server.Config {
	return cfg.Server
}

func ProvideRolloutConfig(cfg config.Config) rollout.Config {
	return cfg.Rollout
}

func ProvideServer(sc server.Config, ec env.Config, logger *log.Logger, b bus.EventBus) *server.Server {
	return server.NewServer(sc, ec, logger, b)
}

// ProvideRunner wires the runner; rec may be nil to skip recording.
func ProvideRunner(rc rollout.Config, ec env.Config, logger *log.Logger, b bus.EventBus, rec *rollout.Recorder) (*rollout.Runner, error) {
	return rollout.NewRunner(rc, ec,
		rollout.WithLogger(logger),
		rollout.WithBus(b),
		rollout.WithRecorder(rec),
	)
}
