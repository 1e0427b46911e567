//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"

	"github.com/zeusync/dodgesim/internal/config"
	"github.com/zeusync/dodgesim/internal/core/rollout"
)

func InitializeServer(cfg config.Config) *ServerApp {
	wire.Build(ServerSet)
	return nil
}

func InitializeRollout(cfg config.Config, rec *rollout.Recorder) (*RolloutApp, error) {
	wire.Build(RolloutSet)
	return nil, nil
}
