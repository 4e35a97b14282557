package relayagent

import (
	"github.com/spf13/viper"
	"go.uber.org/fx"

	"github.com/fileferry/fileferry/internal/relay"
	"github.com/fileferry/fileferry/pkg/logging"
)

type agentParams struct {
	fx.In

	Viper        *viper.Viper
	Logger       logging.Interface
	Orchestrator *relay.Orchestrator
}

// ProvideAgent constructs the relay agent from configuration.
func ProvideAgent(params agentParams) (*Agent, error) {
	config, err := NewConfig(
		WithViper(params.Viper),
		WithLogger(params.Logger),
	)
	if err != nil {
		return nil, err
	}
	return NewAgent(config, params.Orchestrator, params.Logger)
}

// Module provides the relay agent to an fx application.
var Module = fx.Provide(ProvideAgent)
