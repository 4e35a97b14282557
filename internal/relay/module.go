package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"go.uber.org/fx"

	"github.com/fileferry/fileferry/pkg/logging"
	"github.com/fileferry/fileferry/pkg/objectstore"
)

type orchestratorParams struct {
	fx.In

	Viper     *viper.Viper
	Logger    logging.Interface
	Store     objectstore.Store
	Multipart objectstore.Multipart
	Presigner objectstore.Presigner
}

// ProvideOrchestrator constructs the relay pipeline from configuration.
func ProvideOrchestrator(params orchestratorParams) (*Orchestrator, error) {
	config, err := NewConfig(
		WithViper(params.Viper),
		WithLogger(params.Logger),
	)
	if err != nil {
		return nil, err
	}

	metrics := NewMetrics(prometheus.DefaultRegisterer)
	return NewOrchestrator(config, params.Store, params.Multipart, params.Presigner,
		afero.NewOsFs(), metrics, params.Logger)
}

// Module provides the relay orchestrator to an fx application.
var Module = fx.Provide(ProvideOrchestrator)
