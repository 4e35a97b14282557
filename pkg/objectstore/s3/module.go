package s3

import (
	"context"
	"fmt"

	"github.com/spf13/viper"
	"go.uber.org/fx"

	"github.com/fileferry/fileferry/pkg/logging"
	"github.com/fileferry/fileferry/pkg/objectstore"
)

// ProvideProvider creates the S3 store from viper configuration. Invalid or
// missing credentials fail here, during app start, not at first use.
func ProvideProvider(v *viper.Viper, logger logging.Interface) (*Provider, error) {
	config, err := NewConfig(
		WithViper(v),
		WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("error creating s3 config: %w", err)
	}

	provider, err := NewProvider(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 object store: %w", err)
	}

	return provider, nil
}

// Module provides the S3 provider and binds it to the objectstore
// interfaces the relay consumes.
var Module = fx.Options(
	fx.Provide(ProvideProvider),
	fx.Provide(func(p *Provider) objectstore.Store { return p }),
	fx.Provide(func(p *Provider) objectstore.Multipart { return p }),
	fx.Provide(func(p *Provider) objectstore.Presigner { return p }),
)
