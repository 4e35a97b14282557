package relayagent

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/fileferry/fileferry/pkg/configutils"
	"github.com/fileferry/fileferry/pkg/logging"
)

// ConfigKey is the root configuration key (in Viper) for this module.
const ConfigKey = "agent"

// Config holds the agent process settings.
type Config struct {
	Logger logging.Interface

	// BindAddress serves /healthz and /metrics.
	BindAddress string `mapstructure:"bind_address" validate:"required"`
	// ShutdownGrace bounds how long in-flight transfers may finish after
	// a stop signal.
	ShutdownGrace time.Duration `mapstructure:"shutdown_grace" validate:"gt=0"`
	// AbortOrphansOnStart sweeps multipart sessions left behind by a
	// previous crash.
	AbortOrphansOnStart bool `mapstructure:"abort_orphans_on_start"`
}

// Option mutates a Config during construction.
type Option func(*Config) error

// Apply applies the given options to the configuration.
func (c *Config) Apply(opts ...Option) error {
	for _, o := range opts {
		if o == nil {
			continue
		}
		if err := o(c); err != nil {
			return err
		}
	}
	return nil
}

// NewConfig builds a configuration from the given options.
func NewConfig(opts ...Option) (*Config, error) {
	c := &Config{
		BindAddress:         ":8080",
		ShutdownGrace:       30 * time.Second,
		AbortOrphansOnStart: true,
	}
	if err := c.Apply(opts...); err != nil {
		return nil, err
	}
	return c, nil
}

// WithViper reads the configuration from Viper under the "agent" key.
func WithViper(v *viper.Viper) Option {
	return func(c *Config) error {
		if err := configutils.BindEnvsRecursive(v, c, ConfigKey); err != nil {
			return fmt.Errorf("error binding environment variables: %w", err)
		}
		if err := v.UnmarshalKey(ConfigKey, c); err != nil {
			return fmt.Errorf("error unmarshalling agent config: %w", err)
		}
		return nil
	}
}

// WithLogger sets the logger for the configuration.
func WithLogger(logger logging.Interface) Option {
	return func(c *Config) error {
		c.Logger = logger
		return nil
	}
}

// Validate ensures the configuration is complete enough to start.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}
