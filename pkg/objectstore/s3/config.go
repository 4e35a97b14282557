package s3

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/fileferry/fileferry/pkg/configutils"
	"github.com/fileferry/fileferry/pkg/logging"
)

// ConfigKey is the root configuration key (in Viper) for this module.
const ConfigKey = "s3"

// Config holds the settings of the S3-compatible backend. Credentials are
// validated at startup: a relay that cannot reach its bucket should refuse to
// start instead of failing on the first upload.
type Config struct {
	Logger logging.Interface

	Region   string `mapstructure:"region" validate:"required"`
	Bucket   string `mapstructure:"bucket" validate:"required"`
	Endpoint string `mapstructure:"endpoint"`

	// UseDefaultCredentialChain falls back to the SDK credential chain
	// (env, shared config, instance role) instead of static keys.
	UseDefaultCredentialChain bool   `mapstructure:"use_default_credential_chain"`
	AccessKey                 string `mapstructure:"access_key" validate:"required_without=UseDefaultCredentialChain"`
	SecretKey                 string `mapstructure:"secret_key" validate:"required_without=UseDefaultCredentialChain"`

	// ForcePathStyle is required by most S3-compatible services.
	ForcePathStyle bool `mapstructure:"force_path_style"`
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
	c := &Config{}
	if err := c.Apply(opts...); err != nil {
		return nil, err
	}
	return c, nil
}

// WithViper reads the configuration from Viper under the "s3" key, binding
// environment variables for every field first.
func WithViper(v *viper.Viper) Option {
	return func(c *Config) error {
		if err := configutils.BindEnvsRecursive(v, c, ConfigKey); err != nil {
			return fmt.Errorf("error binding environment variables: %w", err)
		}

		if err := v.UnmarshalKey(ConfigKey, c); err != nil {
			return fmt.Errorf("error unmarshalling s3 config: %w", err)
		}

		if c.Endpoint == "" && c.Region != "" {
			c.Endpoint = WasabiEndpoint(c.Region)
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
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}
	return nil
}

// WasabiEndpoint derives the regional Wasabi endpoint used when no explicit
// endpoint is configured.
func WasabiEndpoint(region string) string {
	return fmt.Sprintf("https://s3.%s.wasabisys.com", region)
}
