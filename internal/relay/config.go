package relay

import (
	"fmt"
	"time"

	"github.com/docker/go-units"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/fileferry/fileferry/pkg/configutils"
	"github.com/fileferry/fileferry/pkg/logging"
)

// ConfigKey is the root configuration key (in Viper) for this module.
const ConfigKey = "relay"

const (
	// DefaultMaxFileSize caps inbound files at 4 GiB.
	DefaultMaxFileSize = 4 * units.GiB
	// DefaultSinglePartThreshold routes files above 100 MiB to the
	// chunked path.
	DefaultSinglePartThreshold = 100 * units.MiB
	// DefaultChunkSize is the fixed part size of chunked transfers.
	DefaultChunkSize = 32 * units.MiB

	// DefaultLinkTTL is how long retrieval links stay valid.
	DefaultLinkTTL = time.Hour
	// MaxLinkTTL is the longest expiry the presigning scheme supports.
	MaxLinkTTL = 7 * 24 * time.Hour

	// DefaultProgressInterval throttles progress notifications toward the
	// chat transport, which has its own edit rate limits.
	DefaultProgressInterval = 3 * time.Second
)

// Config holds the relay orchestrator settings.
type Config struct {
	Logger logging.Interface

	MaxFileSize         int64 `mapstructure:"max_file_size" validate:"gt=0"`
	SinglePartThreshold int64 `mapstructure:"single_part_threshold" validate:"gt=0"`
	ChunkSize           int64 `mapstructure:"chunk_size" validate:"gt=0"`

	MaxTransfers int `mapstructure:"max_transfers" validate:"gt=0"`
	MaxChunks    int `mapstructure:"max_chunks" validate:"gt=0"`

	ChunkTimeout     time.Duration `mapstructure:"chunk_timeout" validate:"gt=0"`
	LinkTTL          time.Duration `mapstructure:"link_ttl" validate:"gt=0"`
	ProgressInterval time.Duration `mapstructure:"progress_interval" validate:"gt=0"`

	// KeyPrefix namespaces every stored object, e.g. "uploads".
	KeyPrefix string `mapstructure:"key_prefix"`
	// StagingDir holds temporary artifacts for store-to-chat fetches.
	StagingDir string `mapstructure:"staging_dir"`
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
	defaults(c)
	if err := c.Apply(opts...); err != nil {
		return nil, err
	}
	return c, nil
}

func defaults(c *Config) {
	c.MaxFileSize = DefaultMaxFileSize
	c.SinglePartThreshold = DefaultSinglePartThreshold
	c.ChunkSize = DefaultChunkSize
	c.MaxTransfers = 4
	c.MaxChunks = 16
	c.ChunkTimeout = 2 * time.Minute
	c.LinkTTL = DefaultLinkTTL
	c.ProgressInterval = DefaultProgressInterval
	c.KeyPrefix = "uploads"
	c.StagingDir = "/tmp/fileferry"
}

// WithViper reads the configuration from Viper under the "relay" key, binding
// environment variables for every field first. Unset keys keep the defaults.
func WithViper(v *viper.Viper) Option {
	return func(c *Config) error {
		if err := configutils.BindEnvsRecursive(v, c, ConfigKey); err != nil {
			return fmt.Errorf("error binding environment variables: %w", err)
		}
		if err := v.UnmarshalKey(ConfigKey, c); err != nil {
			return fmt.Errorf("error unmarshalling relay config: %w", err)
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

// Validate ensures the configuration is internally consistent.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.SinglePartThreshold > c.MaxFileSize {
		return fmt.Errorf("single_part_threshold (%s) exceeds max_file_size (%s)",
			units.BytesSize(float64(c.SinglePartThreshold)), units.BytesSize(float64(c.MaxFileSize)))
	}
	if c.LinkTTL > MaxLinkTTL {
		return fmt.Errorf("link_ttl %s exceeds the presigning maximum of %s", c.LinkTTL, MaxLinkTTL)
	}
	return nil
}
