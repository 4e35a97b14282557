package logging

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"gopkg.in/natefinch/lumberjack.v2"
)

func TestNewConfig_Viper(t *testing.T) {
	v := viper.New()
	v.SetConfigType("YAML")
	require.NoError(t, v.ReadConfig(strings.NewReader(`---
logging:
  debug: true
  level: WARN
  maxage: 10
  maxsize: 42
  maxbackups: 100
  compress: true
  localtime: true
  encodetimeasrfc3339nano: true
  disableConsoleOutput: true
  filename: /var/log/fileferry/relay.log
`)))

	c, err := NewConfig(WithViper(v))
	require.NoError(t, err)

	d := cmp.Diff(c, &Config{
		Debug:                   true,
		Level:                   LevelWarn,
		EncodeTimeAsRFC3339Nano: true,
		DisableConsoleOutput:    true,
		Logger: lumberjack.Logger{
			Filename:   "/var/log/fileferry/relay.log",
			MaxSize:    42,
			MaxAge:     10,
			MaxBackups: 100,
			LocalTime:  true,
			Compress:   true,
		},
	}, cmpopts.IgnoreUnexported(lumberjack.Logger{}))
	require.Empty(t, d)
}

func TestConfigValidate(t *testing.T) {
	c := &Config{}
	require.NoError(t, c.Validate())

	c.MaxSize = -1
	require.Error(t, c.Validate())

	c.MaxSize = 0
	c.Level = "trace"
	require.Error(t, c.Validate())
}
