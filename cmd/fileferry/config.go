package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/fileferry/fileferry/pkg/configutils"
)

const envPrefix = "FILEFERRY"

func configProvider(cli *cobra.Command) fx.Option {
	return configutils.ProvideViperFromFile(envPrefix, cli.Flags(), configFilePath)
}
