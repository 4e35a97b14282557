package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fileferry/fileferry/pkg/logging"
)

var configFilePath string
var debug bool

// AgentModule is a runnable unit of the fileferry binary: it names itself,
// declares the fx modules it needs and configures its own cobra command.
type AgentModule interface {
	Name() string
	ShortDescription() string
	LongDescription() string
	FxModules() []fx.Option

	// ConfigureCommand lets the module add subcommands and flags.
	ConfigureCommand(*cobra.Command)

	// Start is the default action when no subcommand is given.
	Start() error
}

// CreateAgentCommand creates the cobra command for one agent module.
func CreateAgentCommand(module AgentModule) *cobra.Command {
	cmd := &cobra.Command{
		Use:   module.Name(),
		Short: module.ShortDescription(),
		Long:  module.LongDescription(),
	}

	cmd.PersistentFlags().StringVarP(&configFilePath, "config", "c", "", "path to config file")
	cmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug mode")

	module.ConfigureCommand(cmd)

	return cmd
}

// runAgentCommand assembles the fx application for a module and runs one
// action inside it, shutting the app down when the action returns.
func runAgentCommand(cmd *cobra.Command, module AgentModule, action func() error) {
	options := []fx.Option{
		configProvider(cmd),
		logging.UseLoggingInterface,
	}
	options = append(options, module.FxModules()...)

	options = append(options, fx.Invoke(func(lc fx.Lifecycle, l *zap.Logger, sh fx.Shutdowner) {
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				go func() {
					if err := action(); err != nil {
						l.Error(module.Name()+" failed", zap.Error(err))
						os.Exit(1)
					}
					if err := sh.Shutdown(); err != nil {
						l.Error("Failed to shut down "+module.Name(), zap.Error(err))
					}
				}()
				return nil
			},
			OnStop: func(context.Context) error {
				return nil
			},
		})
	}))

	app := fx.New(fx.Options(options...))
	app.Run()
	if err := app.Stop(context.Background()); err != nil {
		return
	}
}
