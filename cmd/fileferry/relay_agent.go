package main

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/fileferry/fileferry/internal/relay"
	"github.com/fileferry/fileferry/internal/relayagent"
	"github.com/fileferry/fileferry/pkg/logging"
	"github.com/fileferry/fileferry/pkg/objectstore/s3"
)

// RelayAgentModule runs the relay daemon and its maintenance subcommands.
type RelayAgentModule struct {
	agent *relayagent.Agent
}

// NewRelayAgentModule creates the relay agent module.
func NewRelayAgentModule() *RelayAgentModule {
	return &RelayAgentModule{}
}

func (r *RelayAgentModule) Name() string {
	return "relay"
}

func (r *RelayAgentModule) ShortDescription() string {
	return "Run the fileferry relay agent"
}

func (r *RelayAgentModule) LongDescription() string {
	return "The relay agent moves inbound files to the object store, mints retrieval links, sweeps orphaned multipart sessions and serves health and metrics endpoints."
}

// ConfigureCommand wires the default daemon action plus link and rm
// maintenance subcommands.
func (r *RelayAgentModule) ConfigureCommand(cmd *cobra.Command) {
	cmd.Run = func(cmd *cobra.Command, args []string) {
		runAgentCommand(cmd, r, r.Start)
	}

	var ttl time.Duration
	linkCmd := &cobra.Command{
		Use:   "link <key>",
		Short: "Mint a retrieval link for a stored object",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			runAgentCommand(cmd, r, func() error {
				return r.agent.IssueLink(args[0], ttl)
			})
		},
	}
	linkCmd.Flags().DurationVar(&ttl, "ttl", relay.DefaultLinkTTL, "how long the link stays valid")

	rmCmd := &cobra.Command{
		Use:   "rm <key>",
		Short: "Delete a stored object",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			runAgentCommand(cmd, r, func() error {
				return r.agent.Remove(args[0])
			})
		},
	}

	cmd.AddCommand(linkCmd, rmCmd)
}

// FxModules returns the fx modules this agent needs.
func (r *RelayAgentModule) FxModules() []fx.Option {
	return []fx.Option{
		logging.Module,
		s3.Module,
		relay.Module,
		relayagent.Module,
		fx.Populate(&r.agent),
	}
}

// Start runs the relay daemon.
func (r *RelayAgentModule) Start() error {
	return r.agent.Start()
}
