package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fileferry/fileferry/pkg/version"
)

var rootCmd = &cobra.Command{
	Use:     "fileferry",
	Short:   "Run the fileferry relay",
	Long:    "Fileferry relays files between a chat platform and an S3-compatible object store, returning time-limited retrieval links.",
	Version: fmt.Sprintf("gitVersion=%s, gitCommit=%s", version.GitVersion, version.GitCommit),
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(CreateAgentCommand(NewRelayAgentModule()))
}
