// Command credtool performs the pipeline's hashing and verification steps
// offline: field hashes, batch roots and paths, credential inclusion checks,
// requirement commitments and development attestations.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"nexuscred/internal/platform/logger"
)

const programName = "credtool"

var globalFlags = struct {
	debug bool
}{}

func newLogger(cmd *cobra.Command) *slog.Logger {
	level := "info"
	if globalFlags.debug {
		level = "debug"
	}
	return logger.NewWithWriter(cmd.ErrOrStderr(), level).With("component", programName)
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           programName,
		Short:         "Offline credential commitment tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().
		BoolVarP(&globalFlags.debug, "debug", "D", false, "enable debug logging")

	rootCmd.AddCommand(hashFieldCommand())
	rootCmd.AddCommand(rootCommand())
	rootCmd.AddCommand(verifyVCCommand())
	rootCmd.AddCommand(policyHashCommand())
	rootCmd.AddCommand(attestCommand())
	rootCmd.AddCommand(genKeyCommand())
	return rootCmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", programName, err)
		os.Exit(1)
	}
}
