// Package cli implements the feedctl command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	Commit  = "none"
)

var (
	sourcesPath string
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "feedctl",
	Short: "Query the feedstream aggregator from the terminal",
	Long: `feedctl runs the feedstream aggregation pipeline in-process.
It uses the same environment configuration as the HTTP server, so cache,
keyword store and source credentials are shared between the two.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "feedctl %s (commit: %s)\n", Version, Commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&sourcesPath, "sources", "", "sources file (overrides SOURCES_FILE)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log pipeline activity to stderr")
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command. Interrupts cancel in-flight fetches.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func cliLogger() *slog.Logger {
	if !verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
