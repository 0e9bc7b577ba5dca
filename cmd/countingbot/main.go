// countingbot - a counting game bot for a single Discord channel.
package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "countingbot",
		Short: "Counting game bot",
		Long:  "Runs the counting game in one Discord channel and the tools that maintain its database.",
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			setupLogger(cmd.ErrOrStderr(), slog.LevelInfo)
			if err := godotenv.Load(); err != nil {
				slog.Info("No .env file found, using environment variables")
			}
		},
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newInspectCommand())
	cmd.AddCommand(newMigrateCommand())
	return cmd
}

func setupLogger(w io.Writer, level slog.Level) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}
