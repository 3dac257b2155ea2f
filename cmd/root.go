// Package cmd contains the CLI entry points: serve (default), reindex, and
// version.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/koopa0/ragserve/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "ragserve",
	Short: "RAG chat backend over a local document corpus",
	Long: `ragserve answers chat queries grounded in a folder of text documents.
Documents are chunked, embedded and stored in a local vector store; each
query retrieves the most similar chunks and asks the model to answer from
them, with bounded per-session conversation memory.

Running ragserve without a subcommand starts the HTTP server.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// newLogger builds the process logger. DEBUG (any value) enables debug
// level; LOG_JSON switches to JSON output for log collectors.
func newLogger() log.Logger {
	return log.New(log.Config{
		Level: logLevel(),
		JSON:  os.Getenv("LOG_JSON") != "",
	})
}

func logLevel() slog.Level {
	if os.Getenv("DEBUG") != "" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
