package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kalambet/sqlrag/internal/config"
	"github.com/kalambet/sqlrag/internal/observability"
	"github.com/kalambet/sqlrag/internal/session"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:           "sqlrag",
	Short:         "Ask questions about the university database in plain English",
	Long:          "sqlrag retrieves schema documentation for a question, asks a language model for one SQL statement, runs it and prints the rows.",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSession(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	if os.Getenv("NO_COLOR") != "" {
		noColor = true
	}

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func runSession(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := observability.NewLogger(cfg.Log, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	stopMetrics, err := startMetrics(ctx, cfg.Metrics.Addr, a.healthChecks(), logger)
	if err != nil {
		return err
	}
	defer stopMetrics()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, colorize(colorBold, "University Text-to-SQL Assistant"))
	fmt.Fprintf(out, "Type 'exit' or 'quit' to stop.\n\n")

	loop := session.New(a.pipeline, cmd.InOrStdin(), out, session.Options{
		GenerationTimeout: cfg.Generation.Timeout,
	}, logger)
	return loop.Run(ctx)
}
