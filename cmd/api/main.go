// Package main is the entry point for the travel planner. Its sole
// responsibility is wiring dependencies together and starting the HTTP
// server, the queue worker, or the migrations. No business logic belongs here.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pkordes/tripplanner/internal/config"
)

func main() {
	if err := rootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app is filled in by the root command's pre-run and shared by subcommands.
type app struct {
	envFile string
	cfg     config.Config
	logger  *slog.Logger
}

func rootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:           "tripplanner",
		Short:         "AI travel plan service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadFrom(a.envFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = newLogger(cfg.LogLevel)
			slog.SetDefault(a.logger)
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "optional .env file merged into the environment")

	cmd.AddCommand(serveCmd(a), workerCmd(a), migrateCmd(a))
	return cmd
}

// newLogger returns a JSON logger to stdout. Unknown levels fall back to info.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
