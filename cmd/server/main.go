// Package main provides the web server entry point.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"zone.digit.vitrine/internal/config"
	"zone.digit.vitrine/internal/server"
	"zone.digit.vitrine/internal/static"
	"zone.digit.vitrine/internal/templates"
)

func main() {
	os.Exit(execute(os.Args[1:], os.Stderr))
}

// execute runs the root command and returns the process exit code.
// Errors are printed here so flag and startup failures are never silent.
func execute(args []string, stderr io.Writer) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetErr(stderr)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var (
		settingsPath string
		logLevel     string
	)

	cmd := &cobra.Command{
		Use:           "vitrine",
		Short:         "Serve the site's pages and embedded assets",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger(logLevel)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, logger, settingsPath)
		},
	}

	cmd.Flags().StringVarP(&settingsPath, "config", "c", "", "settings file (default: settings.{toml,yaml,json} in the working directory)")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")

	return cmd
}

func run(ctx context.Context, logger *slog.Logger, settingsPath string) error {
	settings := config.Load(logger, settingsPath)

	pages, err := templates.Default()
	if err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}

	assets, err := static.Assets()
	if err != nil {
		return fmt.Errorf("failed to load assets: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)
	return server.New(settings, logger, pages, assets).Run(ctx)
}

func newLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), nil
}
