// Package main provides the semvault binary entry point.
// Semvault manages versioned artifacts that import shared, versioned schemas.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/c360studio/semvault/config"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "semvault"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// globalOptions are the flags shared by every command.
type globalOptions struct {
	configPath string
	logLevel   string
}

func rootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Versioned artifact lifecycle engine",
		Long: `Semvault manages versioned artifacts: statement graphs that import
shared, versioned schemas.

It provides:
- Loading and updating artifacts with connectivity and consistency checks
- Publication and deletion with version state rules
- Schema import ordering and live schema reloads

Statements are kept in a NATS JetStream KV bucket (embedded by default).`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		loadCmd(opts),
		updateCmd(opts),
		publishCmd(opts),
		deleteCmd(opts),
		exportCmd(opts),
		importsCmd(opts),
		updateImportsCmd(opts),
		deleteObjectCmd(opts),
		listCmd(opts),
		schemaCmd(opts),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
			},
		},
	)

	return cmd
}

func newLogger(level string) *slog.Logger {
	l := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

func (o *globalOptions) loadConfig(logger *slog.Logger) (*config.Config, error) {
	loader := config.NewLoader(logger)
	if o.configPath != "" {
		return loader.LoadPath(o.configPath)
	}
	return loader.Load()
}

// withApp starts an App for the duration of fn.
func (o *globalOptions) withApp(cmd *cobra.Command, fn func(ctx context.Context, app *App) error) error {
	logger := newLogger(o.logLevel)
	slog.SetDefault(logger)

	cfg, err := o.loadConfig(logger)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	app, err := NewApp(cfg, logger)
	if err != nil {
		return err
	}
	defer app.Shutdown()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := app.Start(ctx); err != nil {
		return err
	}
	return fn(ctx, app)
}
