package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	config "github.com/xilidan/transcript-relay/config/relay"
	"github.com/xilidan/transcript-relay/gateways/relay"
	"github.com/xilidan/transcript-relay/pkg/logger"
)

// Version is set via -ldflags at build time.
var Version = "dev"

func main() {
	app := newCLIApp()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := newLogger(cfg)
	logger.SetDefault(log)
	log.Info("configuration loaded",
		slog.Int("port", cfg.Port),
		slog.String("environment", cfg.Environment),
		slog.Int("rate_limit_max", cfg.RateLimit.Max),
		slog.Duration("rate_limit_window", cfg.RateLimit.Window),
		slog.String("upstream_url", cfg.Abacus.URL),
		slog.Int("grpc_health_port", cfg.GRPCHealthPort))

	rootCtx, cancel := signal.NotifyContext(logger.WithContext(ctx, log), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(rootCtx, cfg, log); err != nil {
		log.Error("failed to run()", slog.String("error", err.Error()))
		return err
	}
	log.Info("application terminated successfully")
	return nil
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	srv, err := relay.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start(ctx)
}

func newLogger(cfg *config.Config) *slog.Logger {
	return logger.New(logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		Output:     os.Stderr,
		AddSource:  cfg.IsDevelopment(),
		JSONFormat: cfg.Log.Format == "json",
		Color:      cfg.IsDevelopment(),
		File: logger.FileConfig{
			Path:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
		},
	})
}
