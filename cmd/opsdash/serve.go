package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	opsdash "github.com/mydripnurse-lab/devasks-delta-system-sub001"
	"github.com/mydripnurse-lab/devasks-delta-system-sub001/internal/logger"
	"github.com/mydripnurse-lab/devasks-delta-system-sub001/internal/metrics"
	"github.com/mydripnurse-lab/devasks-delta-system-sub001/internal/server"
)

func newServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(*configPath)
		},
	}
}

func serve(configPath string) error {
	cfg, err := opsdash.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if err := logger.Setup(cfg.Log); err != nil {
		return fmt.Errorf("logger setup: %w", err)
	}
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("metrics register: %w", err)
	}

	svc, err := opsdash.New(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	srv := server.NewHTTPServer(cfg.Server.Addr, svc.Handler())
	slog.Info("server started", "addr", cfg.Server.Addr, "basePath", cfg.Server.BasePath, "jobs", len(cfg.Jobs))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("shutting down", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
