package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tjfontaine/promptgate/internal/telemetry"
	"github.com/tjfontaine/promptgate/pkg/gateway"
)

const shutdownTimeout = 30 * time.Second

func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := gateway.LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			logger, closer := newLogger(cfg.Logging)
			defer closer.Close()
			slog.SetDefault(logger)

			if cfg.Telemetry.Enabled {
				shutdown, err := telemetry.InitTracer(telemetry.Options{ServiceName: "promptgate"}, logger)
				if err != nil {
					return fmt.Errorf("init tracer: %w", err)
				}
				defer func() {
					if err := shutdown(context.Background()); err != nil {
						logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
					}
				}()
			}

			gw, err := gateway.New(gateway.WithConfig(cfg), gateway.WithLogger(logger))
			if err != nil {
				return fmt.Errorf("create gateway: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := gw.Start(ctx); err != nil {
				return fmt.Errorf("start gateway: %w", err)
			}

			waitErr := gw.Wait(ctx)
			if waitErr != nil {
				logger.Error("server stopped", slog.String("error", waitErr.Error()))
			} else {
				logger.Info("shutdown signal received, stopping gateway")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := gw.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			return waitErr
		},
	}
}
