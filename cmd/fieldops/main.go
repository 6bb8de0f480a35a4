// Command fieldops runs the field-operations tracking service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fieldops/internal/config"
	"fieldops/internal/core"
	"fieldops/internal/httpapi"
	"fieldops/internal/infra/blob"
	"fieldops/internal/seed"
)

func main() {
	root := &cobra.Command{
		Use:           "fieldops",
		Short:         "Field operations tracking service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), seedCmd())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "fieldops:", err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			log, err := config.NewLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			store := core.OpenStore(ctx, cfg, log)
			defer func() {
				if err := store.Close(context.Background()); err != nil {
					log.Warn("close store", zap.Error(err))
				}
			}()

			photos, err := blob.Open(ctx)
			if err != nil {
				return fmt.Errorf("open photo store: %w", err)
			}

			api := httpapi.New(store, photos, log, cfg.JWTSecret, nil)
			srv := &http.Server{
				Addr:              cfg.HTTPAddr,
				Handler:           api.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the bootstrap supervisor account and demo data",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			log, err := config.NewLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx := cmd.Context()
			store := core.OpenStore(ctx, cfg, log)
			defer func() { _ = store.Close(context.Background()) }()

			return seed.Run(ctx, store, log)
		},
	}
}
