package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MuiGoku123432/adoflow"
	httpAdapter "github.com/MuiGoku123432/adoflow/pkg/adapters/http"
	"github.com/MuiGoku123432/adoflow/pkg/domain"
	"github.com/MuiGoku123432/adoflow/pkg/observability"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Starts the transition engine in server mode, exposing a JSON API plus an SSE event stream over HTTP.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(cmd)
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(1)
		}
		if cmd.Flags().Changed("port") {
			cfg.HTTP.Port, _ = cmd.Flags().GetInt("port")
		}

		logger := newLogger(cfg)
		metrics := observability.NewMetrics()

		// The server is built before the engine so its SSE hooks can be
		// merged with the metrics hooks at construction time.
		var server *httpAdapter.Server
		hooks := domain.LifecycleHooks{
			OnFieldsRequired: func(ctx context.Context, ev *domain.FieldsRequiredEvent) {
				server.Hooks().OnFieldsRequired(ctx, ev)
			},
			OnTransitionCompleted: func(ctx context.Context, ev *domain.TransitionCompletedEvent) {
				server.Hooks().OnTransitionCompleted(ctx, ev)
			},
			OnTransitionRejected: func(ctx context.Context, ev *domain.TransitionRejectedEvent) {
				server.Hooks().OnTransitionRejected(ctx, ev)
			},
		}

		onHit, onMiss := metrics.PreviewObserver()
		engine, cleanup, err := buildEngine(cfg, logger,
			adoflow.WithLifecycleHooks(domain.MergeHooks(metrics.Hooks(), hooks)),
			adoflow.WithPreviewObserver(onHit, onMiss),
		)
		if err != nil {
			fmt.Printf("Error initializing engine: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()

		server = httpAdapter.NewServer(engine,
			httpAdapter.WithLogger(logger),
			httpAdapter.WithMetricsHandler(metrics.Handler()),
		)

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.HTTP.Port),
			Handler: server.Handler(),
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		go func() {
			logger.Info("server listening", "addr", srv.Addr, "project", cfg.Project)
			serverErrors <- srv.ListenAndServe()
		}()

		// Channel to listen for interrupt or terminate signals.
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			fmt.Printf("Server error: %v\n", err)
			os.Exit(1)

		case sig := <-shutdown:
			logger.Info("shutdown started", "signal", sig.String())

			// Give outstanding requests a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				logger.Error("graceful shutdown did not complete", "err", err)
				if err := srv.Close(); err != nil {
					logger.Error("error killing server", "err", err)
				}
			}
			logger.Info("server stopped gracefully")
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on")
}
