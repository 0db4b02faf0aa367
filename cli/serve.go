package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/warp/vendor-analytics/api"
	"github.com/warp/vendor-analytics/logging"
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the vendor summary and run history over HTTP",
		Long: `Serve starts a read-only JSON API over the database:

  GET /healthz
  GET /api/summary?vendor=&limit=&offset=
  GET /api/summary/{vendor}/{brand}
  GET /api/vendors/{vendor}
  GET /api/runs?limit=
  GET /metrics

On SIGINT or SIGTERM it stops accepting connections, waits for active
requests up to the shutdown timeout and closes the database.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
	cmd.Flags().String("addr", "", "listen address (default :8080)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	s, err := open(cmd, logging.FileServe)
	if err != nil {
		return err
	}
	defer s.close()

	handler := api.NewHandler(s.store, s.log)
	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: s.cfg.Server.AllowedOrigins,
		Metrics:        s.metrics.Handler(),
	})

	server := &http.Server{
		Addr:         s.cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		s.log.Info("server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	s.log.Info("server stopped")
	return nil
}
