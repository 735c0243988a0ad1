package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quititoday/clickstats/clicks"
	"github.com/quititoday/clickstats/httpapi"
)

func newServeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the click HTTP API",
		Long: `Serve POST /click and the read endpoints over HTTP.

The address comes from CLICKSTATS_SERVER_ADDR (default :8080). The server
shuts down gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	b, err := a.open(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer b.close(context.WithoutCancel(ctx))

	if err := b.schema(ctx); err != nil {
		return err
	}

	svc, err := clicks.New(b.store,
		clicks.WithStoreTimeout(a.cfg.StoreTimeout),
		clicks.WithRollups(a.cfg.Rollups),
	)
	if err != nil {
		return fmt.Errorf("failed to create click service: %w", err)
	}

	var apiOpts []httpapi.Option
	if a.cfg.DefaultSubjectID != "" {
		apiOpts = append(apiOpts, httpapi.WithDefaultSubjectID(a.cfg.DefaultSubjectID))
	}

	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           httpapi.New(svc, a.logger, apiOpts...).Handler(),
		ReadHeaderTimeout: a.cfg.Server.ReadTimeout,
		ReadTimeout:       a.cfg.Server.ReadTimeout,
	}

	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("Starting HTTP server", "address", srv.Addr, "store", a.cfg.Store)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}

		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server failed: %w", err)
	case <-ctx.Done():
	}

	a.logger.Debug("Received shutdown signal, initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	a.logger.Info("HTTP server stopped")

	return nil
}
