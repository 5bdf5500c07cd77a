package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitecrawler/internal/config"
)

const ingestShutdownTimeout = 10 * time.Second

type ingestOverrides struct {
	addr string
}

func (o *ingestOverrides) apply(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("addr") {
		cfg.Ingest.Addr = o.addr
	}
}

func newIngestCmd(o *ingestOverrides) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Run the API that receives crawled pages",
		RunE:  runIngestCommand,
	}
	cmd.Flags().StringVar(&o.addr, "addr", "", "listen address (overrides ingest.addr)")
	return cmd
}

func runIngestCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	defer appInstance.Close()
	logger := appInstance.Logger()
	cfg := appInstance.Config()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server, err := appInstance.BuildIngestServer(ctx)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Ingest.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("ingest server started", zap.String("addr", cfg.Ingest.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ingest server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ingestShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ingest server shutdown: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}
