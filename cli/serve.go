package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/summerlia/zhuhaibay/api"
	"github.com/summerlia/zhuhaibay/services"
	"github.com/summerlia/zhuhaibay/utils"
	"github.com/summerlia/zhuhaibay/web"
)

const (
	shutdownTimeout = 10 * time.Second
	drainTimeout    = 30 * time.Second
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var (
		port    int
		backend string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the API and dashboard and refresh daily",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger := root.loadConfig()
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if cmd.Flags().Changed("backend") {
				cfg.StorageBackend = backend
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			store, err := openStore(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer func() { _ = store.Close() }()

			archive := openArchive(cfg, logger)
			if archive != nil {
				defer func() { _ = archive.Close() }()
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			refresher := services.NewRefresher(services.RefresherDeps{
				Fetcher:  newFetcher(cfg, logger),
				Store:    store,
				Archive:  archive,
				Metrics:  services.NewMetrics(reg),
				Logger:   logger,
				PageSize: cfg.FeedPageSize,
			})

			scheduler, err := services.NewDailyScheduler(cfg.ScheduleAt, cfg.RunOnStart, refresher, logger)
			if err != nil {
				return fmt.Errorf("scheduler: %w", err)
			}

			srv := &http.Server{
				Addr: cfg.Addr(),
				Handler: api.NewRouter(api.Deps{
					Store:     store,
					Refresher: refresher,
					Insights:  services.NewInsightService(logger),
					Registry:  reg,
					Static:    web.Static(),
					Logger:    logger,
				}),
				ReadHeaderTimeout: 5 * time.Second,
				WriteTimeout:      30 * time.Second,
			}

			go func() {
				if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("[scheduler] stopped: %v", err)
				}
			}()

			serveErr := make(chan error, 1)
			go func() {
				logger.Info("[cli] %s storage, listening on %s", store.Backend(), cfg.Addr())
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
				close(serveErr)
			}()

			select {
			case err := <-serveErr:
				if err != nil {
					return fmt.Errorf("listen: %w", err)
				}
			case <-ctx.Done():
			}

			logger.Info("[cli] shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("[cli] server shutdown: %v", err)
			}

			waitForRefresh(refresher, drainTimeout, logger)
			return nil
		},
	}

	cmd.Flags().IntVar(&port, "port", 8080, "port to listen on (overrides PORT)")
	cmd.Flags().StringVar(&backend, "backend", "sqlite", "storage backend: sqlite or postgres (overrides STORAGE_BACKEND)")
	return cmd
}

// waitForRefresh lets an in-flight run finish so its snapshot is not lost.
func waitForRefresh(r *services.Refresher, timeout time.Duration, logger *utils.Logger) {
	done := make(chan struct{})
	go func() {
		r.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		logger.Warn("[cli] refresh still running after %v, exiting anyway", timeout)
	}
}
