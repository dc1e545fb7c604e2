package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/summerlia/zhuhaibay/services"
)

func newRefreshCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Run one refresh now and print the insight report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger := root.loadConfig()
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

			refresher := services.NewRefresher(services.RefresherDeps{
				Fetcher:  newFetcher(cfg, logger),
				Store:    store,
				Archive:  archive,
				Logger:   logger,
				PageSize: cfg.FeedPageSize,
			})

			snap, err := refresher.RunRefresh(ctx)
			if err != nil {
				return fmt.Errorf("refresh failed: %w", err)
			}

			previous, err := store.ReadSnapshotBefore(ctx, snap.Timestamp)
			if err != nil {
				logger.Warn("[cli] previous snapshot unavailable: %v", err)
			}
			history, err := store.ListSnapshotSummaries(ctx)
			if err != nil {
				logger.Warn("[cli] snapshot history unavailable: %v", err)
			}

			insights := services.NewInsightService(logger)
			insights.Print(cmd.OutOrStdout(), insights.Generate(snap, previous, history))
			return nil
		},
	}
}
