package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/summerlia/zhuhaibay/config"
	"github.com/summerlia/zhuhaibay/scraper/zhszjj"
	"github.com/summerlia/zhuhaibay/storage"
	"github.com/summerlia/zhuhaibay/utils"
)

// openStore opens the configured snapshot backend.
func openStore(ctx context.Context, cfg *config.Config, logger *utils.Logger) (*storage.SQLStore, error) {
	switch cfg.StorageBackend {
	case config.BackendPostgres:
		return storage.OpenPostgres(ctx, cfg.DSN(), utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		}, logger)
	case config.BackendSQLite:
		return storage.OpenSQLite(ctx, cfg.SQLitePath, logger)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// newFetcher picks the plain HTTP or headless browser fetcher.
func newFetcher(cfg *config.Config, logger *utils.Logger) zhszjj.Fetcher {
	if cfg.FetchMode == config.FetchModeBrowser {
		return zhszjj.NewBrowserFetcher(cfg.FeedURL, cfg.FetchTimeout, cfg.ChromeBin, logger)
	}
	return zhszjj.NewHTTPFetcher(cfg.FeedURL, cfg.FetchTimeout, logger)
}

// openArchive returns nil when archiving is off or the file cannot be opened.
func openArchive(cfg *config.Config, logger *utils.Logger) storage.SnapshotArchive {
	if cfg.CSVArchivePath == "" {
		return nil
	}
	a, err := storage.NewCSVArchive(cfg.CSVArchivePath)
	if err != nil {
		logger.Warn("[cli] CSV archive disabled: %v", err)
		return nil
	}
	logger.Info("[cli] archiving snapshots to %s", cfg.CSVArchivePath)
	return a
}
