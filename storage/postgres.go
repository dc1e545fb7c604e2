package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/summerlia/zhuhaibay/utils"
)

// OpenPostgres connects to PostgreSQL, waiting for it to come up, and
// migrates the schema.
func OpenPostgres(ctx context.Context, dsn string, retry utils.RetryConfig, logger *utils.Logger) (*SQLStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	return connectPostgres(ctx, db, retry, logger)
}

func connectPostgres(ctx context.Context, db *sql.DB, retry utils.RetryConfig, logger *utils.Logger) (*SQLStore, error) {
	if retry.Logger == nil {
		retry.Logger = logger
	}
	if err := retry.Do(ctx, "postgres ping", func() error {
		return db.PingContext(ctx)
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}

	store, err := newSQLStore(ctx, db, postgresDialect, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("[storage] postgres ready")
	return store, nil
}
