package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/summerlia/zhuhaibay/utils"
)

// OpenSQLite opens (creating if needed) the SQLite database at path and
// migrates it. ":memory:" gives a throwaway database.
func OpenSQLite(ctx context.Context, path string, logger *utils.Logger) (*SQLStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("sqlite: create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	// Single connection for SQLite to avoid locking issues.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: exec %q: %w", p, err)
		}
	}

	store, err := newSQLStore(ctx, db, sqliteDialect, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("[storage] sqlite ready at %s", path)
	return store, nil
}
