// Package storage persists presale snapshots and serves them back for
// verification and the read endpoints.
package storage

import (
	"context"

	"github.com/summerlia/zhuhaibay/models"
)

// SnapshotStore is the persistence port the refresh pipeline writes to.
// Read methods return empty results, not errors, when nothing is stored.
type SnapshotStore interface {
	WriteSnapshot(ctx context.Context, s *models.Snapshot) error
	// ReadLatestSnapshot returns nil when the store is empty.
	ReadLatestSnapshot(ctx context.Context) (*models.Snapshot, error)
	// ReadSnapshotBefore returns the newest snapshot older than timestamp, or nil.
	ReadSnapshotBefore(ctx context.Context, timestamp string) (*models.Snapshot, error)
	ListSnapshotSummaries(ctx context.Context) ([]models.SnapshotSummary, error)
	ListProjectNames(ctx context.Context) ([]string, error)
	ReadProjectHistory(ctx context.Context, name string) ([]models.ProjectPoint, error)
	ReadLatestPerProject(ctx context.Context) ([]models.ProjectUnits, error)
	Close() error
}

// SnapshotArchive receives a copy of every persisted snapshot.
type SnapshotArchive interface {
	Append(s *models.Snapshot) error
	Close() error
}
