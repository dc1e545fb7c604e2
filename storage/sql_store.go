package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/summerlia/zhuhaibay/models"
	"github.com/summerlia/zhuhaibay/utils"
)

const insertBatchSize = 50

// detailsDoc is the structured document kept in snapshots.details.
type detailsDoc struct {
	TotalProjects       int                    `json:"total_projects"`
	TotalAvailableUnits int                    `json:"total_available_units"`
	Properties          []models.ListingRecord `json:"properties"`
}

// SQLStore implements SnapshotStore over database/sql for both backends.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	logger  *utils.Logger
}

func newSQLStore(ctx context.Context, db *sql.DB, d dialect, logger *utils.Logger) (*SQLStore, error) {
	if err := migrateUp(ctx, db, d); err != nil {
		return nil, fmt.Errorf("%s: migrate: %w", d.name, err)
	}
	return &SQLStore{db: db, dialect: d, logger: logger}, nil
}

// Backend names the SQL dialect in use.
func (s *SQLStore) Backend() string { return s.dialect.name }

// WriteSnapshot stores the envelope and every per-project row in one transaction.
func (s *SQLStore) WriteSnapshot(ctx context.Context, snap *models.Snapshot) error {
	if snap == nil {
		return errors.New("nil snapshot")
	}

	details, err := json.Marshal(detailsDoc{
		TotalProjects:       snap.TotalProjects,
		TotalAvailableUnits: snap.TotalAvailableUnits,
		Properties:          snap.Records,
	})
	if err != nil {
		return fmt.Errorf("%s: encode details: %w", s.dialect.name, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", s.dialect.name, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, s.dialect.rebind(
		`INSERT INTO snapshots (timestamp, available_units, total_projects, details) VALUES (?, ?, ?, ?)`),
		snap.Timestamp, snap.TotalAvailableUnits, snap.TotalProjects, string(details),
	); err != nil {
		return fmt.Errorf("%s: insert snapshot: %w", s.dialect.name, err)
	}

	for i := 0; i < len(snap.Records); i += insertBatchSize {
		end := i + insertBatchSize
		if end > len(snap.Records) {
			end = len(snap.Records)
		}
		if err := s.insertBatch(ctx, tx, snap.Timestamp, snap.Records[i:end]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", s.dialect.name, err)
	}

	s.logger.Debug("[storage] %s: wrote snapshot %s (%d projects)", s.dialect.name, snap.Timestamp, len(snap.Records))
	return nil
}

func (s *SQLStore) insertBatch(ctx context.Context, tx *sql.Tx, timestamp string, batch []models.ListingRecord) error {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]any, 0, len(batch)*3)

	for _, r := range batch {
		valueStrings = append(valueStrings, "(?, ?, ?)")
		valueArgs = append(valueArgs, timestamp, r.Name, r.AvailableUnits)
	}

	query := s.dialect.rebind(fmt.Sprintf(
		`INSERT INTO project_units (timestamp, project_name, available_units) VALUES %s`,
		strings.Join(valueStrings, ", ")))

	if _, err := tx.ExecContext(ctx, query, valueArgs...); err != nil {
		return fmt.Errorf("%s: insert project rows: %w", s.dialect.name, err)
	}
	return nil
}

// ReadLatestSnapshot returns the most recently written snapshot.
func (s *SQLStore) ReadLatestSnapshot(ctx context.Context) (*models.Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT timestamp, available_units, total_projects, details FROM snapshots ORDER BY id DESC LIMIT 1`)
	return s.scanSnapshot(row)
}

// ReadSnapshotBefore returns the newest snapshot with a timestamp before the given one.
func (s *SQLStore) ReadSnapshotBefore(ctx context.Context, timestamp string) (*models.Snapshot, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.rebind(
		`SELECT timestamp, available_units, total_projects, details FROM snapshots
		WHERE timestamp < ? ORDER BY timestamp DESC, id DESC LIMIT 1`), timestamp)
	return s.scanSnapshot(row)
}

func (s *SQLStore) scanSnapshot(row *sql.Row) (*models.Snapshot, error) {
	var (
		snap    models.Snapshot
		details []byte
	)
	err := row.Scan(&snap.Timestamp, &snap.TotalAvailableUnits, &snap.TotalProjects, &details)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: read snapshot: %w", s.dialect.name, err)
	}

	var doc detailsDoc
	if len(details) > 0 {
		if err := json.Unmarshal(details, &doc); err != nil {
			// The envelope totals remain usable without the per-project detail.
			s.logger.Warn("[storage] %s: snapshot %s has unreadable details: %v", s.dialect.name, snap.Timestamp, err)
		}
	}
	snap.Records = doc.Properties
	if snap.Records == nil {
		snap.Records = []models.ListingRecord{}
	}
	return &snap, nil
}

// ListSnapshotSummaries returns every snapshot envelope in chronological order.
func (s *SQLStore) ListSnapshotSummaries(ctx context.Context) ([]models.SnapshotSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT timestamp, available_units, total_projects FROM snapshots ORDER BY timestamp ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("%s: list snapshots: %w", s.dialect.name, err)
	}
	defer rows.Close()

	out := []models.SnapshotSummary{}
	for rows.Next() {
		var sum models.SnapshotSummary
		if err := rows.Scan(&sum.Timestamp, &sum.AvailableUnits, &sum.TotalProjects); err != nil {
			return nil, fmt.Errorf("%s: scan snapshot: %w", s.dialect.name, err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// ListProjectNames returns every project ever stored, sorted.
func (s *SQLStore) ListProjectNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT project_name FROM project_units ORDER BY project_name ASC`)
	if err != nil {
		return nil, fmt.Errorf("%s: list projects: %w", s.dialect.name, err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("%s: scan project: %w", s.dialect.name, err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// ReadProjectHistory returns one project's unit counts in chronological order.
func (s *SQLStore) ReadProjectHistory(ctx context.Context, name string) ([]models.ProjectPoint, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(
		`SELECT timestamp, available_units FROM project_units
		WHERE project_name = ? ORDER BY timestamp ASC, id ASC`), name)
	if err != nil {
		return nil, fmt.Errorf("%s: project history: %w", s.dialect.name, err)
	}
	defer rows.Close()

	out := []models.ProjectPoint{}
	for rows.Next() {
		var p models.ProjectPoint
		if err := rows.Scan(&p.Timestamp, &p.AvailableUnits); err != nil {
			return nil, fmt.Errorf("%s: scan history: %w", s.dialect.name, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ReadLatestPerProject returns the project rows of the most recent write, sorted by name.
func (s *SQLStore) ReadLatestPerProject(ctx context.Context) ([]models.ProjectUnits, error) {
	var latest string
	err := s.db.QueryRowContext(ctx,
		`SELECT timestamp FROM project_units ORDER BY id DESC LIMIT 1`).Scan(&latest)
	if errors.Is(err, sql.ErrNoRows) {
		return []models.ProjectUnits{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: latest project timestamp: %w", s.dialect.name, err)
	}

	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(
		`SELECT project_name, available_units FROM project_units
		WHERE timestamp = ? ORDER BY project_name ASC`), latest)
	if err != nil {
		return nil, fmt.Errorf("%s: latest projects: %w", s.dialect.name, err)
	}
	defer rows.Close()

	out := []models.ProjectUnits{}
	for rows.Next() {
		var p models.ProjectUnits
		if err := rows.Scan(&p.Name, &p.AvailableUnits); err != nil {
			return nil, fmt.Errorf("%s: scan project: %w", s.dialect.name, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Close closes the underlying database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
