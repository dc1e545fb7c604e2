package services

import (
	"fmt"
	"time"

	"github.com/summerlia/zhuhaibay/models"
)

// Aggregate builds a snapshot stamped at the given time. An empty record set
// is an error: an empty feed and an outage look the same upstream.
func Aggregate(records []models.ListingRecord, at time.Time) (*models.Snapshot, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("aggregate: %w", models.ErrNoUsableData)
	}

	snap := &models.Snapshot{
		Timestamp:     at.UTC().Format(models.TimestampLayout),
		TotalProjects: len(records),
		Records:       append([]models.ListingRecord(nil), records...),
	}
	for _, r := range records {
		snap.TotalAvailableUnits += r.AvailableUnits
	}
	return snap, nil
}
