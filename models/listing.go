package models

import "time"

// TimestampLayout is how snapshot timestamps are rendered. It is fixed-width
// UTC so that lexical order matches chronological order in storage.
const TimestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// ListingRecord is one presale project extracted from the feed.
type ListingRecord struct {
	Name           string `json:"name"`
	AvailableUnits int    `json:"available_units"`
	TotalUnits     *int   `json:"total_units,omitempty"`
	Developer      string `json:"developer,omitempty"`
	District       string `json:"district,omitempty"`
}

// Snapshot is one full capture of the feed, aggregated into totals.
type Snapshot struct {
	Timestamp           string          `json:"timestamp"`
	TotalProjects       int             `json:"total_projects"`
	TotalAvailableUnits int             `json:"total_available_units"`
	Records             []ListingRecord `json:"properties"`
}

// Time parses the snapshot timestamp. The zero time is returned when it is malformed.
func (s *Snapshot) Time() time.Time {
	t, err := time.Parse(TimestampLayout, s.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}

// SnapshotSummary is a stored snapshot without its per-project detail.
type SnapshotSummary struct {
	Timestamp      string `json:"timestamp"`
	AvailableUnits int    `json:"available_units"`
	TotalProjects  int    `json:"total_projects"`
}

// ProjectPoint is one project's unit count at one snapshot.
type ProjectPoint struct {
	Timestamp      string `json:"timestamp"`
	AvailableUnits int    `json:"available_units"`
}

// ProjectUnits is one project's unit count in the latest snapshot.
type ProjectUnits struct {
	Name           string `json:"name"`
	AvailableUnits int    `json:"available_units"`
}

// InsightReport holds the computed analytics over the latest snapshots.
type InsightReport struct {
	Timestamp          string         `json:"timestamp"`
	TotalProjects      int            `json:"total_projects"`
	TotalUnits         int            `json:"total_available_units"`
	PreviousTimestamp  string         `json:"previous_timestamp,omitempty"`
	UnitsDelta         int            `json:"units_delta"`
	ProjectsDelta      int            `json:"projects_delta"`
	TopProjects        []ProjectUnits `json:"top_projects"`
	NewProjects        []string       `json:"new_projects"`
	RemovedProjects    []string       `json:"removed_projects"`
	UnitsByDistrict    map[string]int `json:"units_by_district"`
	HistoryPoints      int            `json:"history_points"`
	PeakUnits          int            `json:"peak_units"`
	PeakUnitsTimestamp string         `json:"peak_units_timestamp,omitempty"`
}
