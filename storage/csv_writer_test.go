package storage

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/summerlia/zhuhaibay/models"
)

func TestCSVArchiveAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive", "presale.csv")
	total := 40

	for i, ts := range []string{"2026-01-01T09:00:00.000000Z", "2026-01-02T09:00:00.000000Z"} {
		a, err := NewCSVArchive(path)
		if err != nil {
			t.Fatalf("open #%d: %v", i, err)
		}
		snap := snapshotAt(ts, models.ListingRecord{Name: "Lakeview", AvailableUnits: 7, TotalUnits: &total})
		if err := a.Append(snap); err != nil {
			t.Fatalf("append #%d: %v", i, err)
		}
		if err := a.Close(); err != nil {
			t.Fatalf("close #%d: %v", i, err)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	// One header, then one row per append.
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3: %v", len(rows), rows)
	}
	if rows[0][0] != "timestamp" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[2][1] != "Lakeview" || rows[2][2] != "7" || rows[2][3] != "40" {
		t.Errorf("row = %v", rows[2])
	}
}
