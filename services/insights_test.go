package services

import (
	"bytes"
	"strings"
	"testing"

	"github.com/summerlia/zhuhaibay/models"
	"github.com/summerlia/zhuhaibay/utils"
)

func sampleSnapshots() (latest, previous *models.Snapshot) {
	previous = &models.Snapshot{
		Timestamp:           "2026-01-01T09:00:00.000000Z",
		TotalProjects:       3,
		TotalAvailableUnits: 30,
		Records: []models.ListingRecord{
			{Name: "Lakeview", AvailableUnits: 10},
			{Name: "Harbour One", AvailableUnits: 15},
			{Name: "Old Town", AvailableUnits: 5},
		},
	}
	latest = &models.Snapshot{
		Timestamp:           "2026-01-02T09:00:00.000000Z",
		TotalProjects:       6,
		TotalAvailableUnits: 71,
		Records: []models.ListingRecord{
			{Name: "Lakeview", AvailableUnits: 8, District: "香洲区"},
			{Name: "Harbour One", AvailableUnits: 15, District: "香洲区"},
			{Name: "Sunrise Court", AvailableUnits: 20, District: "横琴"},
			{Name: "Garden Bay", AvailableUnits: 12, District: "斗门区"},
			{Name: "Pearl Tower", AvailableUnits: 15},
			{Name: "Tiny Lot", AvailableUnits: 1, District: "斗门区"},
		},
	}
	return latest, previous
}

func TestInsightTotalsAndDeltas(t *testing.T) {
	svc := NewInsightService(utils.Discard())
	latest, previous := sampleSnapshots()
	r := svc.Generate(latest, previous, nil)

	if r.TotalProjects != 6 || r.TotalUnits != 71 {
		t.Errorf("totals = %d/%d, want 6/71", r.TotalProjects, r.TotalUnits)
	}
	if r.UnitsDelta != 41 || r.ProjectsDelta != 3 {
		t.Errorf("deltas = %d/%d, want 41/3", r.UnitsDelta, r.ProjectsDelta)
	}
	if r.PreviousTimestamp != previous.Timestamp {
		t.Errorf("PreviousTimestamp = %q", r.PreviousTimestamp)
	}
}

func TestInsightTopProjects(t *testing.T) {
	svc := NewInsightService(utils.Discard())
	latest, _ := sampleSnapshots()
	r := svc.Generate(latest, nil, nil)

	want := []string{"Sunrise Court", "Harbour One", "Pearl Tower", "Garden Bay", "Lakeview"}
	if len(r.TopProjects) != len(want) {
		t.Fatalf("TopProjects: got %d, want %d", len(r.TopProjects), len(want))
	}
	for i, name := range want {
		if r.TopProjects[i].Name != name {
			t.Errorf("TopProjects[%d] = %q, want %q", i, r.TopProjects[i].Name, name)
		}
	}
}

func TestInsightNewAndRemovedProjects(t *testing.T) {
	svc := NewInsightService(utils.Discard())
	latest, previous := sampleSnapshots()
	r := svc.Generate(latest, previous, nil)

	if got := strings.Join(r.NewProjects, ","); got != "Garden Bay,Pearl Tower,Sunrise Court,Tiny Lot" {
		t.Errorf("NewProjects = %s", got)
	}
	if got := strings.Join(r.RemovedProjects, ","); got != "Old Town" {
		t.Errorf("RemovedProjects = %s", got)
	}
}

func TestInsightDistrictGrouping(t *testing.T) {
	svc := NewInsightService(utils.Discard())
	latest, _ := sampleSnapshots()
	r := svc.Generate(latest, nil, nil)

	if r.UnitsByDistrict["香洲区"] != 23 {
		t.Errorf("香洲区: got %d, want 23", r.UnitsByDistrict["香洲区"])
	}
	if r.UnitsByDistrict["斗门区"] != 13 {
		t.Errorf("斗门区: got %d, want 13", r.UnitsByDistrict["斗门区"])
	}
	if _, ok := r.UnitsByDistrict[""]; ok {
		t.Error("records without a district should not be grouped")
	}
}

func TestInsightHistoryPeak(t *testing.T) {
	svc := NewInsightService(utils.Discard())
	history := []models.SnapshotSummary{
		{Timestamp: "2026-01-01T09:00:00.000000Z", AvailableUnits: 30},
		{Timestamp: "2026-01-02T09:00:00.000000Z", AvailableUnits: 71},
		{Timestamp: "2026-01-03T09:00:00.000000Z", AvailableUnits: 50},
	}
	r := svc.Generate(nil, nil, history)

	if r.HistoryPoints != 3 || r.PeakUnits != 71 || r.PeakUnitsTimestamp != history[1].Timestamp {
		t.Errorf("history = %d points, peak %d at %s", r.HistoryPoints, r.PeakUnits, r.PeakUnitsTimestamp)
	}
}

func TestInsightEmptyInput(t *testing.T) {
	svc := NewInsightService(utils.Discard())
	r := svc.Generate(nil, nil, nil)
	if r.TotalProjects != 0 || len(r.TopProjects) != 0 || r.UnitsByDistrict == nil {
		t.Errorf("expected empty report, got %+v", r)
	}

	var buf bytes.Buffer
	svc.Print(&buf, r)
	if !strings.Contains(buf.String(), "No snapshot stored yet") {
		t.Errorf("empty report output:\n%s", buf.String())
	}
}

func TestInsightPrint(t *testing.T) {
	svc := NewInsightService(utils.Discard())
	latest, previous := sampleSnapshots()

	var buf bytes.Buffer
	svc.Print(&buf, svc.Generate(latest, previous, nil))
	out := buf.String()

	for _, want := range []string{"Sunrise Court", "+41", "Old Town", "香洲区"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}
