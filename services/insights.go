package services

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/summerlia/zhuhaibay/models"
	"github.com/summerlia/zhuhaibay/utils"
)

const topProjectCount = 5

type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

// Generate summarises latest against the snapshot before it and the stored
// history. previous and history may be empty; latest nil yields an empty report.
func (s *InsightService) Generate(latest, previous *models.Snapshot, history []models.SnapshotSummary) *models.InsightReport {
	report := &models.InsightReport{
		TopProjects:     []models.ProjectUnits{},
		NewProjects:     []string{},
		RemovedProjects: []string{},
		UnitsByDistrict: make(map[string]int),
	}

	report.HistoryPoints = len(history)
	for _, h := range history {
		if report.PeakUnitsTimestamp == "" || h.AvailableUnits > report.PeakUnits {
			report.PeakUnits = h.AvailableUnits
			report.PeakUnitsTimestamp = h.Timestamp
		}
	}

	if latest == nil {
		return report
	}

	report.Timestamp = latest.Timestamp
	report.TotalProjects = latest.TotalProjects
	report.TotalUnits = latest.TotalAvailableUnits

	ranked := make([]models.ProjectUnits, 0, len(latest.Records))
	for _, r := range latest.Records {
		ranked = append(ranked, models.ProjectUnits{Name: r.Name, AvailableUnits: r.AvailableUnits})
		if r.District != "" {
			report.UnitsByDistrict[r.District] += r.AvailableUnits
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].AvailableUnits != ranked[j].AvailableUnits {
			return ranked[i].AvailableUnits > ranked[j].AvailableUnits
		}
		return ranked[i].Name < ranked[j].Name
	})
	if len(ranked) > topProjectCount {
		ranked = ranked[:topProjectCount]
	}
	report.TopProjects = ranked

	if previous == nil {
		return report
	}

	report.PreviousTimestamp = previous.Timestamp
	report.UnitsDelta = latest.TotalAvailableUnits - previous.TotalAvailableUnits
	report.ProjectsDelta = latest.TotalProjects - previous.TotalProjects

	before := projectSet(previous)
	now := projectSet(latest)
	for name := range now {
		if !before[name] {
			report.NewProjects = append(report.NewProjects, name)
		}
	}
	for name := range before {
		if !now[name] {
			report.RemovedProjects = append(report.RemovedProjects, name)
		}
	}
	sort.Strings(report.NewProjects)
	sort.Strings(report.RemovedProjects)

	return report
}

func projectSet(s *models.Snapshot) map[string]bool {
	set := make(map[string]bool, len(s.Records))
	for _, r := range s.Records {
		set[r.Name] = true
	}
	return set
}

func (s *InsightService) Print(w io.Writer, r *models.InsightReport) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  📊 ZHUHAI PRESALE INSIGHTS\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	// Overview
	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if r.Timestamp == "" {
		fmt.Fprintf(w, "  No snapshot stored yet\n")
		fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
		return
	}
	fmt.Fprintf(w, "  Snapshot        : %s\n", r.Timestamp)
	fmt.Fprintf(w, "  Projects        : \033[1m%d\033[0m\n", r.TotalProjects)
	fmt.Fprintf(w, "  Available units : \033[1m%d\033[0m\n", r.TotalUnits)
	fmt.Fprintln(w)

	// Change since previous
	fmt.Fprintf(w, "\033[1;33m  Since Previous Snapshot\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if r.PreviousTimestamp == "" {
		fmt.Fprintf(w, "  No earlier snapshot to compare\n")
	} else {
		fmt.Fprintf(w, "  Compared with   : %s\n", r.PreviousTimestamp)
		fmt.Fprintf(w, "  Units           : %s\n", signed(r.UnitsDelta))
		fmt.Fprintf(w, "  Projects        : %s\n", signed(r.ProjectsDelta))
		if len(r.NewProjects) > 0 {
			fmt.Fprintf(w, "  New             : %s\n", strings.Join(r.NewProjects, ", "))
		}
		if len(r.RemovedProjects) > 0 {
			fmt.Fprintf(w, "  Sold out/gone   : %s\n", strings.Join(r.RemovedProjects, ", "))
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Top %d Projects by Available Units\033[0m\n", topProjectCount)
	fmt.Fprintf(w, "  %s\n", thin)
	for i, p := range r.TopProjects {
		fmt.Fprintf(w, "  \033[1m%d.\033[0m %-40s \033[1;32m%d\033[0m\n", i+1, truncate(p.Name, 38), p.AvailableUnits)
	}
	fmt.Fprintln(w)

	// Units by district
	fmt.Fprintf(w, "\033[1;33m  Units by District\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.UnitsByDistrict) == 0 {
		fmt.Fprintf(w, "  No district data\n")
	} else {
		type districtUnits struct {
			district string
			units    int
		}
		var ds []districtUnits
		for d, u := range r.UnitsByDistrict {
			ds = append(ds, districtUnits{d, u})
		}
		sort.Slice(ds, func(i, j int) bool {
			if ds[i].units != ds[j].units {
				return ds[i].units > ds[j].units
			}
			return ds[i].district < ds[j].district
		})
		for _, d := range ds {
			fmt.Fprintf(w, "  %-30s %d\n", truncate(d.district, 28), d.units)
		}
	}

	if r.HistoryPoints > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "  %d snapshots stored, peak %d units at %s\n", r.HistoryPoints, r.PeakUnits, r.PeakUnitsTimestamp)
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

func signed(n int) string {
	if n > 0 {
		return fmt.Sprintf("+%d", n)
	}
	return fmt.Sprintf("%d", n)
}

// truncate shortens s to max runes.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
