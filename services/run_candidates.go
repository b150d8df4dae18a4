// services/run_candidates.go
package services

import (
	"sort"
	"time"

	"github.com/gewnthar/nwpsync/models"
)

// CandidateRuns lists the run times worth probing for a model, newest first.
// Synoptic models yield every cadence hour of today and the preceding
// LookbackDays-1 days. Analysis products without a cadence yield the trailing
// RollingHours hours ending at now. now is always supplied by the caller.
func CandidateRuns(now time.Time, m models.ModelDescriptor) []models.RunCandidate {
	now = now.UTC()

	if len(m.Cadence) == 0 {
		n := m.RollingHours
		if n <= 0 {
			n = 1
		}
		top := now.Truncate(time.Hour)
		out := make([]models.RunCandidate, 0, n)
		for i := 0; i < n; i++ {
			out = append(out, models.NewRunCandidate(top.Add(-time.Duration(i)*time.Hour)))
		}
		return out
	}

	days := m.LookbackDays
	if days <= 0 {
		days = 2
	}
	hours := sortedDesc(m.Cadence)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	out := make([]models.RunCandidate, 0, days*len(hours))
	for d := 0; d < days; d++ {
		day := today.AddDate(0, 0, -d)
		for _, h := range hours {
			out = append(out, models.NewRunCandidate(day.Add(time.Duration(h)*time.Hour)))
		}
	}
	return out
}

func sortedDesc(in []int) []int {
	out := append([]int(nil), in...)
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out
}
