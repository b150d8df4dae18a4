package services

import (
	"testing"
	"time"

	"github.com/gewnthar/nwpsync/models"
)

func TestCandidateRunsSynoptic(t *testing.T) {
	now := time.Date(2026, 10, 19, 14, 20, 0, 0, time.UTC)
	m := models.ModelDescriptor{Cadence: []int{12, 0, 18, 6}, LookbackDays: 2}

	got := CandidateRuns(now, m)
	if len(got) != 8 {
		t.Fatalf("expected 8 candidates, got %d", len(got))
	}
	if got[0].String() != "20261019 18z" {
		t.Errorf("first candidate = %s", got[0])
	}
	if got[7].String() != "20261018 00z" {
		t.Errorf("last candidate = %s", got[7])
	}
	for i := 1; i < len(got); i++ {
		if !got[i].Time.Before(got[i-1].Time) {
			t.Errorf("candidates not strictly decreasing at %d: %s then %s", i, got[i-1], got[i])
		}
	}
	// the window spans exactly the lookback days
	if span := got[0].Time.Sub(got[7].Time); span != 42*time.Hour {
		t.Errorf("span = %v", span)
	}
}

func TestCandidateRunsUsesUTC(t *testing.T) {
	// 01:30 on the 20th in UTC+5 is still the 19th in UTC
	loc := time.FixedZone("UTC+5", 5*3600)
	now := time.Date(2026, 10, 20, 1, 30, 0, 0, loc)
	got := CandidateRuns(now, models.ModelDescriptor{Cadence: []int{0, 12}, LookbackDays: 1})
	if len(got) != 2 || got[0].String() != "20261019 12z" {
		t.Errorf("got %v", got)
	}
}

func TestCandidateRunsRolling(t *testing.T) {
	now := time.Date(2026, 10, 19, 2, 59, 0, 0, time.UTC)
	got := CandidateRuns(now, models.ModelDescriptor{RollingHours: 5})
	want := []string{"20261019 02z", "20261019 01z", "20261019 00z", "20261018 23z", "20261018 22z"}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i].String() != want[i] {
			t.Errorf("candidate %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestCandidateRunsRecomputedPerCall(t *testing.T) {
	m := models.ModelDescriptor{Cadence: []int{0}, LookbackDays: 1}
	a := CandidateRuns(time.Date(2026, 10, 19, 5, 0, 0, 0, time.UTC), m)
	b := CandidateRuns(time.Date(2026, 10, 20, 5, 0, 0, 0, time.UTC), m)
	if a[0].Time.Equal(b[0].Time) {
		t.Error("candidates must follow the supplied clock")
	}
}
