// models/run.go
package models

import (
	"fmt"
	"time"
)

// RunCandidate is a hypothesized model initialization time (UTC).
type RunCandidate struct {
	Time time.Time
}

// NewRunCandidate truncates t to the hour in UTC.
func NewRunCandidate(t time.Time) RunCandidate {
	return RunCandidate{Time: t.UTC().Truncate(time.Hour)}
}

func (c RunCandidate) Hour() int { return c.Time.Hour() }

// Date returns the run date as YYYYMMDD.
func (c RunCandidate) Date() string { return c.Time.Format("20060102") }

func (c RunCandidate) String() string {
	return fmt.Sprintf("%s %02dz", c.Date(), c.Hour())
}

// RemoteRun is a run whose marker file was confirmed on the remote server.
// BaseURL is the prefix for every per-forecast-hour request of that run.
type RemoteRun struct {
	Run       RunCandidate
	BaseURL   string
	MarkerURL string
}

// LocalDataset describes what is already cached for one dataset key.
type LocalDataset struct {
	Path         string
	Filename     string
	RunHour      int
	ForecastHour int
	ModTime      time.Time
	Complete     bool // ForecastHour equals the expected maximum
}

// DecisionReason explains a DownloadDecision.
type DecisionReason string

const (
	ReasonAbsent        DecisionReason = "absent"
	ReasonNewerRun      DecisionReason = "newer_run"
	ReasonPreviousDay   DecisionReason = "previous_day"
	ReasonOutsideWindow DecisionReason = "outside_staleness_window"
	ReasonIncomplete    DecisionReason = "incomplete"
	ReasonForced        DecisionReason = "forced"
	ReasonFresh         DecisionReason = "fresh"
)

// DownloadDecision is the reconciler's verdict plus the run that justified it.
type DownloadDecision struct {
	Required bool           `json:"required"`
	Reason   DecisionReason `json:"reason"`
	Remote   RemoteRun      `json:"remote"`
	Path     string         `json:"path"`
}
