// services/freshness.go
package services

import (
	"time"

	"github.com/gewnthar/nwpsync/config"
	"github.com/gewnthar/nwpsync/models"
)

// FreshnessPolicy decides whether a cached dataset must be replaced.
type FreshnessPolicy struct {
	// Window is how far behind the current hour a cache may have been
	// written and still count as current.
	Window time.Duration
}

// DefaultFreshnessPolicy uses config.DefaultStalenessWindow.
func DefaultFreshnessPolicy() FreshnessPolicy {
	return FreshnessPolicy{Window: config.DefaultStalenessWindow}
}

// NeedsDownload evaluates the rules in order and returns at the first match:
// missing cache, different run hour, written on another day, written before
// the staleness window, incomplete forecast range. local may be nil. Day and
// hour comparisons use now's location.
//
// The rules only ever err toward downloading again.
func (p FreshnessPolicy) NeedsDownload(local *models.LocalDataset, remote models.RemoteRun, maxForecastHour int, now time.Time) (bool, models.DecisionReason) {
	if local == nil {
		return true, models.ReasonAbsent
	}
	if local.RunHour != remote.Run.Hour() {
		return true, models.ReasonNewerRun
	}

	mod := local.ModTime.In(now.Location())
	my, mm, md := mod.Date()
	ny, nm, nd := now.Date()
	if my != ny || mm != nm || md != nd {
		return true, models.ReasonPreviousDay
	}

	windowHours := int(p.Window / time.Hour)
	if mod.Hour() < now.Hour()-windowHours {
		return true, models.ReasonOutsideWindow
	}

	if local.ForecastHour != maxForecastHour {
		return true, models.ReasonIncomplete
	}
	return false, models.ReasonFresh
}
