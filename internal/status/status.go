// Package status derives site health from check history. Everything here
// is a projection over immutable CheckRecords: nothing is stored, so a
// restart or crash can never leave derived state out of sync.
package status

import (
	"github.com/webguard/webguard/internal/domain"
)

type Thresholds struct {
	// LatencyWarnMS flags a reachable site as warning when its latest
	// response took longer than this.
	LatencyWarnMS int64
	// RecentWindow is how many recent uptime checks feed the warning rule.
	RecentWindow int
	// UptimeWindow is how many recent uptime checks feed the uptime
	// percentage.
	UptimeWindow int
}

func DefaultThresholds() Thresholds {
	return Thresholds{LatencyWarnMS: 2000, RecentWindow: 5, UptimeWindow: 100}
}

// ForSite derives SiteStatus from the recent uptime window, newest first.
// Identical history always yields the identical status.
func ForSite(site *domain.Site, window []domain.CheckRecord, th Thresholds) domain.SiteStatus {
	if site != nil && !site.MonitoringEnabled {
		return domain.StatusUnknown
	}
	if len(window) == 0 {
		return domain.StatusUnknown
	}

	latest := window[0]
	if latest.Outcome != domain.OutcomeSuccess {
		return domain.StatusOffline
	}
	if latest.ResponseTimeMS != nil && *latest.ResponseTimeMS > th.LatencyWarnMS {
		return domain.StatusWarning
	}

	n := th.RecentWindow
	if n <= 0 || n > len(window) {
		n = len(window)
	}
	for _, r := range window[:n] {
		if r.Outcome != domain.OutcomeSuccess {
			// reachable now, but the recent window is not clean
			return domain.StatusWarning
		}
	}
	return domain.StatusOnline
}

// Defacement derives the DefacementState surfaced to consumers.
func Defacement(site *domain.Site, baseline *domain.Baseline, inc *domain.Incident) domain.DefacementState {
	if site != nil && !site.DefacementEnabled {
		// underlying state is preserved in the store; reporting is muted
		return domain.DefacementUnknown
	}
	if inc.Open() {
		return domain.DefacementDetected
	}
	if baseline == nil {
		return domain.DefacementPending
	}
	return domain.DefacementClean
}

// UptimePercent is successes over total across the supplied window.
// ok is false when there is no history to aggregate.
func UptimePercent(window []domain.CheckRecord) (pct float64, ok bool) {
	if len(window) == 0 {
		return 0, false
	}
	var succ int
	for _, r := range window {
		if r.Outcome == domain.OutcomeSuccess {
			succ++
		}
	}
	return 100 * float64(succ) / float64(len(window)), true
}

// Tally folds per-site statuses into overview counts. Sites with no
// history land in the offline bucket, matching the client contract of
// {total, online, warning, offline}.
func Tally(statuses []domain.SiteStatus) domain.OverviewStats {
	out := domain.OverviewStats{Total: len(statuses)}
	for _, s := range statuses {
		switch s {
		case domain.StatusOnline:
			out.Online++
		case domain.StatusWarning:
			out.Warning++
		default:
			out.Offline++
		}
	}
	return out
}
