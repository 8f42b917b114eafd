package status

import (
	"context"
	"fmt"

	"github.com/webguard/webguard/internal/domain"
	"github.com/webguard/webguard/internal/store"
)

// SiteSummary is the embedded view the client reads for each site.
type SiteSummary struct {
	domain.Site
	Status           domain.SiteStatus      `json:"status"`
	DefacementStatus domain.DefacementState `json:"defacement_status"`
	SSLInfo          *domain.SSLInfo        `json:"ssl_info"`
	UptimePercent    *float64               `json:"uptime_percentage"`
}

// Aggregator reads check history and projects derived status. It holds no
// state of its own beyond request scope.
type Aggregator struct {
	store store.Store
	th    Thresholds
}

func NewAggregator(st store.Store, th Thresholds) *Aggregator {
	return &Aggregator{store: st, th: th}
}

func (a *Aggregator) window(ctx context.Context, id domain.SiteID, n int) ([]domain.CheckRecord, error) {
	return a.store.History(ctx, id, domain.CheckUptime, n)
}

// SiteStatus recomputes the derived status for one site.
func (a *Aggregator) SiteStatus(ctx context.Context, site *domain.Site) (domain.SiteStatus, error) {
	n := a.th.RecentWindow
	if n < 1 {
		n = 1
	}
	window, err := a.window(ctx, site.ID, n)
	if err != nil {
		return domain.StatusUnknown, fmt.Errorf("uptime window: %w", err)
	}
	return ForSite(site, window, a.th), nil
}

// Summarize builds the full per-site view: status, defacement state, SSL
// snapshot and uptime percentage.
func (a *Aggregator) Summarize(ctx context.Context, site *domain.Site) (*SiteSummary, error) {
	st, err := a.SiteStatus(ctx, site)
	if err != nil {
		return nil, err
	}

	baseline, err := a.store.GetBaseline(ctx, site.ID)
	if err != nil {
		return nil, fmt.Errorf("baseline: %w", err)
	}
	inc, err := a.store.LatestIncident(ctx, site.ID, domain.IncidentDefacement)
	if err != nil {
		return nil, fmt.Errorf("incident: %w", err)
	}
	ssl, err := a.store.GetSSLInfo(ctx, site.ID)
	if err != nil {
		return nil, fmt.Errorf("ssl info: %w", err)
	}

	sum := &SiteSummary{
		Site:             *site,
		Status:           st,
		DefacementStatus: Defacement(site, baseline, inc),
		SSLInfo:          ssl,
	}

	uw, err := a.window(ctx, site.ID, a.th.UptimeWindow)
	if err != nil {
		return nil, fmt.Errorf("uptime history: %w", err)
	}
	if pct, ok := UptimePercent(uw); ok {
		sum.UptimePercent = &pct
	}
	return sum, nil
}

// Overview tallies SiteStatus across all registered sites. Counts are
// recomputed from the same history snapshot the per-site list uses; there
// is no separate counter to drift.
func (a *Aggregator) Overview(ctx context.Context) (domain.OverviewStats, error) {
	sites, err := a.store.List(ctx)
	if err != nil {
		return domain.OverviewStats{}, fmt.Errorf("list sites: %w", err)
	}
	statuses := make([]domain.SiteStatus, 0, len(sites))
	for i := range sites {
		st, err := a.SiteStatus(ctx, &sites[i])
		if err != nil {
			return domain.OverviewStats{}, err
		}
		statuses = append(statuses, st)
	}
	return Tally(statuses), nil
}
