// Package defacement implements the content-integrity state machine.
// Per site the state is one of no_baseline, clean, detected. The only
// exit from detected is an explicit operator false-positive confirmation;
// the detector never clears itself, even if content drifts back to the
// baseline.
package defacement

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/webguard/webguard/internal/domain"
	"github.com/webguard/webguard/internal/probe"
	"github.com/webguard/webguard/internal/store"
)

type Detector struct {
	baselines store.BaselineStore
	incidents store.IncidentStore
	pages     probe.ContentChecker
	log       *zap.Logger
}

func New(baselines store.BaselineStore, incidents store.IncidentStore, pages probe.ContentChecker, log *zap.Logger) *Detector {
	return &Detector{baselines: baselines, incidents: incidents, pages: pages, log: log}
}

// Outcome of one evaluation, used to fill the defacement CheckRecord.
type Outcome struct {
	State       domain.DefacementState
	Fingerprint string
	// NewBaseline is set when this evaluation captured the initial baseline.
	NewBaseline bool
}

// Evaluate processes one successful content probe. The caller must hold
// the site's exclusive token: baseline capture and incident bookkeeping
// race otherwise.
func (d *Detector) Evaluate(ctx context.Context, siteID domain.SiteID, fingerprint string, at time.Time) (Outcome, error) {
	baseline, err := d.baselines.GetBaseline(ctx, siteID)
	if err != nil {
		return Outcome{}, fmt.Errorf("get baseline: %w", err)
	}

	if baseline == nil {
		// first successful capture becomes the trusted baseline
		b := &domain.Baseline{SiteID: siteID, Fingerprint: fingerprint, CapturedAt: at}
		if err := d.baselines.SetBaseline(ctx, b, false); err != nil {
			return Outcome{}, fmt.Errorf("capture baseline: %w", err)
		}
		d.log.Info("baseline_captured",
			zap.String("site_id", string(siteID)),
			zap.String("fingerprint", fingerprint),
		)
		return Outcome{State: domain.DefacementClean, Fingerprint: fingerprint, NewBaseline: true}, nil
	}

	inc, err := d.incidents.LatestIncident(ctx, siteID, domain.IncidentDefacement)
	if err != nil {
		return Outcome{}, fmt.Errorf("latest incident: %w", err)
	}

	if fingerprint == baseline.Fingerprint {
		if inc.Open() {
			// matching content does NOT auto-clear a detected state; only
			// the operator can decide the drift was legitimate
			return Outcome{State: domain.DefacementDetected, Fingerprint: fingerprint}, nil
		}
		return Outcome{State: domain.DefacementClean, Fingerprint: fingerprint}, nil
	}

	if inc.Open() {
		// incident already open: update last-seen, don't duplicate
		if err := d.incidents.TouchIncident(ctx, inc.ID, at); err != nil {
			return Outcome{}, fmt.Errorf("touch incident: %w", err)
		}
		return Outcome{State: domain.DefacementDetected, Fingerprint: fingerprint}, nil
	}

	newInc := &domain.Incident{
		SiteID:              siteID,
		Type:                domain.IncidentDefacement,
		Severity:            "high",
		Description:         "Content fingerprint mismatch detected",
		BaselineFingerprint: baseline.Fingerprint,
		CurrentFingerprint:  fingerprint,
		DetectedAt:          at,
		LastSeenAt:          at,
	}
	if err := d.incidents.OpenIncident(ctx, newInc); err != nil {
		return Outcome{}, fmt.Errorf("open incident: %w", err)
	}
	d.log.Warn("defacement_detected",
		zap.String("site_id", string(siteID)),
		zap.String("baseline_fingerprint", baseline.Fingerprint),
		zap.String("current_fingerprint", fingerprint),
	)
	return Outcome{State: domain.DefacementDetected, Fingerprint: fingerprint}, nil
}

// ConfirmFalsePositive is the only transition out of detected: the
// currently flagged content is re-fetched, accepted as the new baseline,
// and the open incident is closed in the same store transaction. The
// caller must hold the site's exclusive token.
func (d *Detector) ConfirmFalsePositive(ctx context.Context, site *domain.Site) (*domain.Baseline, error) {
	inc, err := d.incidents.LatestIncident(ctx, site.ID, domain.IncidentDefacement)
	if err != nil {
		return nil, fmt.Errorf("latest incident: %w", err)
	}
	if !inc.Open() {
		return nil, domain.ErrNoActiveIncident
	}

	res := d.pages.Check(ctx, site.URL)
	if !res.Success {
		cause := domain.ErrProbeNetworkFailure
		if res.Reason == domain.ReasonTimeout {
			cause = domain.ErrProbeTimeout
		}
		return nil, fmt.Errorf("fetch current content: %w: %s", cause, res.Message)
	}

	b := &domain.Baseline{
		SiteID:      site.ID,
		Fingerprint: res.Fingerprint,
		CapturedAt:  time.Now().UTC(),
	}
	if err := d.baselines.SetBaseline(ctx, b, true); err != nil {
		return nil, fmt.Errorf("replace baseline: %w", err)
	}
	d.log.Info("false_positive_confirmed",
		zap.String("site_id", string(site.ID)),
		zap.String("new_fingerprint", res.Fingerprint),
	)
	return b, nil
}
