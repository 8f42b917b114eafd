package scheduler

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/webguard/webguard/internal/domain"
	"github.com/webguard/webguard/internal/store"
)

// CycleSummary is the outcome of one probe cycle: the records appended
// for each enabled check, in execution order.
type CycleSummary struct {
	SiteID     domain.SiteID       `json:"site_id"`
	Uptime     *domain.CheckRecord `json:"uptime,omitempty"`
	Defacement *domain.CheckRecord `json:"defacement,omitempty"`
	SSL        *domain.CheckRecord `json:"ssl,omitempty"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
}

// runCycle executes the enabled checks for one site: uptime, then
// defacement (only when the site responded), then ssl for https sites.
// Probe failures become failed records; only store failures that survive
// the retry budget surface as the cycle's error.
func (e *Engine) runCycle(ctx context.Context, site *domain.Site) (*CycleSummary, error) {
	start := time.Now()
	sum := &CycleSummary{SiteID: site.ID, StartedAt: start.UTC()}
	defer func() {
		sum.FinishedAt = time.Now().UTC()
		e.m.cycleDuration.Observe(time.Since(start).Seconds())
		e.m.cyclesRun.Inc()
	}()

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	// uptime
	rec := e.probeUptime(ctx, site)
	keep(e.append(ctx, rec))
	sum.Uptime = rec

	// defacement only makes sense against a page the site actually served
	if site.DefacementEnabled && rec.Outcome == domain.OutcomeSuccess {
		if dRec := e.probeDefacement(ctx, site); dRec != nil {
			keep(e.append(ctx, dRec))
			sum.Defacement = dRec
		}
	}

	if site.SSLEnabled && strings.HasPrefix(site.URL, "https://") {
		sRec, info := e.probeSSL(ctx, site)
		keep(e.append(ctx, sRec))
		sum.SSL = sRec
		if info != nil {
			keep(store.WithRetry(ctx, e.cfg.StoreRetryAttempts, e.cfg.StoreRetryBackoff,
				func(ctx context.Context) error { return e.store.PutSSLInfo(ctx, info) }))
		}
	}

	if e.alerter != nil {
		e.alerter.ProcessCycle(ctx, site, sum)
	}
	return sum, firstErr
}

func (e *Engine) append(ctx context.Context, rec *domain.CheckRecord) error {
	if rec == nil {
		return nil
	}
	err := store.WithRetry(ctx, e.cfg.StoreRetryAttempts, e.cfg.StoreRetryBackoff,
		func(ctx context.Context) error { return e.store.Append(ctx, rec) })
	if err != nil {
		e.m.storeErrors.Inc()
		e.log.Warn("store_append_error",
			zap.String("site_id", string(rec.SiteID)),
			zap.String("check_type", string(rec.Type)),
			zap.Error(err),
		)
	}
	return err
}

func (e *Engine) probeUptime(ctx context.Context, site *domain.Site) *domain.CheckRecord {
	cctx, cancel := context.WithTimeout(ctx, e.cfg.ProbeTimeout)
	defer cancel()

	out := e.uptime.Check(cctx, site.URL)
	rec := &domain.CheckRecord{
		SiteID:    site.ID,
		Type:      domain.CheckUptime,
		Outcome:   domain.OutcomeFailure,
		Reason:    out.Reason,
		Message:   out.Message,
		CheckedAt: time.Now().UTC(),
	}
	rt := out.ResponseTimeMS
	rec.ResponseTimeMS = &rt
	if out.StatusCode != 0 {
		sc := out.StatusCode
		rec.HTTPStatus = &sc
	}
	if out.Success {
		rec.Outcome = domain.OutcomeSuccess
	} else {
		e.m.probeFailures.WithLabelValues(string(domain.CheckUptime)).Inc()
	}
	e.log.Debug("uptime_checked",
		zap.String("site_id", string(site.ID)),
		zap.String("url", site.URL),
		zap.Bool("up", out.Success),
		zap.Int("status", out.StatusCode),
		zap.Int64("latency_ms", out.ResponseTimeMS),
	)
	return rec
}

// probeDefacement returns nil when the content fetch failed: a missing
// sample defers classification, it is not evidence of drift.
func (e *Engine) probeDefacement(ctx context.Context, site *domain.Site) *domain.CheckRecord {
	cctx, cancel := context.WithTimeout(ctx, e.cfg.ProbeTimeout)
	defer cancel()

	out := e.pages.Check(cctx, site.URL)
	if !out.Success {
		e.m.probeFailures.WithLabelValues(string(domain.CheckDefacement)).Inc()
		e.log.Debug("content_fetch_failed",
			zap.String("site_id", string(site.ID)),
			zap.String("reason", string(out.Reason)),
			zap.String("message", out.Message),
		)
		return nil
	}

	now := time.Now().UTC()
	verdict, err := e.detector.Evaluate(ctx, site.ID, out.Fingerprint, now)
	if err != nil {
		e.log.Warn("defacement_evaluate_error",
			zap.String("site_id", string(site.ID)),
			zap.Error(err),
		)
		return nil
	}

	rec := &domain.CheckRecord{
		SiteID:      site.ID,
		Type:        domain.CheckDefacement,
		Outcome:     domain.OutcomeSuccess,
		Fingerprint: out.Fingerprint,
		CheckedAt:   now,
	}
	if verdict.State == domain.DefacementDetected {
		rec.Outcome = domain.OutcomeFailure
		rec.Message = "content fingerprint mismatch"
	} else if verdict.NewBaseline {
		rec.Message = "baseline captured"
	}
	return rec
}

func (e *Engine) probeSSL(ctx context.Context, site *domain.Site) (*domain.CheckRecord, *domain.SSLInfo) {
	cctx, cancel := context.WithTimeout(ctx, e.cfg.ProbeTimeout)
	defer cancel()

	out := e.certs.Check(cctx, site.URL)
	now := time.Now().UTC()
	rec := &domain.CheckRecord{
		SiteID:    site.ID,
		Type:      domain.CheckSSL,
		Outcome:   domain.OutcomeFailure,
		Reason:    out.Reason,
		Message:   out.Message,
		CheckedAt: now,
	}
	if !out.Success {
		e.m.probeFailures.WithLabelValues(string(domain.CheckSSL)).Inc()
		return rec, nil
	}

	rec.Outcome = domain.OutcomeSuccess
	expiry := out.NotAfter
	days := out.DaysUntilExpiry
	rec.ExpiresAt = &expiry
	rec.DaysUntilExpiry = &days

	info := &domain.SSLInfo{
		SiteID:          site.ID,
		Issuer:          out.Issuer,
		Subject:         out.Subject,
		ValidFrom:       out.NotBefore,
		ValidTo:         out.NotAfter,
		DaysUntilExpiry: out.DaysUntilExpiry,
		LastChecked:     now,
	}
	return rec, info
}
