package defacement

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/webguard/webguard/internal/domain"
	"github.com/webguard/webguard/internal/probe"
	"github.com/webguard/webguard/internal/store/memory"
)

type fakePages struct {
	out probe.ContentResult
}

func (f *fakePages) Check(_ context.Context, _ string) probe.ContentResult { return f.out }

func newDetector(pages probe.ContentChecker) (*Detector, *memory.Store) {
	st := memory.New()
	return New(st, st, pages, zap.NewNop()), st
}

func TestEvaluate_FirstCaptureBecomesBaseline(t *testing.T) {
	d, st := newDetector(&fakePages{})
	id := domain.NewSiteID()

	out, err := d.Evaluate(context.Background(), id, "fp-1", time.Now())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if out.State != domain.DefacementClean || !out.NewBaseline {
		t.Fatalf("want clean + new baseline, got %+v", out)
	}

	b, _ := st.GetBaseline(context.Background(), id)
	if b == nil || b.Fingerprint != "fp-1" {
		t.Fatalf("baseline not stored: %+v", b)
	}
}

func TestEvaluate_MatchStaysClean(t *testing.T) {
	d, _ := newDetector(&fakePages{})
	id := domain.NewSiteID()
	ctx := context.Background()

	if _, err := d.Evaluate(ctx, id, "fp-1", time.Now()); err != nil {
		t.Fatal(err)
	}
	out, err := d.Evaluate(ctx, id, "fp-1", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if out.State != domain.DefacementClean || out.NewBaseline {
		t.Fatalf("want clean without re-capture, got %+v", out)
	}
}

func TestEvaluate_MismatchOpensOneIncident(t *testing.T) {
	d, st := newDetector(&fakePages{})
	id := domain.NewSiteID()
	ctx := context.Background()

	if _, err := d.Evaluate(ctx, id, "fp-1", time.Now()); err != nil {
		t.Fatal(err)
	}
	out, err := d.Evaluate(ctx, id, "fp-2", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if out.State != domain.DefacementDetected {
		t.Fatalf("want detected, got %+v", out)
	}

	inc, _ := st.LatestIncident(ctx, id, domain.IncidentDefacement)
	if !inc.Open() {
		t.Fatalf("want open incident, got %+v", inc)
	}
	if inc.BaselineFingerprint != "fp-1" || inc.CurrentFingerprint != "fp-2" {
		t.Fatalf("incident evidence wrong: %+v", inc)
	}

	// a second mismatch touches the incident instead of duplicating it
	later := time.Now().Add(time.Minute)
	if _, err := d.Evaluate(ctx, id, "fp-3", later); err != nil {
		t.Fatal(err)
	}
	inc2, _ := st.LatestIncident(ctx, id, domain.IncidentDefacement)
	if inc2.ID != inc.ID {
		t.Fatalf("mismatch while detected must not open a second incident")
	}
	if !inc2.LastSeenAt.After(inc.LastSeenAt) {
		t.Fatalf("want last_seen_at advanced, got %v", inc2.LastSeenAt)
	}
}

func TestEvaluate_RevertedContentStaysDetected(t *testing.T) {
	d, _ := newDetector(&fakePages{})
	id := domain.NewSiteID()
	ctx := context.Background()

	d.Evaluate(ctx, id, "fp-1", time.Now())
	d.Evaluate(ctx, id, "fp-2", time.Now())

	// content drifts back to the baseline: state must NOT self-clear
	out, err := d.Evaluate(ctx, id, "fp-1", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if out.State != domain.DefacementDetected {
		t.Fatalf("detected must persist until operator confirmation, got %+v", out)
	}
}

func TestConfirmFalsePositive_RebaselinesAndResolves(t *testing.T) {
	pages := &fakePages{out: probe.ContentResult{Success: true, Fingerprint: "fp-2"}}
	d, st := newDetector(pages)
	ctx := context.Background()

	site := &domain.Site{ID: domain.NewSiteID(), URL: "https://example.com"}
	d.Evaluate(ctx, site.ID, "fp-1", time.Now())
	d.Evaluate(ctx, site.ID, "fp-2", time.Now())

	b, err := d.ConfirmFalsePositive(ctx, site)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if b.Fingerprint != "fp-2" {
		t.Fatalf("want flagged content accepted as baseline, got %q", b.Fingerprint)
	}

	inc, _ := st.LatestIncident(ctx, site.ID, domain.IncidentDefacement)
	if inc.Open() {
		t.Fatalf("incident must be resolved by confirmation")
	}

	// subsequent match against the new baseline is clean again
	out, _ := d.Evaluate(ctx, site.ID, "fp-2", time.Now())
	if out.State != domain.DefacementClean {
		t.Fatalf("want clean after re-baseline, got %+v", out)
	}
}

func TestConfirmFalsePositive_NoIncident(t *testing.T) {
	d, _ := newDetector(&fakePages{out: probe.ContentResult{Success: true, Fingerprint: "x"}})
	site := &domain.Site{ID: domain.NewSiteID(), URL: "https://example.com"}

	_, err := d.ConfirmFalsePositive(context.Background(), site)
	if !errors.Is(err, domain.ErrNoActiveIncident) {
		t.Fatalf("want ErrNoActiveIncident, got %v", err)
	}
}

func TestConfirmFalsePositive_FetchFailureKeepsState(t *testing.T) {
	pages := &fakePages{out: probe.ContentResult{Success: true, Fingerprint: "fp-2"}}
	d, st := newDetector(pages)
	ctx := context.Background()

	site := &domain.Site{ID: domain.NewSiteID(), URL: "https://example.com"}
	d.Evaluate(ctx, site.ID, "fp-1", time.Now())
	d.Evaluate(ctx, site.ID, "fp-2", time.Now())

	pages.out = probe.ContentResult{Success: false, Message: "HTTP 503"}
	if _, err := d.ConfirmFalsePositive(ctx, site); err == nil {
		t.Fatalf("want error when the re-fetch fails")
	}

	// old baseline and open incident both stand
	b, _ := st.GetBaseline(ctx, site.ID)
	if b.Fingerprint != "fp-1" {
		t.Fatalf("baseline must be unchanged, got %q", b.Fingerprint)
	}
	inc, _ := st.LatestIncident(ctx, site.ID, domain.IncidentDefacement)
	if !inc.Open() {
		t.Fatalf("incident must stay open on failed confirmation")
	}
}
