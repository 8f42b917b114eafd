package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/webguard/webguard/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := New(filepath.Join(t.TempDir(), "webguard.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestSiteRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	s := &domain.Site{
		URL:               "https://example.com",
		DisplayName:       "Example",
		MonitoringEnabled: true,
		CheckInterval:     120,
		DefacementEnabled: true,
		SSLEnabled:        true,
	}
	require.NoError(t, st.Add(ctx, s))
	require.NotEmpty(t, s.ID)

	got, err := st.Get(ctx, s.ID)
	require.NoError(t, err)
	require.Equal(t, s.URL, got.URL)
	require.Equal(t, 120, got.CheckInterval)
	require.True(t, got.MonitoringEnabled)

	byURL, err := st.GetByURL(ctx, s.URL)
	require.NoError(t, err)
	require.Equal(t, s.ID, byURL.ID)

	dup := &domain.Site{URL: "https://example.com"}
	require.ErrorIs(t, st.Add(ctx, dup), domain.ErrDuplicateSite)

	_, err = st.Get(ctx, domain.SiteID("missing"))
	require.ErrorIs(t, err, domain.ErrSiteNotFound)

	got.DisplayName = "Renamed"
	got.MonitoringEnabled = false
	require.NoError(t, st.Update(ctx, got))
	again, err := st.Get(ctx, s.ID)
	require.NoError(t, err)
	require.Equal(t, "Renamed", again.DisplayName)
	require.False(t, again.MonitoringEnabled)
}

func TestChecksAppendOnly(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	s := &domain.Site{URL: "https://example.com"}
	require.NoError(t, st.Add(ctx, s))

	base := time.Now().UTC().Add(-time.Hour)
	lat := int64(42)
	code := 200
	for i := 0; i < 4; i++ {
		outcome := domain.OutcomeSuccess
		if i == 2 {
			outcome = domain.OutcomeFailure
		}
		require.NoError(t, st.Append(ctx, &domain.CheckRecord{
			SiteID:         s.ID,
			Type:           domain.CheckUptime,
			Outcome:        outcome,
			ResponseTimeMS: &lat,
			HTTPStatus:     &code,
			CheckedAt:      base.Add(time.Duration(i) * time.Minute),
		}))
	}

	latest, err := st.Latest(ctx, s.ID, domain.CheckUptime)
	require.NoError(t, err)
	require.NotNil(t, latest)
	require.Equal(t, domain.OutcomeSuccess, latest.Outcome)
	require.NotNil(t, latest.ResponseTimeMS)
	require.EqualValues(t, 42, *latest.ResponseTimeMS)

	hist, err := st.History(ctx, s.ID, domain.CheckUptime, 2)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	require.True(t, hist[0].CheckedAt.After(hist[1].CheckedAt))

	none, err := st.Latest(ctx, s.ID, domain.CheckSSL)
	require.NoError(t, err)
	require.Nil(t, none)
}

func TestBaselineAndIncidentLifecycle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	s := &domain.Site{URL: "https://example.com"}
	require.NoError(t, st.Add(ctx, s))

	b, err := st.GetBaseline(ctx, s.ID)
	require.NoError(t, err)
	require.Nil(t, b)

	require.NoError(t, st.SetBaseline(ctx, &domain.Baseline{SiteID: s.ID, Fingerprint: "fp-1"}, false))

	inc := &domain.Incident{
		SiteID:              s.ID,
		Type:                domain.IncidentDefacement,
		Severity:            "high",
		BaselineFingerprint: "fp-1",
		CurrentFingerprint:  "fp-2",
	}
	require.NoError(t, st.OpenIncident(ctx, inc))
	require.NotZero(t, inc.ID)

	seen := time.Now().UTC().Add(time.Minute)
	require.NoError(t, st.TouchIncident(ctx, inc.ID, seen))
	got, err := st.LatestIncident(ctx, s.ID, domain.IncidentDefacement)
	require.NoError(t, err)
	require.True(t, got.Open())
	require.WithinDuration(t, seen, got.LastSeenAt, time.Second)

	// replace-and-resolve is one transaction
	require.NoError(t, st.SetBaseline(ctx, &domain.Baseline{SiteID: s.ID, Fingerprint: "fp-2"}, true))

	b, err = st.GetBaseline(ctx, s.ID)
	require.NoError(t, err)
	require.Equal(t, "fp-2", b.Fingerprint)

	got, err = st.LatestIncident(ctx, s.ID, domain.IncidentDefacement)
	require.NoError(t, err)
	require.False(t, got.Open())
}

func TestSSLInfoReplaceOnWrite(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	s := &domain.Site{URL: "https://example.com"}
	require.NoError(t, st.Add(ctx, s))

	none, err := st.GetSSLInfo(ctx, s.ID)
	require.NoError(t, err)
	require.Nil(t, none)

	now := time.Now().UTC()
	require.NoError(t, st.PutSSLInfo(ctx, &domain.SSLInfo{
		SiteID: s.ID, Issuer: "old", ValidFrom: now, ValidTo: now.AddDate(0, 3, 0), DaysUntilExpiry: 90,
	}))
	require.NoError(t, st.PutSSLInfo(ctx, &domain.SSLInfo{
		SiteID: s.ID, Issuer: "new", ValidFrom: now, ValidTo: now.AddDate(0, 1, 0), DaysUntilExpiry: 30,
	}))

	info, err := st.GetSSLInfo(ctx, s.ID)
	require.NoError(t, err)
	require.Equal(t, "new", info.Issuer)
	require.Equal(t, 30, info.DaysUntilExpiry)
}

func TestDeleteCascades(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	s := &domain.Site{URL: "https://example.com"}
	require.NoError(t, st.Add(ctx, s))
	require.NoError(t, st.Append(ctx, &domain.CheckRecord{
		SiteID: s.ID, Type: domain.CheckUptime, Outcome: domain.OutcomeSuccess,
	}))
	require.NoError(t, st.SetBaseline(ctx, &domain.Baseline{SiteID: s.ID, Fingerprint: "fp"}, false))
	require.NoError(t, st.OpenIncident(ctx, &domain.Incident{SiteID: s.ID, Type: domain.IncidentDefacement, Severity: "high"}))
	require.NoError(t, st.PutSSLInfo(ctx, &domain.SSLInfo{SiteID: s.ID, ValidFrom: time.Now(), ValidTo: time.Now()}))

	require.NoError(t, st.Delete(ctx, s.ID))

	hist, err := st.History(ctx, s.ID, "", 0)
	require.NoError(t, err)
	require.Empty(t, hist)

	b, err := st.GetBaseline(ctx, s.ID)
	require.NoError(t, err)
	require.Nil(t, b)

	inc, err := st.LatestIncident(ctx, s.ID, domain.IncidentDefacement)
	require.NoError(t, err)
	require.Nil(t, inc)

	require.ErrorIs(t, st.Delete(ctx, s.ID), domain.ErrSiteNotFound)
}
