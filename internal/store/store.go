package store

import (
	"context"
	"time"

	"github.com/webguard/webguard/internal/domain"
)

// Ports for the persistence adapters. All adapters wrap
// I/O failures in domain.ErrStoreUnavailable so call sites can retry.

type SiteStore interface {
	Add(ctx context.Context, s *domain.Site) error
	Get(ctx context.Context, id domain.SiteID) (*domain.Site, error)
	GetByURL(ctx context.Context, url string) (*domain.Site, error)
	List(ctx context.Context) ([]domain.Site, error)
	Update(ctx context.Context, s *domain.Site) error
	// Delete removes the site and cascades its check history, baselines,
	// incidents and certificate snapshots. Retention of history for
	// deleted sites is deliberately not offered.
	Delete(ctx context.Context, id domain.SiteID) error
}

type CheckStore interface {
	Append(ctx context.Context, r *domain.CheckRecord) error
	// Latest returns nil, nil when no record of that type exists yet.
	Latest(ctx context.Context, id domain.SiteID, t domain.CheckType) (*domain.CheckRecord, error)
	// History returns records reverse-chronologically, newest first.
	// An empty CheckType means all types interleaved.
	History(ctx context.Context, id domain.SiteID, t domain.CheckType, limit int) ([]domain.CheckRecord, error)
}

type BaselineStore interface {
	// GetBaseline returns nil, nil when no baseline has been captured.
	GetBaseline(ctx context.Context, id domain.SiteID) (*domain.Baseline, error)
	// SetBaseline supersedes the current baseline. With resolveOpen set it
	// also resolves open defacement incidents in the same transaction, so
	// a false-positive confirmation can never be half applied.
	SetBaseline(ctx context.Context, b *domain.Baseline, resolveOpen bool) error
}

type IncidentStore interface {
	OpenIncident(ctx context.Context, inc *domain.Incident) error
	// LatestIncident returns nil, nil when the site has no incident of
	// that type.
	LatestIncident(ctx context.Context, id domain.SiteID, t domain.IncidentType) (*domain.Incident, error)
	TouchIncident(ctx context.Context, incidentID int64, seenAt time.Time) error
	ResolveIncidents(ctx context.Context, id domain.SiteID, t domain.IncidentType, at time.Time) error
}

type SSLStore interface {
	// PutSSLInfo replaces the previous snapshot for the site.
	PutSSLInfo(ctx context.Context, info *domain.SSLInfo) error
	// GetSSLInfo returns nil, nil when the site has never had an SSL check.
	GetSSLInfo(ctx context.Context, id domain.SiteID) (*domain.SSLInfo, error)
}

// Store is the full persistence surface the engine needs.
type Store interface {
	SiteStore
	CheckStore
	BaselineStore
	IncidentStore
	SSLStore
}
