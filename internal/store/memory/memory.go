package memory

import (
	"context"
	"sync"
	"time"

	"github.com/webguard/webguard/internal/domain"
	"github.com/webguard/webguard/internal/store"
)

var _ store.Store = (*Store)(nil)

// Store keeps everything in process memory. Used by tests and for local
// runs without a database.
type Store struct {
	mu        sync.RWMutex
	sites     map[domain.SiteID]*domain.Site
	records   []*domain.CheckRecord
	baselines map[domain.SiteID]*domain.Baseline
	incidents []*domain.Incident
	ssl       map[domain.SiteID]*domain.SSLInfo

	nextRecordID   int64
	nextIncidentID int64
}

func New() *Store {
	return &Store{
		sites:     make(map[domain.SiteID]*domain.Site),
		records:   make([]*domain.CheckRecord, 0, 128),
		baselines: make(map[domain.SiteID]*domain.Baseline),
		ssl:       make(map[domain.SiteID]*domain.SSLInfo),
	}
}

// ---- SiteStore ----

func (m *Store) Add(ctx context.Context, s *domain.Site) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == "" {
		s.ID = domain.NewSiteID()
	}
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = now
	}
	for _, existing := range m.sites {
		if existing.URL == s.URL {
			return domain.ErrDuplicateSite
		}
	}
	cp := *s
	m.sites[s.ID] = &cp
	return nil
}

func (m *Store) Get(ctx context.Context, id domain.SiteID) (*domain.Site, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sites[id]
	if !ok {
		return nil, domain.ErrSiteNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *Store) GetByURL(ctx context.Context, url string) (*domain.Site, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sites {
		if s.URL == url {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrSiteNotFound
}

func (m *Store) List(ctx context.Context) ([]domain.Site, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Site, 0, len(m.sites))
	for _, s := range m.sites {
		out = append(out, *s)
	}
	// newest registrations first, matching the SQL adapters
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].CreatedAt.After(out[i].CreatedAt) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (m *Store) Update(ctx context.Context, s *domain.Site) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sites[s.ID]; !ok {
		return domain.ErrSiteNotFound
	}
	s.UpdatedAt = time.Now().UTC()
	cp := *s
	m.sites[s.ID] = &cp
	return nil
}

func (m *Store) Delete(ctx context.Context, id domain.SiteID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sites[id]; !ok {
		return domain.ErrSiteNotFound
	}
	delete(m.sites, id)
	delete(m.baselines, id)
	delete(m.ssl, id)

	kept := m.records[:0]
	for _, r := range m.records {
		if r.SiteID != id {
			kept = append(kept, r)
		}
	}
	m.records = kept

	keptInc := m.incidents[:0]
	for _, inc := range m.incidents {
		if inc.SiteID != id {
			keptInc = append(keptInc, inc)
		}
	}
	m.incidents = keptInc
	return nil
}

// ---- CheckStore ----

func (m *Store) Append(ctx context.Context, r *domain.CheckRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextRecordID++
	r.ID = m.nextRecordID
	if r.CheckedAt.IsZero() {
		r.CheckedAt = time.Now().UTC()
	}
	cp := *r
	m.records = append(m.records, &cp)
	return nil
}

func (m *Store) Latest(ctx context.Context, id domain.SiteID, t domain.CheckType) (*domain.CheckRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *domain.CheckRecord
	for _, r := range m.records {
		if r.SiteID != id || r.Type != t {
			continue
		}
		if latest == nil || r.CheckedAt.After(latest.CheckedAt) {
			latest = r
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (m *Store) History(ctx context.Context, id domain.SiteID, t domain.CheckType, limit int) ([]domain.CheckRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.CheckRecord, 0, limit)
	// records are appended in time order; walk backwards for newest first
	for i := len(m.records) - 1; i >= 0; i-- {
		r := m.records[i]
		if r.SiteID != id {
			continue
		}
		if t != "" && r.Type != t {
			continue
		}
		out = append(out, *r)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// ---- BaselineStore ----

func (m *Store) GetBaseline(ctx context.Context, id domain.SiteID) (*domain.Baseline, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.baselines[id]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (m *Store) SetBaseline(ctx context.Context, b *domain.Baseline, resolveOpen bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.CapturedAt.IsZero() {
		b.CapturedAt = time.Now().UTC()
	}
	cp := *b
	m.baselines[b.SiteID] = &cp
	if resolveOpen {
		now := time.Now().UTC()
		for _, inc := range m.incidents {
			if inc.SiteID == b.SiteID && inc.Type == domain.IncidentDefacement && inc.ResolvedAt == nil {
				at := now
				inc.ResolvedAt = &at
			}
		}
	}
	return nil
}

// ---- IncidentStore ----

func (m *Store) OpenIncident(ctx context.Context, inc *domain.Incident) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextIncidentID++
	inc.ID = m.nextIncidentID
	now := time.Now().UTC()
	if inc.DetectedAt.IsZero() {
		inc.DetectedAt = now
	}
	if inc.LastSeenAt.IsZero() {
		inc.LastSeenAt = inc.DetectedAt
	}
	cp := *inc
	m.incidents = append(m.incidents, &cp)
	return nil
}

func (m *Store) LatestIncident(ctx context.Context, id domain.SiteID, t domain.IncidentType) (*domain.Incident, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *domain.Incident
	for _, inc := range m.incidents {
		if inc.SiteID != id || inc.Type != t {
			continue
		}
		if latest == nil || inc.DetectedAt.After(latest.DetectedAt) {
			latest = inc
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (m *Store) TouchIncident(ctx context.Context, incidentID int64, seenAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inc := range m.incidents {
		if inc.ID == incidentID {
			inc.LastSeenAt = seenAt
			return nil
		}
	}
	return nil
}

func (m *Store) ResolveIncidents(ctx context.Context, id domain.SiteID, t domain.IncidentType, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inc := range m.incidents {
		if inc.SiteID == id && inc.Type == t && inc.ResolvedAt == nil {
			resolved := at
			inc.ResolvedAt = &resolved
		}
	}
	return nil
}

// ---- SSLStore ----

func (m *Store) PutSSLInfo(ctx context.Context, info *domain.SSLInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if info.LastChecked.IsZero() {
		info.LastChecked = time.Now().UTC()
	}
	cp := *info
	m.ssl[info.SiteID] = &cp
	return nil
}

func (m *Store) GetSSLInfo(ctx context.Context, id domain.SiteID) (*domain.SSLInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, ok := m.ssl[id]
	if !ok {
		return nil, nil
	}
	cp := *info
	return &cp, nil
}
