package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/webguard/webguard/internal/domain"
	"github.com/webguard/webguard/internal/store"
)

var _ store.Store = (*Store)(nil)

// Store is the embedded single-file adapter, the default engine.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS sites (
	id TEXT PRIMARY KEY,
	url TEXT NOT NULL UNIQUE,
	display_name TEXT NOT NULL DEFAULT '',
	monitoring_enabled INTEGER NOT NULL DEFAULT 1,
	check_interval INTEGER NOT NULL DEFAULT 300,
	defacement_enabled INTEGER NOT NULL DEFAULT 1,
	ssl_enabled INTEGER NOT NULL DEFAULT 1,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS checks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	site_id TEXT NOT NULL REFERENCES sites(id) ON DELETE CASCADE,
	check_type TEXT NOT NULL,
	outcome TEXT NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	message TEXT NOT NULL DEFAULT '',
	response_time_ms INTEGER,
	http_status_code INTEGER,
	expires_at TIMESTAMP,
	days_until_expiry INTEGER,
	fingerprint TEXT NOT NULL DEFAULT '',
	checked_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS baselines (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	site_id TEXT NOT NULL REFERENCES sites(id) ON DELETE CASCADE,
	fingerprint TEXT NOT NULL,
	captured_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS incidents (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	site_id TEXT NOT NULL REFERENCES sites(id) ON DELETE CASCADE,
	incident_type TEXT NOT NULL,
	severity TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	baseline_fingerprint TEXT NOT NULL DEFAULT '',
	current_fingerprint TEXT NOT NULL DEFAULT '',
	detected_at TIMESTAMP NOT NULL,
	last_seen_at TIMESTAMP NOT NULL,
	resolved_at TIMESTAMP
);
CREATE TABLE IF NOT EXISTS ssl_certificates (
	site_id TEXT PRIMARY KEY REFERENCES sites(id) ON DELETE CASCADE,
	issuer TEXT NOT NULL DEFAULT '',
	subject TEXT NOT NULL DEFAULT '',
	valid_from TIMESTAMP NOT NULL,
	valid_to TIMESTAMP NOT NULL,
	days_until_expiry INTEGER NOT NULL,
	last_checked TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_checks_site_type_time ON checks(site_id, check_type, checked_at DESC);
CREATE INDEX IF NOT EXISTS idx_incidents_site_type ON incidents(site_id, incident_type, detected_at DESC);
CREATE INDEX IF NOT EXISTS idx_baselines_site ON baselines(site_id, captured_at DESC);
`

func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// sqlite allows one writer; a single connection sidesteps SQLITE_BUSY
	// under the worker pool.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}

// ---- SiteStore ----

func (s *Store) Add(ctx context.Context, site *domain.Site) error {
	if site.ID == "" {
		site.ID = domain.NewSiteID()
	}
	now := time.Now().UTC()
	if site.CreatedAt.IsZero() {
		site.CreatedAt = now
	}
	if site.UpdatedAt.IsZero() {
		site.UpdatedAt = now
	}
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sites WHERE url = ?`, site.URL).Scan(&exists)
	if err != nil {
		return unavailable("check duplicate", err)
	}
	if exists > 0 {
		return domain.ErrDuplicateSite
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sites (id, url, display_name, monitoring_enabled, check_interval,
		                    defacement_enabled, ssl_enabled, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(site.ID), site.URL, site.DisplayName, site.MonitoringEnabled, site.CheckInterval,
		site.DefacementEnabled, site.SSLEnabled, site.CreatedAt, site.UpdatedAt,
	)
	if err != nil {
		return unavailable("insert site", err)
	}
	return nil
}

const siteColumns = `id, url, display_name, monitoring_enabled, check_interval,
	defacement_enabled, ssl_enabled, created_at, updated_at`

func scanSite(row interface{ Scan(...any) error }) (*domain.Site, error) {
	var (
		site domain.Site
		id   string
	)
	err := row.Scan(&id, &site.URL, &site.DisplayName, &site.MonitoringEnabled, &site.CheckInterval,
		&site.DefacementEnabled, &site.SSLEnabled, &site.CreatedAt, &site.UpdatedAt)
	if err != nil {
		return nil, err
	}
	site.ID = domain.SiteID(id)
	return &site, nil
}

func (s *Store) Get(ctx context.Context, id domain.SiteID) (*domain.Site, error) {
	site, err := scanSite(s.db.QueryRowContext(ctx,
		`SELECT `+siteColumns+` FROM sites WHERE id = ?`, string(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSiteNotFound
	}
	if err != nil {
		return nil, unavailable("get site", err)
	}
	return site, nil
}

func (s *Store) GetByURL(ctx context.Context, url string) (*domain.Site, error) {
	site, err := scanSite(s.db.QueryRowContext(ctx,
		`SELECT `+siteColumns+` FROM sites WHERE url = ?`, url))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSiteNotFound
	}
	if err != nil {
		return nil, unavailable("get site by url", err)
	}
	return site, nil
}

func (s *Store) List(ctx context.Context) ([]domain.Site, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+siteColumns+` FROM sites ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, unavailable("list sites", err)
	}
	defer rows.Close()

	var out []domain.Site
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, unavailable("scan site", err)
		}
		out = append(out, *site)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list sites", err)
	}
	return out, nil
}

func (s *Store) Update(ctx context.Context, site *domain.Site) error {
	site.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE sites SET url = ?, display_name = ?, monitoring_enabled = ?, check_interval = ?,
		        defacement_enabled = ?, ssl_enabled = ?, updated_at = ?
		  WHERE id = ?`,
		site.URL, site.DisplayName, site.MonitoringEnabled, site.CheckInterval,
		site.DefacementEnabled, site.SSLEnabled, site.UpdatedAt, string(site.ID),
	)
	if err != nil {
		return unavailable("update site", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrSiteNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id domain.SiteID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sites WHERE id = ?`, string(id))
	if err != nil {
		return unavailable("delete site", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrSiteNotFound
	}
	return nil
}

// ---- CheckStore ----

func (s *Store) Append(ctx context.Context, r *domain.CheckRecord) error {
	if r.CheckedAt.IsZero() {
		r.CheckedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO checks (site_id, check_type, outcome, reason, message,
		                     response_time_ms, http_status_code, expires_at, days_until_expiry,
		                     fingerprint, checked_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(r.SiteID), string(r.Type), string(r.Outcome), string(r.Reason), r.Message,
		r.ResponseTimeMS, r.HTTPStatus, r.ExpiresAt, r.DaysUntilExpiry,
		r.Fingerprint, r.CheckedAt,
	)
	if err != nil {
		return unavailable("append check", err)
	}
	r.ID, _ = res.LastInsertId()
	return nil
}

const checkColumns = `id, site_id, check_type, outcome, reason, message,
	response_time_ms, http_status_code, expires_at, days_until_expiry, fingerprint, checked_at`

func scanCheck(row interface{ Scan(...any) error }) (*domain.CheckRecord, error) {
	var (
		r       domain.CheckRecord
		siteID  string
		ctype   string
		outcome string
		reason  string
	)
	err := row.Scan(&r.ID, &siteID, &ctype, &outcome, &reason, &r.Message,
		&r.ResponseTimeMS, &r.HTTPStatus, &r.ExpiresAt, &r.DaysUntilExpiry,
		&r.Fingerprint, &r.CheckedAt)
	if err != nil {
		return nil, err
	}
	r.SiteID = domain.SiteID(siteID)
	r.Type = domain.CheckType(ctype)
	r.Outcome = domain.Outcome(outcome)
	r.Reason = domain.ProbeReason(reason)
	return &r, nil
}

func (s *Store) Latest(ctx context.Context, id domain.SiteID, t domain.CheckType) (*domain.CheckRecord, error) {
	r, err := scanCheck(s.db.QueryRowContext(ctx,
		`SELECT `+checkColumns+` FROM checks
		  WHERE site_id = ? AND check_type = ?
		  ORDER BY checked_at DESC, id DESC LIMIT 1`,
		string(id), string(t)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("latest check", err)
	}
	return r, nil
}

func (s *Store) History(ctx context.Context, id domain.SiteID, t domain.CheckType, limit int) ([]domain.CheckRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + checkColumns + ` FROM checks WHERE site_id = ?`
	args := []any{string(id)}
	if t != "" {
		q += ` AND check_type = ?`
		args = append(args, string(t))
	}
	q += ` ORDER BY checked_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, unavailable("check history", err)
	}
	defer rows.Close()

	var out []domain.CheckRecord
	for rows.Next() {
		r, err := scanCheck(rows)
		if err != nil {
			return nil, unavailable("scan check", err)
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("check history", err)
	}
	return out, nil
}

// ---- BaselineStore ----

func (s *Store) GetBaseline(ctx context.Context, id domain.SiteID) (*domain.Baseline, error) {
	var b domain.Baseline
	var siteID string
	err := s.db.QueryRowContext(ctx,
		`SELECT site_id, fingerprint, captured_at FROM baselines
		  WHERE site_id = ? ORDER BY captured_at DESC, id DESC LIMIT 1`,
		string(id)).Scan(&siteID, &b.Fingerprint, &b.CapturedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get baseline", err)
	}
	b.SiteID = domain.SiteID(siteID)
	return &b, nil
}

func (s *Store) SetBaseline(ctx context.Context, b *domain.Baseline, resolveOpen bool) error {
	if b.CapturedAt.IsZero() {
		b.CapturedAt = time.Now().UTC()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin baseline tx", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO baselines (site_id, fingerprint, captured_at) VALUES (?, ?, ?)`,
		string(b.SiteID), b.Fingerprint, b.CapturedAt,
	); err != nil {
		return unavailable("insert baseline", err)
	}
	if resolveOpen {
		if _, err := tx.ExecContext(ctx,
			`UPDATE incidents SET resolved_at = ?
			  WHERE site_id = ? AND incident_type = ? AND resolved_at IS NULL`,
			time.Now().UTC(), string(b.SiteID), string(domain.IncidentDefacement),
		); err != nil {
			return unavailable("resolve incidents", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return unavailable("commit baseline", err)
	}
	return nil
}

// ---- IncidentStore ----

func (s *Store) OpenIncident(ctx context.Context, inc *domain.Incident) error {
	now := time.Now().UTC()
	if inc.DetectedAt.IsZero() {
		inc.DetectedAt = now
	}
	if inc.LastSeenAt.IsZero() {
		inc.LastSeenAt = inc.DetectedAt
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO incidents (site_id, incident_type, severity, description,
		                        baseline_fingerprint, current_fingerprint,
		                        detected_at, last_seen_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(inc.SiteID), string(inc.Type), inc.Severity, inc.Description,
		inc.BaselineFingerprint, inc.CurrentFingerprint, inc.DetectedAt, inc.LastSeenAt,
	)
	if err != nil {
		return unavailable("open incident", err)
	}
	inc.ID, _ = res.LastInsertId()
	return nil
}

func (s *Store) LatestIncident(ctx context.Context, id domain.SiteID, t domain.IncidentType) (*domain.Incident, error) {
	var (
		inc    domain.Incident
		siteID string
		itype  string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, site_id, incident_type, severity, description,
		        baseline_fingerprint, current_fingerprint, detected_at, last_seen_at, resolved_at
		   FROM incidents
		  WHERE site_id = ? AND incident_type = ?
		  ORDER BY detected_at DESC, id DESC LIMIT 1`,
		string(id), string(t)).Scan(
		&inc.ID, &siteID, &itype, &inc.Severity, &inc.Description,
		&inc.BaselineFingerprint, &inc.CurrentFingerprint,
		&inc.DetectedAt, &inc.LastSeenAt, &inc.ResolvedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("latest incident", err)
	}
	inc.SiteID = domain.SiteID(siteID)
	inc.Type = domain.IncidentType(itype)
	return &inc, nil
}

func (s *Store) TouchIncident(ctx context.Context, incidentID int64, seenAt time.Time) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE incidents SET last_seen_at = ? WHERE id = ?`, seenAt, incidentID,
	); err != nil {
		return unavailable("touch incident", err)
	}
	return nil
}

func (s *Store) ResolveIncidents(ctx context.Context, id domain.SiteID, t domain.IncidentType, at time.Time) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE incidents SET resolved_at = ?
		  WHERE site_id = ? AND incident_type = ? AND resolved_at IS NULL`,
		at, string(id), string(t),
	); err != nil {
		return unavailable("resolve incidents", err)
	}
	return nil
}

// ---- SSLStore ----

func (s *Store) PutSSLInfo(ctx context.Context, info *domain.SSLInfo) error {
	if info.LastChecked.IsZero() {
		info.LastChecked = time.Now().UTC()
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO ssl_certificates (site_id, issuer, subject, valid_from, valid_to, days_until_expiry, last_checked)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(site_id) DO UPDATE SET
		   issuer = excluded.issuer, subject = excluded.subject,
		   valid_from = excluded.valid_from, valid_to = excluded.valid_to,
		   days_until_expiry = excluded.days_until_expiry, last_checked = excluded.last_checked`,
		string(info.SiteID), info.Issuer, info.Subject, info.ValidFrom, info.ValidTo,
		info.DaysUntilExpiry, info.LastChecked,
	); err != nil {
		return unavailable("put ssl info", err)
	}
	return nil
}

func (s *Store) GetSSLInfo(ctx context.Context, id domain.SiteID) (*domain.SSLInfo, error) {
	var (
		info   domain.SSLInfo
		siteID string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT site_id, issuer, subject, valid_from, valid_to, days_until_expiry, last_checked
		   FROM ssl_certificates WHERE site_id = ?`,
		string(id)).Scan(&siteID, &info.Issuer, &info.Subject, &info.ValidFrom, &info.ValidTo,
		&info.DaysUntilExpiry, &info.LastChecked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get ssl info", err)
	}
	info.SiteID = domain.SiteID(siteID)
	return &info, nil
}
