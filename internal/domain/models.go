package domain

import (
	"time"

	"github.com/google/uuid"
)

type SiteID string

func NewSiteID() SiteID { return SiteID(uuid.NewString()) }

// Site is a registered website under monitoring.
type Site struct {
	ID                SiteID    `json:"id"`
	URL               string    `json:"url"`
	DisplayName       string    `json:"display_name"`
	MonitoringEnabled bool      `json:"monitoring_enabled"`
	CheckInterval     int       `json:"check_interval"` // seconds
	DefacementEnabled bool      `json:"defacement_detection_enabled"`
	SSLEnabled        bool      `json:"ssl_monitoring_enabled"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type CheckType string

const (
	CheckUptime     CheckType = "uptime"
	CheckSSL        CheckType = "ssl"
	CheckDefacement CheckType = "defacement"
)

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// ProbeReason classifies why a probe failed (or that it did not).
type ProbeReason string

const (
	ReasonNone       ProbeReason = ""
	ReasonTimeout    ProbeReason = "timeout"
	ReasonDNS        ProbeReason = "dns"
	ReasonConnect    ProbeReason = "connect"
	ReasonTLS        ProbeReason = "tls"
	ReasonHTTPStatus ProbeReason = "http_status"
)

// CheckRecord is one probe execution. Immutable once appended; within a
// site, records of a type are ordered by CheckedAt and the newest one is
// the "latest" value surfaced to consumers.
type CheckRecord struct {
	ID      int64       `json:"id"`
	SiteID  SiteID      `json:"site_id"`
	Type    CheckType   `json:"check_type"`
	Outcome Outcome     `json:"outcome"`
	Reason  ProbeReason `json:"reason,omitempty"`
	Message string      `json:"message,omitempty"`

	// uptime only
	ResponseTimeMS *int64 `json:"response_time_ms,omitempty"`
	HTTPStatus     *int   `json:"http_status_code,omitempty"`

	// ssl only
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	DaysUntilExpiry *int       `json:"days_until_expiry,omitempty"`

	// defacement only
	Fingerprint string `json:"fingerprint,omitempty"`

	CheckedAt time.Time `json:"checked_at"`
}

// Baseline is the trusted content fingerprint for a site. It is only ever
// superseded, by initial capture or by explicit false-positive
// confirmation, never mutated in place.
type Baseline struct {
	SiteID      SiteID    `json:"site_id"`
	Fingerprint string    `json:"fingerprint"`
	CapturedAt  time.Time `json:"captured_at"`
}

type IncidentType string

const (
	IncidentDowntime   IncidentType = "downtime"
	IncidentDefacement IncidentType = "defacement"
	IncidentSSLExpiry  IncidentType = "ssl_expiry"
)

type Incident struct {
	ID          int64        `json:"id"`
	SiteID      SiteID       `json:"site_id"`
	Type        IncidentType `json:"incident_type"`
	Severity    string       `json:"severity"`
	Description string       `json:"description"`
	// evidence for defacement incidents
	BaselineFingerprint string `json:"baseline_fingerprint,omitempty"`
	CurrentFingerprint  string `json:"current_fingerprint,omitempty"`

	DetectedAt time.Time  `json:"detected_at"`
	LastSeenAt time.Time  `json:"last_seen_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

func (i *Incident) Open() bool { return i != nil && i.ResolvedAt == nil }

// SSLInfo is the most recent certificate snapshot for a site.
type SSLInfo struct {
	SiteID          SiteID    `json:"site_id"`
	Issuer          string    `json:"issuer"`
	Subject         string    `json:"subject"`
	ValidFrom       time.Time `json:"valid_from"`
	ValidTo         time.Time `json:"valid_to"`
	DaysUntilExpiry int       `json:"days_until_expiry"`
	LastChecked     time.Time `json:"last_checked"`
}

// SiteStatus is derived from recent uptime history, never persisted.
type SiteStatus string

const (
	StatusOnline  SiteStatus = "online"
	StatusWarning SiteStatus = "warning"
	StatusOffline SiteStatus = "offline"
	StatusUnknown SiteStatus = "unknown"
)

// DefacementState is derived from the baseline, the latest defacement
// record and any open incident.
type DefacementState string

const (
	DefacementClean    DefacementState = "clean"
	DefacementDetected DefacementState = "defacement_detected"
	DefacementPending  DefacementState = "pending"
	DefacementUnknown  DefacementState = "unknown"
)

type OverviewStats struct {
	Total   int `json:"total"`
	Online  int `json:"online"`
	Warning int `json:"warning"`
	Offline int `json:"offline"`
}
