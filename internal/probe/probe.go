// Package probe holds the stateless check executors. Each checker is a
// pure function of (site URL) -> result with a bounded timeout; failures
// come back as classified results, never as panics or unbounded waits.
package probe

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"os"
	"time"

	"github.com/webguard/webguard/internal/domain"
)

// UserAgent identifies the engine to monitored sites.
const UserAgent = "WebGuard/1.0"

// DefaultTimeout bounds a single probe attempt.
const DefaultTimeout = 10 * time.Second

type UptimeResult struct {
	Success        bool
	StatusCode     int
	ResponseTimeMS int64
	Reason         domain.ProbeReason
	Message        string
}

type TLSResult struct {
	Success         bool
	Issuer          string
	Subject         string
	NotBefore       time.Time
	NotAfter        time.Time
	DaysUntilExpiry int
	Reason          domain.ProbeReason
	Message         string
}

type ContentResult struct {
	Success     bool
	Fingerprint string
	Reason      domain.ProbeReason
	Message     string
}

type UptimeChecker interface {
	Check(ctx context.Context, url string) UptimeResult
}

type TLSChecker interface {
	Check(ctx context.Context, url string) TLSResult
}

type ContentChecker interface {
	Check(ctx context.Context, url string) ContentResult
}

// classify maps a transport error onto the probe failure taxonomy.
func classify(err error) domain.ProbeReason {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return domain.ReasonDNS
	}
	var certErr *tls.CertificateVerificationError
	var recErr tls.RecordHeaderError
	if errors.As(err, &certErr) || errors.As(err, &recErr) {
		return domain.ReasonTLS
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return domain.ReasonTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.ReasonTimeout
	}
	return domain.ReasonConnect
}
