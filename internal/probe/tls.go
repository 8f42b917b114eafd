package probe

import (
	"context"
	"crypto/tls"
	"net"
	"net/url"
	"time"

	"github.com/webguard/webguard/internal/domain"
)

type CertChecker struct {
	Timeout time.Duration
}

func NewCertChecker(timeout time.Duration) *CertChecker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &CertChecker{Timeout: timeout}
}

// Check performs a TLS handshake only (no application payload) and
// extracts the leaf certificate. Verification is skipped: the probe's job
// is to surface expiry for any certificate the site presents, including
// ones that would fail chain validation.
func (c *CertChecker) Check(ctx context.Context, target string) TLSResult {
	host, port, err := tlsAddr(target)
	if err != nil {
		return TLSResult{Reason: domain.ReasonTLS, Message: err.Error()}
	}

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: c.Timeout},
		Config: &tls.Config{
			ServerName:         host,
			InsecureSkipVerify: true,
		},
	}
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, port))
	if err != nil {
		return TLSResult{Reason: classify(err), Message: err.Error()}
	}
	defer conn.Close()

	state := conn.(*tls.Conn).ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return TLSResult{Reason: domain.ReasonTLS, Message: "no certificate presented"}
	}
	leaf := state.PeerCertificates[0]

	return TLSResult{
		Success:         true,
		Issuer:          leaf.Issuer.String(),
		Subject:         leaf.Subject.String(),
		NotBefore:       leaf.NotBefore,
		NotAfter:        leaf.NotAfter,
		DaysUntilExpiry: DaysUntil(leaf.NotAfter, time.Now()),
	}
}

// DaysUntil returns whole calendar days between now and expiry, negative
// once the certificate has lapsed.
func DaysUntil(expiry, now time.Time) int {
	ey, em, ed := expiry.UTC().Date()
	ny, nm, nd := now.UTC().Date()
	e := time.Date(ey, em, ed, 0, 0, 0, 0, time.UTC)
	n := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
	return int(e.Sub(n).Hours() / 24)
}

func tlsAddr(target string) (host, port string, err error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", "", err
	}
	host = u.Hostname()
	port = u.Port()
	if port == "" {
		port = "443"
	}
	return host, port, nil
}
