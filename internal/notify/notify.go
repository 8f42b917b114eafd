// Package notify delivers alerts to the configured channels. Channels
// receive the structured Alert and render it themselves; callers never
// pre-format per-channel text.
package notify

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Kind classifies an alert. It drives the rendered title and is part of
// the throttle key.
type Kind string

const (
	KindDowntime   Kind = "downtime"
	KindDefacement Kind = "defacement"
	KindSSLExpiry  Kind = "ssl_expiry"
	KindTest       Kind = "test"
)

// Alert is the payload every channel receives.
type Alert struct {
	Kind     Kind
	SiteName string
	SiteURL  string
	Message  string
	At       time.Time
}

func (a Alert) Title() string {
	switch a.Kind {
	case KindDowntime:
		return "🔴 Website down"
	case KindDefacement:
		return "⚠️ Possible defacement"
	case KindSSLExpiry:
		return "🔒 SSL certificate expiry"
	case KindTest:
		return "WebGuard test notification"
	}
	return string(a.Kind)
}

// Body renders the shared plain-text block under the title. The display
// name is skipped when it just repeats the URL.
func (a Alert) Body() string {
	var b strings.Builder
	if a.SiteName != "" && a.SiteName != a.SiteURL {
		b.WriteString(a.SiteName)
		b.WriteByte('\n')
	}
	if a.SiteURL != "" {
		b.WriteString("URL: ")
		b.WriteString(a.SiteURL)
		b.WriteByte('\n')
	}
	b.WriteString(a.Message)
	return b.String()
}

type Notifier interface {
	Send(ctx context.Context, a Alert) error
}

// Multi fans an alert out to every configured channel and reports the
// first failure; one broken channel does not stop the others.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, a Alert) error {
	var firstErr error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Send(ctx, a); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Throttle suppresses repeat notifications for the same key (site +
// incident type) inside the cooldown window, so a site that stays down
// does not page every cycle.
type Throttle struct {
	Window time.Duration

	mu   sync.Mutex
	last map[string]time.Time
}

func NewThrottle(window time.Duration) *Throttle {
	return &Throttle{Window: window, last: make(map[string]time.Time)}
}

func (t *Throttle) Allow(key string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if prev, ok := t.last[key]; ok && now.Sub(prev) < t.Window {
		return false
	}
	t.last[key] = now
	return true
}

// Reset clears the cooldown for a key, used when a state recovers so the
// next incident notifies immediately.
func (t *Throttle) Reset(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.last, key)
}
