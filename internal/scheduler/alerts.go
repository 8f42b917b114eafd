package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/webguard/webguard/internal/domain"
	"github.com/webguard/webguard/internal/notify"
)

// sslWarnDays is the expiry horizon inside which certificate alerts fire.
const sslWarnDays = 30

// Alerter turns cycle outcomes into notifications, throttled per site and
// incident type so a persistent condition does not page every cycle.
type Alerter struct {
	notifier notify.Notifier
	throttle *notify.Throttle
	log      *zap.Logger
}

func NewAlerter(n notify.Notifier, cooldown time.Duration, log *zap.Logger) *Alerter {
	if n == nil {
		return nil
	}
	if cooldown <= 0 {
		cooldown = 5 * time.Minute
	}
	return &Alerter{notifier: n, throttle: notify.NewThrottle(cooldown), log: log}
}

func (a *Alerter) ProcessCycle(ctx context.Context, site *domain.Site, sum *CycleSummary) {
	now := time.Now()
	name := site.DisplayName
	if name == "" {
		name = site.URL
	}

	alert := func(kind notify.Kind, msg string) notify.Alert {
		return notify.Alert{Kind: kind, SiteName: name, SiteURL: site.URL, Message: msg, At: now}
	}

	if sum.Uptime != nil {
		key := string(notify.KindDowntime) + ":" + string(site.ID)
		if sum.Uptime.Outcome == domain.OutcomeFailure {
			if a.throttle.Allow(key, now) {
				a.send(ctx, alert(notify.KindDowntime,
					fmt.Sprintf("Reason: %s\n%s", sum.Uptime.Reason, sum.Uptime.Message)))
			}
		} else {
			// back up: next outage notifies immediately
			a.throttle.Reset(key)
		}
	}

	if sum.Defacement != nil && sum.Defacement.Outcome == domain.OutcomeFailure {
		key := string(notify.KindDefacement) + ":" + string(site.ID)
		if a.throttle.Allow(key, now) {
			a.send(ctx, alert(notify.KindDefacement,
				"Content fingerprint no longer matches the trusted baseline."))
		}
	}

	if sum.SSL != nil && sum.SSL.Outcome == domain.OutcomeSuccess && sum.SSL.DaysUntilExpiry != nil {
		days := *sum.SSL.DaysUntilExpiry
		if days <= sslWarnDays {
			key := string(notify.KindSSLExpiry) + ":" + string(site.ID)
			if a.throttle.Allow(key, now) {
				msg := fmt.Sprintf("Certificate expires in %d days.", days)
				if days < 0 {
					msg = fmt.Sprintf("Certificate expired %d days ago.", -days)
				}
				a.send(ctx, alert(notify.KindSSLExpiry, msg))
			}
		}
	}
}

func (a *Alerter) send(ctx context.Context, al notify.Alert) {
	if err := a.notifier.Send(ctx, al); err != nil {
		a.log.Warn("notify_error", zap.String("kind", string(al.Kind)), zap.Error(err))
	}
}
