// Package scheduler drives periodic probe cycles. Each enabled site is
// probed at its own interval; cycles for different sites run in parallel
// through a bounded worker pool, while a site never has more than one
// cycle in flight. Manual triggers coalesce onto an in-flight cycle
// instead of starting a duplicate.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/webguard/webguard/internal/defacement"
	"github.com/webguard/webguard/internal/domain"
	"github.com/webguard/webguard/internal/probe"
	"github.com/webguard/webguard/internal/store"
)

type Config struct {
	Tick               time.Duration // scheduling resolution
	ProbeTimeout       time.Duration
	Concurrency        int
	StoreRetryAttempts int
	StoreRetryBackoff  time.Duration
	DefaultIntervalSec int
	MinIntervalSec     int
}

func (c *Config) normalize() {
	if c.Tick <= 0 {
		c.Tick = time.Second
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = probe.DefaultTimeout
	}
	if c.Concurrency < 1 {
		c.Concurrency = 8
	}
	if c.StoreRetryAttempts < 1 {
		c.StoreRetryAttempts = 3
	}
	if c.StoreRetryBackoff <= 0 {
		c.StoreRetryBackoff = 300 * time.Millisecond
	}
	if c.DefaultIntervalSec <= 0 {
		c.DefaultIntervalSec = 300
	}
	if c.MinIntervalSec <= 0 {
		c.MinIntervalSec = 60
	}
}

// flight is one in-progress probe cycle. Joiners wait on done and read
// summary/err afterwards.
type flight struct {
	done    chan struct{}
	summary *CycleSummary
	err     error
}

type Engine struct {
	log      *zap.Logger
	store    store.Store
	uptime   probe.UptimeChecker
	certs    probe.TLSChecker
	pages    probe.ContentChecker
	detector *defacement.Detector
	alerter  *Alerter
	cfg      Config

	sem chan struct{}

	mu      sync.Mutex
	flights map[domain.SiteID]*flight
	nextRun map[domain.SiteID]time.Time
	lastDue map[domain.SiteID]time.Time
	locks   map[domain.SiteID]*sync.Mutex

	m *metrics
}

func New(
	log *zap.Logger,
	st store.Store,
	uptime probe.UptimeChecker,
	certs probe.TLSChecker,
	pages probe.ContentChecker,
	detector *defacement.Detector,
	alerter *Alerter,
	reg prometheus.Registerer,
	cfg Config,
) *Engine {
	cfg.normalize()
	return &Engine{
		log:      log,
		store:    st,
		uptime:   uptime,
		certs:    certs,
		pages:    pages,
		detector: detector,
		alerter:  alerter,
		cfg:      cfg,
		sem:      make(chan struct{}, cfg.Concurrency),
		flights:  make(map[domain.SiteID]*flight),
		nextRun:  make(map[domain.SiteID]time.Time),
		lastDue:  make(map[domain.SiteID]time.Time),
		locks:    make(map[domain.SiteID]*sync.Mutex),
		m:        newMetrics(reg),
	}
}

// siteLock returns the exclusive token for a site identity. It is held
// for the duration of a probe cycle or a baseline mutation.
func (e *Engine) siteLock(id domain.SiteID) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[id]
	if !ok {
		l = &sync.Mutex{}
		e.locks[id] = l
	}
	return l
}

// Run starts the loop: an immediate pass over all enabled sites, then one
// pass per tick. Stops when ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	if err := e.loadSites(ctx); err != nil {
		e.log.Warn("scheduler_load_error", zap.Error(err))
	}

	t := time.NewTicker(e.cfg.Tick)
	defer t.Stop()

	e.dispatchDue(ctx)

	for {
		select {
		case <-ctx.Done():
			e.log.Info("scheduler_stopped")
			return
		case <-t.C:
			e.dispatchDue(ctx)
		}
	}
}

func (e *Engine) loadSites(ctx context.Context) error {
	sites, err := e.store.List(ctx)
	if err != nil {
		return fmt.Errorf("list sites: %w", err)
	}
	now := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, s := range sites {
		if s.MonitoringEnabled {
			e.nextRun[s.ID] = now
		}
	}
	return nil
}

// Track schedules a site for periodic probing. A site whose cycle just
// completed, as after the synchronous registration check, is scheduled
// one interval out instead of immediately so it is not probed twice.
func (e *Engine) Track(id domain.SiteID) {
	now := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()
	next := now
	if due, ok := e.lastDue[id]; ok && due.After(now) {
		next = due
	}
	e.nextRun[id] = next
}

// Untrack removes a site from future scheduling. An in-flight cycle is
// not cancelled; its tail writes fail against the deleted site and are
// logged. The site's exclusive token is kept: an in-flight cycle may
// still hold it, and a later operator override on a surviving site must
// contend on the same mutex, not a fresh one. The locks map is bounded
// by the sites ever registered.
func (e *Engine) Untrack(id domain.SiteID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.nextRun, id)
	delete(e.lastDue, id)
}

func (e *Engine) dispatchDue(ctx context.Context) {
	now := time.Now()

	e.mu.Lock()
	var due []domain.SiteID
	for id, at := range e.nextRun {
		if !at.After(now) {
			due = append(due, id)
		}
	}
	e.mu.Unlock()

	for _, id := range due {
		e.startScheduled(ctx, id)
	}
}

func (e *Engine) startScheduled(ctx context.Context, id domain.SiteID) {
	site, err := e.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrSiteNotFound) {
			e.log.Info("scheduler_site_gone", zap.String("site_id", string(id)))
			e.Untrack(id)
			return
		}
		// transient store failure: keep the slot due so the next tick
		// retries instead of silently ending monitoring for the site
		e.log.Warn("scheduler_site_error", zap.String("site_id", string(id)), zap.Error(err))
		return
	}
	interval := e.interval(site)

	e.mu.Lock()
	if _, inFlight := e.flights[id]; inFlight {
		// previous cycle still running when the next came due: skip this
		// slot rather than queue unboundedly
		e.nextRun[id] = time.Now().Add(interval)
		e.mu.Unlock()
		e.m.cyclesSkipped.Inc()
		e.log.Debug("cycle_skipped_overlap", zap.String("site_id", string(id)))
		return
	}
	if !site.MonitoringEnabled {
		delete(e.nextRun, id)
		e.mu.Unlock()
		return
	}
	f := &flight{done: make(chan struct{})}
	e.flights[id] = f
	e.nextRun[id] = time.Now().Add(interval)
	e.mu.Unlock()

	go e.fly(ctx, site, f)
}

func (e *Engine) interval(site *domain.Site) time.Duration {
	sec := site.CheckInterval
	if sec <= 0 {
		sec = e.cfg.DefaultIntervalSec
	}
	if sec < e.cfg.MinIntervalSec {
		sec = e.cfg.MinIntervalSec
	}
	return time.Duration(sec) * time.Second
}

// fly runs one cycle through the worker pool and publishes the result to
// any joiners. The flight is always cleared, on every exit path.
func (e *Engine) fly(ctx context.Context, site *domain.Site, f *flight) {
	e.sem <- struct{}{}
	defer func() { <-e.sem }()

	lock := e.siteLock(site.ID)
	lock.Lock()
	f.summary, f.err = e.runCycle(ctx, site)
	lock.Unlock()

	due := time.Now().Add(e.interval(site))
	e.mu.Lock()
	delete(e.flights, site.ID)
	e.lastDue[site.ID] = due
	if _, tracked := e.nextRun[site.ID]; tracked {
		e.nextRun[site.ID] = due
	}
	e.mu.Unlock()
	close(f.done)

	if f.err != nil {
		e.log.Warn("cycle_error",
			zap.String("site_id", string(site.ID)),
			zap.String("url", site.URL),
			zap.Error(f.err),
		)
	}
}

// TriggerNow runs a cycle out of schedule and returns its summary. If a
// cycle for the site is already in flight the request joins it rather
// than starting a duplicate.
func (e *Engine) TriggerNow(ctx context.Context, id domain.SiteID) (*CycleSummary, error) {
	site, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if f, inFlight := e.flights[id]; inFlight {
		e.mu.Unlock()
		select {
		case <-f.done:
			return f.summary, f.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f := &flight{done: make(chan struct{})}
	e.flights[id] = f
	e.mu.Unlock()

	e.fly(ctx, site, f)
	return f.summary, f.err
}

// ConfirmFalsePositive applies the operator override under the site's
// exclusive token so it cannot race a cycle's baseline capture.
func (e *Engine) ConfirmFalsePositive(ctx context.Context, id domain.SiteID) (*domain.Baseline, error) {
	site, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	lock := e.siteLock(id)
	lock.Lock()
	defer lock.Unlock()
	return e.detector.ConfirmFalsePositive(ctx, site)
}
