package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/webguard/webguard/internal/domain"
	apimw "github.com/webguard/webguard/internal/httpapi/middleware"
	"github.com/webguard/webguard/internal/notify"
	"github.com/webguard/webguard/internal/scheduler"
	"github.com/webguard/webguard/internal/status"
	"github.com/webguard/webguard/internal/store"
)

// Engine is the slice of the scheduler the API needs; fakes implement it
// in tests.
type Engine interface {
	Track(id domain.SiteID)
	Untrack(id domain.SiteID)
	TriggerNow(ctx context.Context, id domain.SiteID) (*scheduler.CycleSummary, error)
	ConfirmFalsePositive(ctx context.Context, id domain.SiteID) (*domain.Baseline, error)
}

type Server struct {
	Logger *zap.Logger
	Store  store.Store
	Agg    *status.Aggregator
	Engine Engine

	// Notifier fans out the test-notification endpoint; nil when no
	// channels are configured.
	Notifier notify.Notifier

	DefaultIntervalSec int
	MinIntervalSec     int
}

func NewServer(l *zap.Logger, st store.Store, agg *status.Aggregator, eng Engine, defaultIntervalSec, minIntervalSec int) *Server {
	if defaultIntervalSec <= 0 {
		defaultIntervalSec = 300
	}
	if minIntervalSec <= 0 {
		minIntervalSec = 60
	}
	return &Server{
		Logger: l, Store: st, Agg: agg, Engine: eng,
		DefaultIntervalSec: defaultIntervalSec,
		MinIntervalSec:     minIntervalSec,
	}
}

// RouterConfig carries the auth and throttling knobs plus the metrics
// endpoint handler.
type RouterConfig struct {
	Keys           apimw.Keys
	AllowedOrigins []string
	PublicRPM      int
	PublicBurst    int
	AdminRPM       int
	AdminBurst     int
	Metrics        http.Handler
}

func (s *Server) Router(rc RouterConfig) http.Handler {
	r := chi.NewRouter()

	if len(rc.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: rc.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "X-API-Key", "Content-Type"},
		}))
	} else {
		r.Use(cors.AllowAll().Handler)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if rc.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", rc.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// read surface
		r.Group(func(r chi.Router) {
			r.Use(apimw.RequireAny(rc.Keys))
			r.Use(apimw.RateLimit(rc.PublicRPM, rc.PublicBurst))
			r.Get("/websites", s.handleListSites)
			r.Get("/websites/{id}", s.handleGetSite)
			r.Get("/websites/{id}/checks", s.handleSiteChecks)
			r.Get("/stats/overview", s.handleOverview)
		})

		// mutating surface
		r.Group(func(r chi.Router) {
			r.Use(apimw.RequireAdmin(rc.Keys))
			r.Use(apimw.RateLimit(rc.AdminRPM, rc.AdminBurst))
			r.Post("/websites", s.handleAddSite)
			r.Put("/websites/{id}", s.handleUpdateSite)
			r.Delete("/websites/{id}", s.handleDeleteSite)
			r.Post("/websites/{id}/check", s.handleTriggerCheck)
			r.Post("/websites/{id}/defacement/false-positive", s.handleFalsePositive)
			r.Post("/notifications/test", s.handleTestNotification)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "WebGuard API",
	})
}
