package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/webguard/webguard/internal/config"
	"github.com/webguard/webguard/internal/domain"
	"github.com/webguard/webguard/internal/notify"
)

type addSiteRequest struct {
	URL               string `json:"url"`
	DisplayName       string `json:"display_name"`
	CheckInterval     *int   `json:"check_interval"`
	DefacementEnabled *bool  `json:"defacement_detection_enabled"`
	SSLEnabled        *bool  `json:"ssl_monitoring_enabled"`
}

func (s *Server) handleListSites(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sites, err := s.Store.List(ctx)
	if err != nil {
		s.fail(w, "list websites", err)
		return
	}
	out := make([]any, 0, len(sites))
	for i := range sites {
		sum, err := s.Agg.Summarize(ctx, &sites[i])
		if err != nil {
			s.fail(w, "summarize website", err)
			return
		}
		out = append(out, sum)
	}
	writeData(w, http.StatusOK, out)
}

func (s *Server) handleAddSite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req addSiteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	if err := config.ValidateSiteURL(req.URL); err != nil {
		writeError(w, http.StatusBadRequest, "url must start with http:// or https://")
		return
	}

	if existing, err := s.Store.GetByURL(ctx, req.URL); err != nil && !errors.Is(err, domain.ErrSiteNotFound) {
		s.fail(w, "lookup website", err)
		return
	} else if existing != nil {
		writeError(w, http.StatusConflict, "website is already being monitored")
		return
	}

	var warning string
	interval := s.DefaultIntervalSec
	if req.CheckInterval != nil {
		interval = *req.CheckInterval
		if interval < s.MinIntervalSec {
			warning = fmt.Sprintf("check_interval raised to the minimum of %d seconds", s.MinIntervalSec)
			interval = s.MinIntervalSec
		}
	}

	https := strings.HasPrefix(req.URL, "https://")
	site := &domain.Site{
		ID:                domain.NewSiteID(),
		URL:               req.URL,
		DisplayName:       req.DisplayName,
		MonitoringEnabled: true,
		CheckInterval:     interval,
		DefacementEnabled: req.DefacementEnabled == nil || *req.DefacementEnabled,
		SSLEnabled:        https && (req.SSLEnabled == nil || *req.SSLEnabled),
	}
	if site.DisplayName == "" {
		site.DisplayName = site.URL
	}

	if err := s.Store.Add(ctx, site); err != nil {
		if errors.Is(err, domain.ErrDuplicateSite) {
			writeError(w, http.StatusConflict, "website is already being monitored")
			return
		}
		s.fail(w, "add website", err)
		return
	}

	// run the first cycle synchronously so the response already reflects
	// real probe results
	sum, err := s.Engine.TriggerNow(ctx, site.ID)
	if err != nil {
		s.Logger.Warn("initial_check_error",
			zap.String("site_id", string(site.ID)), zap.Error(err))
	}
	s.Engine.Track(site.ID)

	if warning == "" && sum != nil && sum.Uptime != nil && sum.Uptime.Outcome == domain.OutcomeFailure {
		warning = "website was added but is currently unreachable"
	}

	view, err := s.Agg.Summarize(ctx, site)
	if err != nil {
		s.fail(w, "summarize website", err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{Status: "success", Data: view, Warning: warning})
}

type updateSiteRequest struct {
	DisplayName       *string `json:"display_name"`
	CheckInterval     *int    `json:"check_interval"`
	MonitoringEnabled *bool   `json:"monitoring_enabled"`
	DefacementEnabled *bool   `json:"defacement_detection_enabled"`
	SSLEnabled        *bool   `json:"ssl_monitoring_enabled"`
}

func (s *Server) handleUpdateSite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	site, ok := s.site(w, r)
	if !ok {
		return
	}

	var req updateSiteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var warning string
	if req.DisplayName != nil {
		site.DisplayName = *req.DisplayName
	}
	if req.CheckInterval != nil {
		interval := *req.CheckInterval
		if interval < s.MinIntervalSec {
			warning = fmt.Sprintf("check_interval raised to the minimum of %d seconds", s.MinIntervalSec)
			interval = s.MinIntervalSec
		}
		site.CheckInterval = interval
	}
	if req.MonitoringEnabled != nil {
		site.MonitoringEnabled = *req.MonitoringEnabled
	}
	if req.DefacementEnabled != nil {
		site.DefacementEnabled = *req.DefacementEnabled
	}
	if req.SSLEnabled != nil {
		site.SSLEnabled = *req.SSLEnabled && strings.HasPrefix(site.URL, "https://")
	}

	if err := s.Store.Update(ctx, site); err != nil {
		if errors.Is(err, domain.ErrSiteNotFound) {
			writeError(w, http.StatusNotFound, "website not found")
			return
		}
		s.fail(w, "update website", err)
		return
	}
	if site.MonitoringEnabled {
		s.Engine.Track(site.ID)
	} else {
		s.Engine.Untrack(site.ID)
	}

	view, err := s.Agg.Summarize(ctx, site)
	if err != nil {
		s.fail(w, "summarize website", err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Status: "success", Data: view, Warning: warning})
}

func (s *Server) handleGetSite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	site, ok := s.site(w, r)
	if !ok {
		return
	}
	sum, err := s.Agg.Summarize(ctx, site)
	if err != nil {
		s.fail(w, "summarize website", err)
		return
	}
	writeData(w, http.StatusOK, sum)
}

func (s *Server) handleDeleteSite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	site, ok := s.site(w, r)
	if !ok {
		return
	}
	s.Engine.Untrack(site.ID)
	if err := s.Store.Delete(ctx, site.ID); err != nil {
		if errors.Is(err, domain.ErrSiteNotFound) {
			writeError(w, http.StatusNotFound, "website not found")
			return
		}
		s.fail(w, "delete website", err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"id": string(site.ID), "deleted": "true"})
}

func (s *Server) handleTriggerCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	site, ok := s.site(w, r)
	if !ok {
		return
	}
	sum, err := s.Engine.TriggerNow(ctx, site.ID)
	if err != nil {
		if errors.Is(err, domain.ErrSiteNotFound) {
			writeError(w, http.StatusNotFound, "website not found")
			return
		}
		s.fail(w, "run check", err)
		return
	}
	writeData(w, http.StatusOK, sum)
}

func (s *Server) handleSiteChecks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	site, ok := s.site(w, r)
	if !ok {
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if n > 500 {
			n = 500
		}
		limit = n
	}

	ct := domain.CheckType(r.URL.Query().Get("type"))
	switch ct {
	case "", domain.CheckUptime, domain.CheckSSL, domain.CheckDefacement:
	default:
		writeError(w, http.StatusBadRequest, "type must be uptime, ssl or defacement")
		return
	}

	recs, err := s.Store.History(ctx, site.ID, ct, limit)
	if err != nil {
		s.fail(w, "load checks", err)
		return
	}
	writeData(w, http.StatusOK, recs)
}

func (s *Server) handleFalsePositive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	site, ok := s.site(w, r)
	if !ok {
		return
	}
	b, err := s.Engine.ConfirmFalsePositive(ctx, site.ID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNoActiveIncident):
			writeError(w, http.StatusConflict, "no active defacement incident for this website")
		case errors.Is(err, domain.ErrSiteNotFound):
			writeError(w, http.StatusNotFound, "website not found")
		case errors.Is(err, domain.ErrStoreUnavailable):
			s.fail(w, "confirm false positive", err)
		default:
			// the re-fetch failed; the old baseline and incident stand
			writeError(w, http.StatusBadRequest,
				"could not fetch the current page to re-baseline: "+err.Error())
		}
		return
	}
	writeData(w, http.StatusOK, map[string]any{
		"site_id":     b.SiteID,
		"fingerprint": b.Fingerprint,
		"rebaselined": true,
		"captured_at": b.CapturedAt.Format(time.RFC3339),
	})
}

func (s *Server) handleTestNotification(w http.ResponseWriter, r *http.Request) {
	if s.Notifier == nil {
		writeError(w, http.StatusServiceUnavailable, "no notification channels are configured")
		return
	}
	err := s.Notifier.Send(r.Context(), notify.Alert{
		Kind:    notify.KindTest,
		Message: "This is a test notification from WebGuard.",
		At:      time.Now(),
	})
	if err != nil {
		writeError(w, http.StatusBadGateway, "notification send failed: "+err.Error())
		return
	}
	writeData(w, http.StatusOK, map[string]any{"sent": true})
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	stats, err := s.Agg.Overview(r.Context())
	if err != nil {
		s.fail(w, "overview", err)
		return
	}
	writeData(w, http.StatusOK, stats)
}

// site resolves the {id} path param; it writes the error response itself
// when the site does not exist.
func (s *Server) site(w http.ResponseWriter, r *http.Request) (*domain.Site, bool) {
	id := domain.SiteID(chi.URLParam(r, "id"))
	site, err := s.Store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrSiteNotFound) {
			writeError(w, http.StatusNotFound, "website not found")
			return nil, false
		}
		s.fail(w, "lookup website", err)
		return nil, false
	}
	return site, true
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	s.Logger.Error("api_error", zap.String("op", op), zap.Error(err))
	if errors.Is(err, domain.ErrStoreUnavailable) {
		writeError(w, http.StatusServiceUnavailable, "storage temporarily unavailable")
		return
	}
	writeError(w, http.StatusInternalServerError, "internal error")
}
