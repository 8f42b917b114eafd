package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/webguard/webguard/internal/config"
	"github.com/webguard/webguard/internal/defacement"
	"github.com/webguard/webguard/internal/httpapi"
	"github.com/webguard/webguard/internal/httpapi/middleware"
	"github.com/webguard/webguard/internal/logging"
	"github.com/webguard/webguard/internal/notify"
	"github.com/webguard/webguard/internal/probe"
	"github.com/webguard/webguard/internal/scheduler"
	"github.com/webguard/webguard/internal/status"
	"github.com/webguard/webguard/internal/store"
	"github.com/webguard/webguard/internal/store/memory"
	"github.com/webguard/webguard/internal/store/postgres"
	"github.com/webguard/webguard/internal/store/sqlite"
)

func main() {
	cfgPath := flag.String("config", "", "path to YAML config (optional, env overrides apply)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.NewLogger(cfg.Log.Dir, cfg.Log.Level)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("store_open_error", zap.String("driver", cfg.DB.Driver), zap.Error(err))
	}

	uptime := probe.NewHTTPChecker(cfg.Sched.ProbeTimeout)
	certs := probe.NewCertChecker(cfg.Sched.ProbeTimeout)
	pages := probe.NewPageChecker(cfg.Sched.ProbeTimeout)
	detector := defacement.New(st, st, pages, logger)

	var notifiers notify.Multi
	if s := notify.NewSlack(cfg.Notify.SlackWebhook); s != nil {
		notifiers = append(notifiers, s)
	}
	if t := notify.NewTelegram(cfg.Notify.TelegramBotToken, cfg.Notify.TelegramChatID); t != nil {
		notifiers = append(notifiers, t)
	}
	var alerter *scheduler.Alerter
	if len(notifiers) > 0 {
		alerter = scheduler.NewAlerter(notifiers, cfg.Notify.Cooldown, logger)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	engine := scheduler.New(logger, st, uptime, certs, pages, detector, alerter, reg, scheduler.Config{
		Tick:               cfg.Sched.Tick,
		ProbeTimeout:       cfg.Sched.ProbeTimeout,
		Concurrency:        cfg.Sched.Concurrency,
		StoreRetryAttempts: cfg.Sched.StoreRetryAttempts,
		StoreRetryBackoff:  time.Duration(cfg.Sched.StoreRetryBackoffMS) * time.Millisecond,
		DefaultIntervalSec: cfg.Sched.DefaultIntervalSec,
		MinIntervalSec:     cfg.Sched.MinIntervalSec,
	})
	go engine.Run(ctx)

	agg := status.NewAggregator(st, status.Thresholds{
		LatencyWarnMS: cfg.Status.LatencyWarnMS,
		RecentWindow:  cfg.Status.RecentWindow,
		UptimeWindow:  cfg.Status.UptimeWindow,
	})

	api := httpapi.NewServer(logger, st, agg, engine, cfg.Sched.DefaultIntervalSec, cfg.Sched.MinIntervalSec)
	if len(notifiers) > 0 {
		api.Notifier = notifiers
	}
	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: api.Router(httpapi.RouterConfig{
			Keys: middleware.Keys{
				Public: cfg.Server.PublicAPIKeys,
				Admin:  cfg.Server.AdminAPIKeys,
			},
			AllowedOrigins: cfg.Server.AllowedOrigins,
			PublicRPM:      cfg.Server.PublicRPM,
			PublicBurst:    cfg.Server.PublicBurst,
			AdminRPM:       cfg.Server.AdminRPM,
			AdminBurst:     cfg.Server.AdminBurst,
			Metrics:        promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("api_listen", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("api_serve_error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown_begin")

	shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		logger.Warn("shutdown_error", zap.Error(err))
	}
	logger.Info("shutdown_complete")
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.Store, error) {
	switch cfg.DB.Driver {
	case "memory":
		return memory.New(), nil
	case "postgres":
		return postgres.New(ctx, cfg.DB.DSN, logger)
	default:
		return sqlite.New(cfg.DB.DSN)
	}
}
