package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sm8ke1/pulsenet/internal/alert"
	"github.com/sm8ke1/pulsenet/internal/config"
	"github.com/sm8ke1/pulsenet/internal/dnsbench"
	"github.com/sm8ke1/pulsenet/internal/httpapi"
	apimw "github.com/sm8ke1/pulsenet/internal/httpapi/middleware"
	"github.com/sm8ke1/pulsenet/internal/logging"
	"github.com/sm8ke1/pulsenet/internal/netadapter"
	"github.com/sm8ke1/pulsenet/internal/notify"
	"github.com/sm8ke1/pulsenet/internal/poller"
	"github.com/sm8ke1/pulsenet/internal/probe"
	"github.com/sm8ke1/pulsenet/internal/speedtest"
	"github.com/sm8ke1/pulsenet/internal/store"
	"github.com/sm8ke1/pulsenet/internal/update"
)

// version is stamped at build time via -ldflags "-X main.version=v1.2.3".
var version = "v0.0.0-dev"

func main() {
	cfg := config.FromEnv()
	logger, err := logging.NewLogger(cfg.LogDir, os.Getenv("DEBUG") == "1")
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	defaults := store.DefaultHosts()
	if cfg.SeedHostsFile != "" {
		seeded, err := config.LoadSeedHosts(cfg.SeedHostsFile)
		if err != nil {
			logger.Warn("seed_hosts_load_failed", zap.String("path", cfg.SeedHostsFile), zap.Error(err))
		} else {
			defaults = append(defaults, seeded...)
		}
	}

	st, err := store.Open(cfg.DataDir, defaults)
	if err != nil {
		log.Fatal(err)
	}

	pinger := probe.NewICMPPinger(cfg.PingTimeout)
	p := poller.New(logger, pinger, cfg.PollInterval)

	var notifier notify.Notifier
	if wh := notify.NewWebhook(cfg.AlertWebhookURL); wh != nil {
		notifier = wh
	}
	alerts := alert.New(logger, st, notifier, alert.Config{
		Cooldown:      cfg.AlertCooldown,
		LatencyWarnMS: cfg.LatencyWarnMS,
	})

	api := &httpapi.Server{
		Logger:   logger,
		Store:    st,
		Poller:   p,
		Alerts:   alerts,
		DNS:      dnsbench.New(logger, probe.NewServerResolver(cfg.DNSTimeout), st),
		Adapters: netadapter.NewManager(logger, nil),
		Speed:    speedtest.NewClient(logger),
		Updates:  update.NewChecker(logger, version),
	}

	p.AddSink(alerts.Observe)
	p.AddSink(api.ObserveProbe)

	for _, h := range st.Hosts() {
		p.Track(h)
	}

	router := api.Router(
		apimw.Keys{Read: cfg.PublicAPIKeys, Admin: cfg.AdminAPIKeys},
		httpapi.Limits{
			ReadRPM:    cfg.PublicRPM,
			ReadBurst:  cfg.PublicBurst,
			AdminRPM:   cfg.AdminRPM,
			AdminBurst: cfg.AdminBurst,
		},
	)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("api_listen", zap.String("addr", cfg.Addr), zap.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api_serve_error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("api_shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("api_shutdown_error", zap.Error(err))
	}
	p.StopAll()
}
