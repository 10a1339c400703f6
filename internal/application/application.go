package application

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/psds-microservice/live-pk-service/internal/config"
	"github.com/psds-microservice/live-pk-service/internal/credential"
	"github.com/psds-microservice/live-pk-service/internal/handler"
	"github.com/psds-microservice/live-pk-service/internal/metrics"
	"github.com/psds-microservice/live-pk-service/internal/model"
	"github.com/psds-microservice/live-pk-service/internal/router"
	"github.com/psds-microservice/live-pk-service/internal/service"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// API is the HTTP + WebSocket API application.
type API struct {
	cfg      *config.Config
	srv      *http.Server
	log      *zap.Logger
	hub      *service.FanoutHub
	pk       *service.PKManager
	notifier *service.MultiNotifier
}

// NewAPI validates config and wires registry, pk manager, fanout hub and router.
func NewAPI(cfg *config.Config) (*API, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	fallback, err := loadFallback(cfg)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	store := service.NewSessionStore()
	registry := service.NewLiveRegistry(store, cfg.HeartbeatWindow, fallback, logger)
	pairs := service.NewPairingMap(store)
	notifier := service.NewNotifierFromConfig(cfg, logger)
	hub := service.NewFanoutHub(service.HubOptions{
		ReadBufferSize:  cfg.WSReadBufferSize,
		WriteBufferSize: cfg.WSWriteBufferSize,
		SendBuffer:      cfg.WSSendBuffer,
		MaxMessageSize:  cfg.WSMaxMessageSize,
		NotifyTimeout:   cfg.Notify.Timeout,
	}, notifier, m, logger)
	pk := service.NewPKManager(registry, pairs, hub, service.PKConfig{
		DefaultDuration: cfg.PK.DefaultDuration,
		MinDuration:     cfg.PK.MinDuration,
		MaxDuration:     cfg.PK.MaxDuration,
		InviteTTL:       cfg.PK.InviteTTL,
		ResultTTL:       cfg.PK.ResultTTL,
	}, m, logger)
	signer := credential.NewSigner(cfg.Media.AppID, cfg.Media.AppSecret, cfg.Media.TokenTTL)
	if !signer.Configured() {
		logger.Warn("media credentials not configured; listing credentials and /generate-token are disabled")
	}

	metrics.RegisterGauge(reg, "live_sessions", "Registered sessions, live or not.", func() float64 { return float64(store.Len()) })
	metrics.RegisterGauge(reg, "pk_retained", "PK pairings held in memory, open or closed.", func() float64 { return float64(pk.Len()) })
	metrics.RegisterGauge(reg, "paired_sessions", "Sessions bound to an open pk.", func() float64 { return float64(pairs.Len()) })
	metrics.RegisterGauge(reg, "fanout_groups", "Sessions with at least one subscriber.", func() float64 { return float64(hub.GroupCount()) })

	r := router.New(router.Handlers{
		Session: handler.NewSessionHandler(registry, pk, signer, cfg.WSBaseURL, logger),
		PK:      handler.NewPKHandler(pk),
		Token:   handler.NewTokenHandler(signer),
		WS:      handler.NewStreamWSHandler(hub, registry, logger),
		Health:  handler.NewHealthHandler(),
	}, reg)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &API{cfg: cfg, srv: srv, log: logger, hub: hub, pk: pk, notifier: notifier}, nil
}

// Handler returns the root HTTP handler.
func (a *API) Handler() http.Handler { return a.srv.Handler }

// Run starts the HTTP server and the result janitor, blocks until ctx is cancelled, then shuts down gracefully.
func (a *API) Run(ctx context.Context) error {
	defer func() { _ = a.log.Sync() }()

	host := a.cfg.AppHost
	if host == "0.0.0.0" {
		host = "localhost"
	}
	base := "http://" + host + ":" + a.cfg.HTTPPort
	a.log.Info("HTTP server listening", zap.String("addr", a.srv.Addr))
	a.log.Info("endpoints",
		zap.String("health", base+"/health"),
		zap.String("lives", base+"/lives"),
		zap.String("pk", base+"/pk"),
		zap.String("metrics", base+"/metrics"),
		zap.String("ws", "ws://"+host+":"+a.cfg.HTTPPort+"/ws?session_id=..."))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})
	if a.cfg.JanitorInterval > 0 {
		g.Go(func() error { return a.pk.Run(gctx, a.cfg.JanitorInterval) })
	}
	g.Go(func() error {
		<-gctx.Done()
		return a.shutdown()
	})
	return g.Wait()
}

func (a *API) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var errList []error
	if err := a.srv.Shutdown(shutdownCtx); err != nil {
		errList = append(errList, fmt.Errorf("http shutdown: %w", err))
	}
	a.pk.Close()
	if err := a.hub.Drain(shutdownCtx); err != nil {
		a.log.Warn("external notifications still in flight", zap.Error(err))
	}
	if err := a.notifier.Close(); err != nil {
		a.log.Warn("close notifiers", zap.Error(err))
	}
	a.log.Info("shutdown complete")
	return errors.Join(errList...)
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.AppEnv == "development" {
		zc = zap.NewDevelopmentConfig()
	}
	if cfg.LogLevel != "" {
		lvl, err := zap.ParseAtomicLevel(cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		zc.Level = lvl
	}
	return zc.Build()
}

func loadFallback(cfg *config.Config) ([]model.LiveSession, error) {
	if cfg.FallbackFile == "" {
		return service.DefaultFallback(), nil
	}
	sessions, err := service.LoadFallback(cfg.FallbackFile)
	if err != nil {
		return nil, fmt.Errorf("fallback: %w", err)
	}
	return sessions, nil
}
