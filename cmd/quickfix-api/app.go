// README: Builds stores, services and the HTTP server from config.
package main

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"

	"quickfix/internal/config"
	httptransport "quickfix/internal/http"
	"quickfix/internal/infra"
	"quickfix/internal/logger"
	"quickfix/internal/maps"
	"quickfix/internal/metrics"
	"quickfix/internal/modules/enrichment"
	"quickfix/internal/modules/request"
	"quickfix/internal/modules/routing"
	"quickfix/internal/modules/users"
	"quickfix/internal/notify"
	"quickfix/internal/store/memory"
	"quickfix/internal/store/postgres"
)

type app struct {
	users    *users.Service
	requests *request.Service
	server   *httptransport.Server
	closers  []func() error
}

func (a *app) Close() error {
	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, a.closers[i]())
	}
	return err
}

func buildApp(ctx context.Context, cfg *config.Config, log logger.Logger) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			err = multierr.Append(err, a.Close())
		}
	}()

	if !cfg.App.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}
	rec, err := metrics.NewProm(prometheus.DefaultRegisterer)
	if err != nil {
		return nil, err
	}

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = infra.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rdb.Close)
	}

	var (
		userStore    users.Store
		requestStore request.Store
		directory    routing.Directory
	)
	switch cfg.DB.Store {
	case config.StorePostgres:
		pool, err := infra.NewDB(ctx, cfg.DB.DSN, cfg.DB.MaxConns)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { pool.Close(); return nil })
		st := postgres.New(pool)
		userStore, requestStore, directory = st.Users(), st.Requests(), st
	default:
		st := memory.New()
		userStore, requestStore, directory = st.Users(), st.Requests(), st
	}

	userOpts := []users.Option{users.WithLogger(logger.New("users"))}
	if cfg.Reroute.Directory == config.DirectoryRedis {
		idx := routing.NewRedisDirectory(rdb)
		directory = idx
		userOpts = append(userOpts, users.WithIndexer(idx))
	}
	a.users = users.NewService(userStore, userOpts...)
	if cfg.Reroute.Directory == config.DirectoryRedis {
		if err := a.users.ReindexVendors(ctx); err != nil {
			return nil, fmt.Errorf("build routing index: %w", err)
		}
	}

	enricher, err := buildEnricher(ctx, cfg, rdb, rec, a)
	if err != nil {
		return nil, err
	}

	exclusion, err := request.ParseExclusionPolicy(cfg.Reroute.Exclusion)
	if err != nil {
		return nil, err
	}
	requestOpts := []request.Option{
		request.WithEnricher(enricher),
		request.WithMetrics(rec),
		request.WithLogger(logger.New("request")),
		request.WithAcceptWindow(cfg.Reroute.AcceptWindow),
		request.WithExclusionPolicy(exclusion),
	}

	var fbApp *firebase.App
	firebaseApp := func() (*firebase.App, error) {
		if fbApp != nil {
			return fbApp, nil
		}
		var err error
		fbApp, err = infra.NewFirebaseApp(ctx, cfg.Auth.FirebaseProjectID, cfg.Auth.FirebaseCredentials)
		return fbApp, err
	}

	if cfg.Notify.Enabled {
		fa, err := firebaseApp()
		if err != nil {
			return nil, err
		}
		msg, err := infra.NewMessaging(ctx, fa)
		if err != nil {
			return nil, err
		}
		requestOpts = append(requestOpts, request.WithNotifier(notify.NewFCMNotifier(msg, a.users, logger.New("notify"))))
	}
	a.requests = request.NewService(requestStore, routing.NewSelector(directory), requestOpts...)

	var verifier infra.TokenVerifier = infra.HeaderVerifier{}
	if cfg.Auth.Mode == config.AuthFirebase {
		fa, err := firebaseApp()
		if err != nil {
			return nil, err
		}
		if verifier, err = infra.NewFirebaseVerifier(ctx, fa); err != nil {
			return nil, err
		}
	} else {
		log.Warnf("auth mode %q trusts the bearer token as the user id", cfg.Auth.Mode)
	}

	deps := httptransport.ServerDeps{
		Requests: a.requests,
		Users:    a.users,
		Verifier: verifier,
		Gatherer: prometheus.DefaultGatherer,
		Log:      logger.New("http"),
	}
	if cfg.Maps.APIKey != "" {
		routes, err := maps.NewRouteService(cfg.Maps.APIKey)
		if err != nil {
			return nil, err
		}
		deps.ETA = routes
	}
	a.server = httptransport.NewServer(deps)
	return a, nil
}

func buildEnricher(ctx context.Context, cfg *config.Config, rdb *redis.Client, rec metrics.Recorder, a *app) (*enrichment.Adapter, error) {
	log := logger.New("enrichment")
	if cfg.Enrichment.GeminiKey == "" {
		log.Warnf("no Gemini key configured, vehicle enrichment only echoes the registration number")
		return enrichment.NewAdapter(nil), nil
	}
	analyzer, err := enrichment.NewGeminiAnalyzer(ctx, cfg.Enrichment.GeminiKey, cfg.Enrichment.VisionModel, cfg.Enrichment.TextModel)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, analyzer.Close)

	var cache enrichment.Cache
	switch cfg.Enrichment.Cache {
	case config.CacheRedis:
		cache = enrichment.NewRedisCache(rdb, cfg.Enrichment.CacheTTL)
	default:
		lru, err := enrichment.NewLRUCache(cfg.Enrichment.CacheSize)
		if err != nil {
			return nil, err
		}
		cache = lru
	}
	return enrichment.NewAdapter(analyzer,
		enrichment.WithCache(cache),
		enrichment.WithTimeout(cfg.Enrichment.Timeout),
		enrichment.WithMetrics(rec),
		enrichment.WithLogger(log),
	), nil
}
