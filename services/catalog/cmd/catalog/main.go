package main

import (
	"context"
	"errors"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/streambox/internal/platform/analytics"
	"github.com/example/streambox/internal/platform/config"
	"github.com/example/streambox/internal/platform/db"
	"github.com/example/streambox/internal/platform/httpserver"
	"github.com/example/streambox/internal/platform/logging"
	"github.com/example/streambox/internal/platform/natsconn"
	"github.com/example/streambox/internal/platform/run"
	"github.com/example/streambox/services/catalog/internal/cache"
	"github.com/example/streambox/services/catalog/internal/catalog"
	catalogconfig "github.com/example/streambox/services/catalog/internal/config"
	"github.com/example/streambox/services/catalog/internal/favorites"
	"github.com/example/streambox/services/catalog/internal/handlers"
	cataloghttp "github.com/example/streambox/services/catalog/internal/http"
	"github.com/example/streambox/services/catalog/internal/outbox"
	"github.com/example/streambox/services/catalog/internal/player"
	catalogstore "github.com/example/streambox/services/catalog/internal/store"
	"github.com/example/streambox/services/catalog/internal/tmdb"
)

const (
	analyticsStream  = "ANALYTICS_EVENTS"
	analyticsSubject = "analytics.>"
)

// backend bundles what the selected STORE_BACKEND provides.
type backend struct {
	media     catalogstore.MediaStore
	favorites favorites.Store
	ping      func(context.Context) error
	relay     *outbox.Publisher
	close     func()
}

func main() {
	run.Exit(serve())
}

// serve owns every resource of the process so that deferred cleanup runs
// before main exits.
func serve() int {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()
	log = logging.ForService(log, cfg.ServiceName)

	catCfg, err := catalogconfig.LoadCatalog()
	if err != nil {
		log.Error("load catalog config", zap.Error(err))
		return 1
	}

	// nats (optional)
	var (
		nc *nats.Conn
		js nats.JetStreamContext
	)
	nc, err = natsconn.Connect(natsconn.Options{URL: catCfg.NATSURL, Name: cfg.ServiceName})
	switch {
	case errors.Is(err, natsconn.ErrNotConfigured):
		log.Info("nats not configured; analytics and cache invalidation disabled")
	case err != nil:
		log.Warn("nats connect failed; continuing without it", zap.Error(err))
	default:
		defer nc.Close()
		js, err = nc.JetStream()
		if err != nil {
			log.Warn("jetstream unavailable", zap.Error(err))
			js = nil
		} else if err := natsconn.EnsureStream(js, analyticsStream, analyticsSubject, 30*24*time.Hour); err != nil {
			log.Warn("ensure analytics stream", zap.Error(err))
		}
	}

	be, err := openBackend(context.Background(), catCfg, log, js)
	if err != nil {
		log.Error("open store", zap.String("backend", catCfg.StoreBackend), zap.Error(err))
		return 1
	}
	defer be.close()

	meta := tmdb.New(catCfg.TMDB.BaseURL, catCfg.TMDB.APIKey,
		tmdb.WithTimeout(catCfg.TMDB.Timeout),
		tmdb.WithLanguage(catCfg.TMDB.Language),
		tmdb.WithLogger(log),
		tmdb.WithCircuitBreaker(tmdb.NewBreaker(catCfg.Breaker.FailureThreshold, catCfg.Breaker.Timeout, log)),
	)

	respCache, err := cache.NewTTLCache(catCfg.CacheTTL, nc, catCfg.CacheInvalidateSubject)
	if err != nil {
		log.Error("init response cache", zap.Error(err))
		return 1
	}
	defer func() { _ = respCache.Close() }()

	embed, err := player.New(catCfg.PlayerBaseURL)
	if err != nil {
		log.Error("init player", zap.Error(err))
		return 1
	}

	svc := catalog.New(meta, be.media, respCache, log, catCfg.NormalizeConcurrency)

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{
		Logger: log,
		ReadyFunc: func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return be.ping(ctx)
		},
	})
	limiter := cataloghttp.NewRateLimiter(catCfg.RateLimitRPS, catCfg.RateLimitBurst)
	limiter.TrustProxyHeaders = catCfg.TrustProxyHeaders
	r.Use(limiter.Middleware)

	handlers.Register(r, handlers.Deps{
		Catalog:   svc,
		Favorites: be.favorites,
		Player:    embed,
		Events:    analytics.New(js, log),
		Log:       log,
	})

	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTP.Addr, ServiceName: cfg.ServiceName, Logger: log, Router: r})

	runner := run.New(log)
	runner.ShutdownTimeout = cfg.HTTP.ShutdownTimeout
	code := runner.WithSignals(func(ctx context.Context) error {
		relayCtx, stopRelay := context.WithCancel(ctx)
		relayDone := make(chan struct{})
		go func() {
			defer close(relayDone)
			if be.relay == nil {
				return
			}
			if err := be.relay.Run(relayCtx); err != nil {
				log.Error("outbox relay stopped", zap.Error(err))
			}
		}()
		err := runner.Serve(ctx, func() error { return srv.Start(log) }, srv.Shutdown)
		stopRelay()
		<-relayDone
		return err
	})

	log.Info("exit", zap.Int("code", code))
	return code
}

func openBackend(ctx context.Context, cfg catalogconfig.CatalogConfig, log *zap.Logger, js nats.JetStreamContext) (*backend, error) {
	switch cfg.StoreBackend {
	case catalogconfig.StorePostgres:
		pool, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		mediaStore := catalogstore.NewPostgresMediaStore(pool)
		favStore := favorites.NewPostgresStore(pool)
		if err := mediaStore.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		if err := favStore.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		be := &backend{media: mediaStore, favorites: favStore, ping: mediaStore.Ping, close: pool.Close}
		if js != nil {
			be.relay = outbox.NewPublisher(log, pool, js)
		}
		return be, nil

	case catalogconfig.StoreRedis:
		rs, err := catalogstore.NewRedisMediaStore(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		if err := rs.Ping(ctx); err != nil {
			_ = rs.Close()
			return nil, err
		}
		return &backend{
			media:     rs,
			favorites: favorites.NewInMemoryStore(),
			ping:      rs.Ping,
			close:     func() { _ = rs.Close() },
		}, nil

	default:
		return &backend{
			media:     catalogstore.NewInMemoryMediaStore(),
			favorites: favorites.NewInMemoryStore(),
			ping:      func(context.Context) error { return nil },
			close:     func() {},
		}, nil
	}
}
