package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/flaggate/modules/flags"
	"github.com/dmitrymomot/flaggate/pkg/config"
	"github.com/dmitrymomot/flaggate/pkg/flag"
	"github.com/dmitrymomot/flaggate/pkg/flag/pgstore"
	"github.com/dmitrymomot/flaggate/pkg/flag/redissync"
	"github.com/dmitrymomot/flaggate/pkg/httpserver"
	"github.com/dmitrymomot/flaggate/pkg/logger"
	"github.com/dmitrymomot/flaggate/pkg/pg"
	"github.com/dmitrymomot/flaggate/pkg/redis"
)

type appConfig struct {
	Environment string        `env:"APP_ENV" envDefault:"development"`
	AdminRole   string        `env:"ADMIN_ROLE" envDefault:"flag_admin"`
	CacheTTL    time.Duration `env:"FLAG_CACHE_TTL" envDefault:"30s"`

	HTTP  httpserver.Config
	PG    pg.Config
	Redis redis.Config
}

func main() {
	ctx := context.Background()

	var cfg appConfig
	config.MustLoad(&cfg)

	log := logger.New(
		logger.WithEnvironment(cfg.Environment, "flaggate"),
	)
	logger.SetAsDefault(log)

	if err := run(ctx, cfg, log); err != nil {
		log.ErrorContext(ctx, "service failed", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg appConfig, log *slog.Logger) error {
	pool, err := pg.Connect(ctx, cfg.PG)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pgstore.Migrate(ctx, pool); err != nil {
		return err
	}

	store := pgstore.New(pool)
	cache := flag.NewCache(cfg.CacheTTL)
	defer cache.Close()

	healthchecks := []func(context.Context) error{pg.Healthcheck(pool)}

	// Local cache invalidation always runs; redis fan-out to other
	// instances is wired only when REDIS_URL is set.
	invalidate := flag.InvalidateFunc(func(ctx context.Context, flagKey string) {
		cache.Invalidate(flagKey)
	})
	if cfg.Redis.Enabled() {
		client, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer client.Close()
		healthchecks = append(healthchecks, redis.Healthcheck(client))

		syncLog := log.With(logger.Component("redissync"))
		publisher := redissync.NewPublisher(client, syncLog)
		invalidate = func(ctx context.Context, flagKey string) {
			cache.Invalidate(flagKey)
			publisher.Invalidate(ctx, flagKey)
		}
		go func() {
			err := redissync.Subscribe(ctx, client, syncLog, func(flagKey string) {
				cache.Invalidate(flagKey)
			})
			if err != nil && ctx.Err() == nil {
				log.ErrorContext(ctx, "invalidation subscriber stopped", logger.Error(err))
			}
		}()
	}

	engine := flag.NewEngine(store, cache, flag.WithEngineLogger(log))
	recorder := flag.NewRecorder(store)
	service := flag.NewService(store, recorder,
		flag.WithServiceLogger(log),
		flag.WithInvalidate(invalidate),
	)
	overrides := flag.NewOverrideManager(store, recorder,
		flag.WithOverrideLogger(log),
		flag.WithOverrideInvalidate(invalidate),
	)

	router := chi.NewRouter()
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Get("/healthz", httpserver.HealthCheckHandler(ctx, log))
	router.Get("/readyz", httpserver.HealthCheckHandler(ctx, log, healthchecks...))
	router.Mount("/", flags.Router(flags.Options{
		Engine:    engine,
		Service:   service,
		Overrides: overrides,
		AdminRole: cfg.AdminRole,
		Logger:    log.With(logger.Component("flags")),
	}))

	srv := httpserver.NewFromConfig(cfg.HTTP,
		httpserver.WithLogger(log),
		httpserver.WithStartHook(func(l *slog.Logger) {
			l.Info("http server listening", slog.String("addr", cfg.HTTP.Addr))
		}),
		httpserver.WithStopHook(func(l *slog.Logger) {
			l.Info("http server stopped")
		}),
	)
	return srv.Run(ctx, router)
}
