// Package app assembles the bot from configuration: stores, adapters, the
// flow controller and the dispatcher.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/astrobot/server/internal/auth"
	"github.com/astrobot/server/internal/config"
	"github.com/astrobot/server/internal/content"
	"github.com/astrobot/server/internal/db"
	"github.com/astrobot/server/internal/dispatch"
	"github.com/astrobot/server/internal/flow"
	"github.com/astrobot/server/internal/geo"
	httpapi "github.com/astrobot/server/internal/http"
	"github.com/astrobot/server/internal/http/handlers"
	"github.com/astrobot/server/internal/i18n"
	"github.com/astrobot/server/internal/menu"
	"github.com/astrobot/server/internal/middleware"
	"github.com/astrobot/server/internal/repo"
	"github.com/astrobot/server/internal/resilience"
	"github.com/astrobot/server/internal/subscription"
)

const (
	// adapterCallsPerTurn is the most wrapped adapter calls one turn makes:
	// subscription state, quota, content and the usage record.
	adapterCallsPerTurn = 4
	// requestSlack covers store reads and writes around the turn.
	requestSlack = 5 * time.Second
)

// App is the wired service.
type App struct {
	Config     *config.Config
	Catalog    *i18n.Catalog
	Store      repo.Store
	Ledger     *subscription.Service
	Dispatcher *dispatch.Dispatcher
	JWT        *auth.JWTService

	logger  *zap.Logger
	checks  map[string]handlers.Check
	limiter *middleware.RateLimiter
	closers []func()

	requestTimeout time.Duration
}

// New builds the app. The caller must Close it.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{
		Config: cfg,
		JWT:    auth.NewJWTService(cfg.JWTSecret),
		logger: logger,
		checks: map[string]handlers.Check{},
	}
	if err := a.build(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.Config

	catalog, err := i18n.NewCatalog(cfg.DefaultLanguage)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	a.Catalog = catalog

	policy := resilience.Policy{
		Timeout: cfg.AdapterTimeout,
		Retries: cfg.AdapterRetries,
		Backoff: cfg.AdapterBackoff,
	}
	a.requestTimeout = cfg.LockWait + adapterCallsPerTurn*policy.Budget() + requestSlack

	var subStore subscription.Store
	switch cfg.Store {
	case "memory":
		a.logger.Warn("using in-memory store, state is lost on restart")
		a.Store = repo.NewMemoryStore()
		subStore = subscription.NewMemoryStore()
	default:
		database, err := db.Open(ctx, cfg.DatabaseURL, a.logger)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		a.closers = append(a.closers, func() { _ = database.Close() })
		if err := db.Migrate(database); err != nil {
			return err
		}
		a.checks["postgres"] = database.PingContext
		a.Store = repo.NewPostgresStore(database)
		subStore = subscription.NewPostgresStore(sqlx.NewDb(database, "postgres"))
	}

	var (
		counter subscription.Counter
		seen    dispatch.SeenSet
	)
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return fmt.Errorf("connect redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		a.checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		counter = subscription.NewRedisCounter(client)
		seen = dispatch.NewRedisSeenSet(client)
	} else {
		a.logger.Warn("REDIS_ADDR not set, usage counters and dedup are process-local")
		counter = subscription.NewMemoryCounter()
		memSeen := dispatch.NewMemorySeenSet(time.Now)
		a.closers = append(a.closers, memSeen.Stop)
		seen = memSeen
	}

	a.Ledger = subscription.NewService(subStore, counter, cfg.FreeQuota, time.Now)

	var resolver geo.Resolver
	if cfg.GeocoderURL != "" {
		resolver = geo.NewOpenCageClient(cfg.GeocoderURL, cfg.GeocoderAPIKey, cfg.GeocoderRPS, a.logger)
	} else {
		a.logger.Warn("GEOCODER_URL not set, using the built-in place list")
		resolver = geo.NewStaticResolver(geo.DefaultPlaces())
	}

	var generator content.Generator = content.NewTemplateGenerator(catalog)
	gemini, err := content.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, a.logger)
	if err != nil {
		return err
	}
	if gemini != nil {
		a.closers = append(a.closers, gemini.Close)
		generator = gemini
	}

	fc := cfg.Flow()
	flowCfg := flow.Config{
		IdleTimeout:        fc.IdleTimeout,
		FreeQuota:          fc.FreeQuota,
		SupportedLanguages: fc.SupportedLanguages,
		DefaultLanguage:    fc.DefaultLanguage,
		CheckoutURL:        fc.CheckoutURL,
	}
	controller, err := flow.NewController(flowCfg, catalog,
		menu.NewEngine(menu.DefaultTree(), catalog),
		geo.WithPolicy(resolver, policy),
		content.WithPolicy(generator, policy),
		subscription.WithPolicy(a.Ledger, policy),
		a.logger)
	if err != nil {
		return fmt.Errorf("build flow controller: %w", err)
	}

	a.Dispatcher = dispatch.New(dispatch.Config{
		LockWait: cfg.LockWait,
		DedupTTL: cfg.DedupTTL,
	}, a.Store, controller, subscription.WithPolicy(a.Ledger, policy), seen, catalog, time.Now, a.logger)
	return nil
}

// RequestTimeout is how long a webhook turn may run: the user lock wait and
// the adapter calls of a content turn with all their retries.
func (a *App) RequestTimeout() time.Duration {
	return a.requestTimeout
}

// Router returns the HTTP API.
func (a *App) Router() http.Handler {
	if a.limiter == nil {
		a.limiter = middleware.NewRateLimiter(time.Minute, 600)
	}
	return httpapi.NewRouter(httpapi.RouterDeps{
		Webhook:        handlers.NewWebhookHandler(a.Dispatcher, a.logger),
		Admin:          handlers.NewAdminHandler(a.Store, a.Dispatcher, a.Ledger, a.logger),
		Health:         handlers.NewHealthHandler(a.checks),
		JWT:            a.JWT,
		WebhookLimiter: a.limiter,
		AdminOrigins:   a.Config.AdminOrigins,
		RequestTimeout: a.requestTimeout,
		Logger:         a.logger,
	})
}

// Close releases connections in reverse order of opening.
func (a *App) Close() {
	if a.limiter != nil {
		a.limiter.Stop()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
