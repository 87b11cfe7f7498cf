package commands

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/indexforge/backend/internal/analytics"
	"github.com/indexforge/backend/internal/backtest"
	"github.com/indexforge/backend/internal/contracts"
	"github.com/indexforge/backend/internal/engine"
	"github.com/indexforge/backend/internal/ingest"
	"github.com/indexforge/backend/internal/metrics"
	"github.com/indexforge/backend/internal/rebalance"
	"github.com/indexforge/backend/internal/selection"
	"github.com/indexforge/backend/internal/store"
	"github.com/indexforge/backend/internal/weighting"
	"github.com/indexforge/backend/pkg/config"
	"github.com/indexforge/backend/pkg/database"
	"github.com/indexforge/backend/pkg/logger"
	"github.com/indexforge/backend/pkg/redis"
)

// deps wires the full engine stack for a command run.
type deps struct {
	Config *config.Config
	Logger *logger.Logger
	DB     *database.DB
	Redis  *redis.Client

	Securities  contracts.SecurityRepository
	Prices      contracts.PriceRepository
	Definitions contracts.DefinitionRepository
	Memberships contracts.MembershipRepository
	Values      contracts.ValueRepository

	Strategies *weighting.Registry
	Selector   *selection.Selector
	Valuator   *engine.Valuator
	Rebalancer *rebalance.Rebalancer
	Backtester *backtest.Engine
	Refresher  *ingest.Refresher
	Metrics    *metrics.Metrics
}

// buildDeps loads configuration and connects the stack. Redis being
// unavailable downgrades caching; the database is required.
func buildDeps() (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	redisClient, err := redis.New(cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, caching disabled")
		redisClient = nil
	}
	var cache *redis.Cache
	if redisClient != nil {
		cache = redis.NewCache(redisClient, "indexforge")
	}

	repos := store.New(db.Pool)

	var engineMetrics *metrics.Metrics
	if cfg.MetricsEnabled {
		engineMetrics = metrics.New(prometheus.DefaultRegisterer)
	}

	analyticsCfg := analytics.Config{
		RiskFreeRate:       cfg.Analytics.RiskFreeRate,
		TradingDaysPerYear: cfg.Analytics.TradingDaysPerYear,
	}

	registry := weighting.NewRegistry()
	selector := selection.New(repos.Memberships(), repos.Prices(), repos.Securities(), log)

	valuator := engine.New(repos.Definitions(), repos.Values(), selector, registry, analyticsCfg, log).
		WithCache(cache, cfg.Redis.SummaryTTL).
		WithMetrics(engineMetrics)

	rebalancer := rebalance.New(repos.Definitions(), repos.Memberships(), repos.Securities(), selector, registry, log).
		WithCache(cache).
		WithMetrics(engineMetrics)

	backtester := backtest.New(repos.Definitions(), selector, valuator, rebalancer, analyticsCfg, log).
		WithMetrics(engineMetrics)

	provider := ingest.NewQuoteProvider(cfg.Provider, log)
	refresher := ingest.NewRefresher(provider, repos.Securities(), repos.Prices(), log)

	return &deps{
		Config:      cfg,
		Logger:      log,
		DB:          db,
		Redis:       redisClient,
		Securities:  repos.Securities(),
		Prices:      repos.Prices(),
		Definitions: repos.Definitions(),
		Memberships: repos.Memberships(),
		Values:      repos.Values(),
		Strategies:  registry,
		Selector:    selector,
		Valuator:    valuator,
		Rebalancer:  rebalancer,
		Backtester:  backtester,
		Refresher:   refresher,
		Metrics:     engineMetrics,
	}, nil
}

// Close releases the connections.
func (d *deps) Close() {
	if d.Redis != nil {
		_ = d.Redis.Close()
	}
	if d.DB != nil {
		d.DB.Close()
	}
}
