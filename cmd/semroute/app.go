package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/semroute/internal/config"
	dbRedis "github.com/kailas-cloud/semroute/internal/db/redis"
	"github.com/kailas-cloud/semroute/internal/domain"
	domcache "github.com/kailas-cloud/semroute/internal/domain/cache"
	"github.com/kailas-cloud/semroute/internal/domain/tag"
	logpkg "github.com/kailas-cloud/semroute/internal/logger"
	"github.com/kailas-cloud/semroute/internal/metrics"
	budgetrepo "github.com/kailas-cloud/semroute/internal/repository/budget"
	"github.com/kailas-cloud/semroute/internal/repository/embcache"
	kbrepo "github.com/kailas-cloud/semroute/internal/repository/knowledge"
	"github.com/kailas-cloud/semroute/internal/repository/pgcache"
	"github.com/kailas-cloud/semroute/internal/repository/rediscache"
	"github.com/kailas-cloud/semroute/internal/repository/sqlitecache"
	openaiTransport "github.com/kailas-cloud/semroute/internal/transport/openai"
	budgetuc "github.com/kailas-cloud/semroute/internal/usecase/budget"
	embeddinguc "github.com/kailas-cloud/semroute/internal/usecase/embedding"
	"github.com/kailas-cloud/semroute/internal/usecase/fallback"
	"github.com/kailas-cloud/semroute/internal/usecase/generation"
	healthuc "github.com/kailas-cloud/semroute/internal/usecase/health"
	knowledgeuc "github.com/kailas-cloud/semroute/internal/usecase/knowledge"
	"github.com/kailas-cloud/semroute/internal/usecase/lookup"
	routeuc "github.com/kailas-cloud/semroute/internal/usecase/route"
	"github.com/kailas-cloud/semroute/internal/usecase/scope"
	usageuc "github.com/kailas-cloud/semroute/internal/usecase/usage"
)

// cacheStore is what every response cache backend provides.
type cacheStore interface {
	lookup.Store
	Insert(ctx context.Context, e *domcache.Entry) error
	Count(ctx context.Context) (int64, error)
	Prune(ctx context.Context, maxEntries int64) (int64, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

// app is the composition root shared by the subcommands.
type app struct {
	cfg    config.Config
	env    string
	logger *zap.Logger

	redis       *dbRedis.Store
	cache       cacheStore
	cachePinger pinger
	knowledge   *kbrepo.Repo

	budget        embeddinguc.Budget
	baseEmbedder  *openaiTransport.Embedder
	docEmbedder   domain.Embedder
	queryEmbedder domain.Embedder

	closers []func()
}

func newApp(ctx context.Context, g *globalFlags) (*app, error) {
	cfg, err := g.load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logpkg.New(g.env, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	a := &app{cfg: cfg, env: g.env, logger: logger}
	a.closers = append(a.closers, func() { _ = logger.Sync() })

	metrics.RegisterProviderMetrics()
	metrics.RegisterRouteMetrics()

	if err := a.connectRedis(ctx); err != nil {
		a.close()
		return nil, err
	}
	if err := a.openCache(ctx); err != nil {
		a.close()
		return nil, err
	}
	a.knowledge = kbrepo.New(a.redis, kbrepo.Config{
		KeyPrefix: cfg.Database.KeyPrefix,
		Index:     cfg.Knowledge.Index,
		VectorDim: cfg.Embedding.Dimensions,
		HNSWM:     cfg.Cache.HNSWM,
		HNSWEF:    cfg.Cache.HNSWEFConstruct,
	})
	if err := a.knowledge.EnsureSchema(ctx); err != nil {
		a.close()
		return nil, fmt.Errorf("knowledge schema: %w", err)
	}

	a.budget = a.newBudget(ctx)
	a.buildEmbedders()
	return a, nil
}

func (a *app) connectRedis(ctx context.Context) error {
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:      a.cfg.Database.Addrs,
		Username:   a.cfg.Database.Username,
		Password:   a.cfg.Database.Password,
		DB:         a.cfg.Database.DB,
		ClientName: "semroute",
	})
	if err != nil {
		return fmt.Errorf("create redis store: %w", err)
	}
	a.closers = append(a.closers, store.Close)

	if err := store.WaitForReady(ctx, time.Duration(a.cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		return fmt.Errorf("redis not ready: %w", err)
	}
	a.redis = store
	a.logger.Info("Connected to redis", zap.Strings("addrs", a.cfg.Database.Addrs))
	return nil
}

// openCache selects the response cache backend.
func (a *app) openCache(ctx context.Context) error {
	c := a.cfg.Cache
	switch c.Driver {
	case "postgres":
		db, err := pgcache.Open(ctx, pgcache.ConnConfig{
			DSN:             c.Postgres.DSN,
			MaxOpenConns:    c.Postgres.MaxOpenConns,
			MaxIdleConns:    c.Postgres.MaxIdleConns,
			ConnMaxLifetime: time.Duration(c.Postgres.ConnMaxLifetimeSec) * time.Second,
		}, a.logger)
		if err != nil {
			return fmt.Errorf("open postgres cache: %w", err)
		}
		a.closers = append(a.closers, func() { _ = db.Close() })

		repo := pgcache.New(db, a.cfg.Embedding.Dimensions, c.Postgres.IVFLists)
		if err := repo.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("postgres cache schema: %w", err)
		}
		a.cache, a.cachePinger = repo, repo
	case "sqlite":
		repo, err := sqlitecache.Open(c.SQLite.Path)
		if err != nil {
			return fmt.Errorf("open sqlite cache: %w", err)
		}
		a.closers = append(a.closers, func() { _ = repo.Close() })
		a.cache, a.cachePinger = repo, repo
	default:
		repo := rediscache.New(a.redis, rediscache.Config{
			KeyPrefix: a.cfg.Database.KeyPrefix,
			VectorDim: a.cfg.Embedding.Dimensions,
			HNSW:      rediscache.HNSWConfig{M: c.HNSWM, EFConstruction: c.HNSWEFConstruct},
		})
		if err := repo.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("redis cache schema: %w", err)
		}
		a.cache, a.cachePinger = repo, a.redis
	}
	a.logger.Info("Response cache ready", zap.String("driver", c.Driver))
	return nil
}

// buildEmbedders assembles the decorator chain:
// OpenAI -> DimensionGuard -> Instrumented (budget) -> Cached -> Instruction (queries only).
func (a *app) buildEmbedders() {
	e := a.cfg.Embedding
	a.baseEmbedder = openaiTransport.NewEmbedder(openaiTransport.EmbedderConfig{
		Config: openaiTransport.Config{
			APIKey:  e.APIKey,
			BaseURL: e.BaseURL,
			Timeout: time.Duration(e.TimeoutSec) * time.Second,
		},
		Model:      e.Model,
		Dimensions: e.Dimensions,
	}, a.logger)

	var embedder domain.Embedder = domain.NewDimensionGuard(a.baseEmbedder, e.Dimensions)
	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, e.Model, a.budget, a.logger)
	if e.CacheEnabled {
		embedder = embcache.New(embedder, a.redis, embcache.Config{
			KeyPrefix: a.cfg.Database.KeyPrefix,
			Model:     e.Model,
			TTL:       time.Duration(e.CacheTTLHours) * time.Hour,
		}, metrics.EmbeddingCacheTotal, a.logger)
	}

	a.docEmbedder = embedder
	a.queryEmbedder = embedder
	if e.QueryInstruction != "" {
		a.queryEmbedder = domain.NewInstructionEmbedder(embedder, e.QueryInstruction)
	}
	a.logger.Info("Embedders created",
		zap.String("model", e.Model),
		zap.Int("dimensions", e.Dimensions),
		zap.Bool("cache", e.CacheEnabled),
	)
}

// newBudget returns the token budget shared by both providers, or nil when no limit is configured.
func (a *app) newBudget(ctx context.Context) embeddinguc.Budget {
	b := a.cfg.Budget
	if b.DailyTokenLimit <= 0 && b.MonthlyTokenLimit <= 0 {
		return nil
	}
	return budgetuc.NewTracker(
		budgetuc.Limits{Daily: b.DailyTokenLimit, Monthly: b.MonthlyTokenLimit},
		budgetuc.Action(b.Action), a.cfg.Database.KeyPrefix, a.logger,
	).WithStore(ctx, budgetrepo.New(a.redis))
}

// services are the use cases behind the router.
type services struct {
	router *routeuc.Service
	stats  *usageuc.Service
	health *healthuc.Service
}

func (a *app) services() services {
	cfg := a.cfg

	gen := openaiTransport.NewGenerator(openaiTransport.GeneratorConfig{
		Config: openaiTransport.Config{
			APIKey:  cfg.Generator.APIKey,
			BaseURL: cfg.Generator.BaseURL,
			Timeout: time.Duration(cfg.Generator.TimeoutSec) * time.Second,
		},
		Model:        cfg.Generator.Model,
		SystemPrompt: cfg.Generator.SystemPrompt,
		CompanyName:  cfg.Fallback.CompanyName,
		MaxTokens:    cfg.Generator.MaxTokens,
		Temperature:  cfg.Generator.Temperature,
	}, a.logger)

	var policy routeuc.ScopePolicy
	if cfg.Scope.Enabled {
		policy = scope.New(scope.Config{
			Enabled:          true,
			DefaultAllow:     cfg.Scope.AllowByDefault(),
			CompanyKeywords:  cfg.Scope.CompanyKeywords,
			RestrictedTopics: cfg.Scope.RestrictedTopics,
			AllowedTopics:    cfg.Scope.AllowedTopics,
		})
	}

	stats := usageuc.New(a.cache, a.logger)
	lk := lookup.New(a.cache, a.queryEmbedder, tag.New(cfg.Tagging.Keywords), lookup.Config{
		Threshold:       cfg.Cache.SimilarityThreshold,
		CandidateWindow: cfg.Cache.CandidateWindow,
	}, a.logger)

	router := routeuc.New(routeuc.Deps{
		Lookup:    lk,
		Writer:    a.cache,
		Scope:     policy,
		Knowledge: knowledgeuc.NewSearchService(a.queryEmbedder, a.knowledge, cfg.Knowledge.TopK),
		Generator: generation.NewInstrumentedGenerator(gen, cfg.Generator.Model, a.budget, a.logger),
		Fallback:  fallback.New(cfg.Fallback.CompanyName),
		Recorder:  stats,
	}, routeuc.Config{
		RequestTimeout:     cfg.Router.RequestTimeout(),
		WriteBackTimeout:   cfg.Router.WriteBackTimeout(),
		RelevanceThreshold: cfg.Knowledge.RelevanceThreshold,
	}, a.logger)

	return services{
		router: router,
		stats:  stats,
		health: healthuc.New(a.cachePinger, a.knowledge, a.baseEmbedder, a.logger),
	}
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
