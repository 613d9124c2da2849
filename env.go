package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/shelfscan/shelfd/internal/aggregator"
	"github.com/shelfscan/shelfd/internal/cache"
	"github.com/shelfscan/shelfd/internal/culture"
	"github.com/shelfscan/shelfd/internal/jobs"
	"github.com/shelfscan/shelfd/internal/metrics"
	"github.com/shelfscan/shelfd/internal/providers"
	"github.com/shelfscan/shelfd/internal/ratelimit"
	"github.com/shelfscan/shelfd/internal/results"
)

// env is the process's fully wired set of components, built once at
// startup and threaded through every handler and worker.
type env struct {
	cache   *cache.Cache
	engine  *aggregator.Engine
	vision  providers.ImageDetector
	jobs    *jobs.Manager
	results *results.Store
	limiter *ratelimit.Limiter

	registry    *prometheus.Registry
	cacheMx     *metrics.CacheMetrics
	providerMx  *metrics.ProviderMetrics
	jobMx       *metrics.JobMetrics
	ratelimitMx *metrics.RateLimitMetrics

	scanConfidence float64
}

// newEnv wires every component from scratch. Construction order matters:
// the cache must exist before any provider adapter that rate-gates through
// it, and the aggregator must exist after every adapter it fans out to.
func newEnv(ctx context.Context, cfg rootConfig) (*env, error) {
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	var coldClient cache.S3Client
	c, err := cache.New(rdb, coldClient, cfg.ColdBucket)
	if err != nil {
		return nil, fmt.Errorf("building cache: %w", err)
	}

	isbndb := providers.NewISBNdb(cfg.ISBNdbKey, c.KV())
	ol := providers.NewOpenLibrary()
	inv := providers.NewInventaire(cfg.InventaireEndpoint)
	wikidata := providers.NewWikidata()
	vision := providers.NewShelfVision(cfg.OpenAIKey, cfg.VisionModel)
	scrape := providers.NewCoverScrape()

	cultureEnricher := culture.New(wikidata, c.KV())

	engine := aggregator.New(aggregator.Config{
		Cache:       c,
		ISBNdb:      isbndb,
		OpenLibrary: ol,
		Inventaire:  inv,
		Culture:     cultureEnricher,
		Cover:       scrape,
	})

	repo, err := newJobRepository(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("building job repository: %w", err)
	}
	tokens := jobs.NewTokenIssuer([]byte(cfg.JWTSecret))
	jobMgr := jobs.New(repo, tokens)

	resultsStore := results.New(c)
	limiter := ratelimit.New(c)

	reg := metrics.NewRegistry()

	return &env{
		cache:       c,
		engine:      engine,
		vision:      vision,
		jobs:        jobMgr,
		results:     resultsStore,
		limiter:     limiter,
		registry:    reg,
		cacheMx:     metrics.NewCacheMetrics(reg),
		providerMx:  metrics.NewProviderMetrics(reg),
		jobMx:       metrics.NewJobMetrics(reg),
		ratelimitMx: metrics.NewRateLimitMetrics(reg),

		scanConfidence: cfg.ScanConfidence,
	}, nil
}

// newJobRepository picks the durable backend named by cfg: SQLite for
// local/dev runs (the default, requiring no external service) or Postgres
// when PostgresHost is set, mirroring the teacher's pgconfig-always-on
// habit generalized to an optional dependency.
func newJobRepository(ctx context.Context, cfg rootConfig) (jobs.Repository, error) {
	if cfg.PostgresHost != "" {
		dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
			cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresDatabase)
		return jobs.NewPGRepository(ctx, dsn)
	}
	return jobs.NewSQLiteRepository(cfg.SQLitePath)
}
