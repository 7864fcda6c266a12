package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/biblio-cli/internal/cache"
	"github.com/sells-group/biblio-cli/internal/collab"
	"github.com/sells-group/biblio-cli/internal/config"
	"github.com/sells-group/biblio-cli/internal/dedupe"
	"github.com/sells-group/biblio-cli/internal/doi"
	"github.com/sells-group/biblio-cli/internal/extract"
	"github.com/sells-group/biblio-cli/internal/gateway"
	"github.com/sells-group/biblio-cli/internal/pipeline"
	"github.com/sells-group/biblio-cli/internal/quality"
	"github.com/sells-group/biblio-cli/pkg/crossref"
	"github.com/sells-group/biblio-cli/pkg/llmcite"
	"github.com/sells-group/biblio-cli/pkg/openalex"
)

// env holds the assembled pipeline services. Each service is a plain
// dependency-injected value owned here; nothing is reachable through
// package-level globals.
type env struct {
	Store       cache.Store
	Gateway     *gateway.Gateway
	Validator   *doi.Validator
	Enricher    *doi.Enricher
	Detector    *dedupe.Detector
	Assessor    *quality.Assessor
	Matcher     *extract.Matcher
	Coordinator *collab.Coordinator
	Pipeline    *pipeline.Pipeline
}

// initEnv wires every service from config. Close releases the cache.
func initEnv(ctx context.Context) (*env, error) {
	store, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	gw := gateway.New(gateway.Options{
		BaseURLs: map[gateway.Provider]string{
			gateway.ProviderCrossref: cfg.Crossref.BaseURL,
			gateway.ProviderOpenAlex: cfg.OpenAlex.BaseURL,
		},
		Rates:     providerRates(),
		UserAgent: userAgent(),
		Timeout:   time.Duration(cfg.Gateway.TimeoutSecs) * time.Second,
	})

	registry := crossref.NewClient(gw)
	graph := openalex.NewClient(gw)

	ttl := time.Duration(cfg.Cache.TTLHours) * time.Hour
	validator := doi.NewValidator(registry, graph, store, ttl)
	enricher := doi.NewEnricher(validator, nil)

	weights, err := quality.LoadWeights(cfg.Quality.WeightsPath)
	if err != nil {
		return nil, err
	}
	assessor := quality.NewAssessor(weights, nil)
	if cfg.Quality.CheckLinks {
		assessor.WithLinkChecker(quality.NewHTTPLinkChecker(0))
	}

	detector := dedupe.NewDetector(cfg.Dedupe)

	var scorer extract.Scorer
	if cfg.Match.EmbeddingURL != "" {
		scorer = extract.NewEmbeddingScorer(cfg.Match.EmbeddingURL, cfg.Match.EmbeddingModel)
		zap.L().Info("matching with embedding scorer", zap.String("url", cfg.Match.EmbeddingURL))
	}
	matcher := extract.NewMatcher(scorer, cfg.Match)

	var fallback llmcite.Generator
	if cfg.LLM.Key != "" {
		opts := []llmcite.Option{}
		if cfg.LLM.Model != "" {
			opts = append(opts, llmcite.WithModel(cfg.LLM.Model))
		}
		fallback = llmcite.NewClient(cfg.LLM.Key, opts...)
	}

	p := pipeline.New(pipeline.Options{
		Extractor:      extract.NewExtractor(),
		Matcher:        matcher,
		Enricher:       enricher,
		Detector:       detector,
		Assessor:       assessor,
		Fallback:       fallback,
		Store:          store,
		Counter:        gw,
		MaxReferences:  cfg.Pipeline.MaxReferences,
		MaxConcurrency: cfg.Pipeline.MaxConcurrency,
	})

	return &env{
		Store:       store,
		Gateway:     gw,
		Validator:   validator,
		Enricher:    enricher,
		Detector:    detector,
		Assessor:    assessor,
		Matcher:     matcher,
		Coordinator: collab.NewCoordinator(store),
		Pipeline:    p,
	}, nil
}

func (e *env) Close() {
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("cache close failed", zap.Error(err))
	}
}

// initStore opens the configured cache backend.
func initStore(ctx context.Context) (cache.Store, error) {
	switch cfg.Cache.Driver {
	case "sqlite", "":
		st, err := cache.NewSQLite(cfg.Cache.Path)
		if err != nil {
			return nil, eris.Wrap(err, "open sqlite cache")
		}
		return st, nil
	case "postgres":
		st, err := cache.NewPostgres(ctx, cfg.Cache.DatabaseURL)
		if err != nil {
			return nil, eris.Wrap(err, "open postgres cache")
		}
		return st, nil
	case "memory":
		return cache.NewMemory(), nil
	default:
		return nil, eris.Errorf("unknown cache driver %q", cfg.Cache.Driver)
	}
}

func providerRates() map[string]config.ProviderLimit {
	rates := config.DefaultProviderRates()
	for name, lim := range cfg.Gateway.ProviderRates {
		rates[name] = lim
	}
	return rates
}

// userAgent appends the polite-pool contact when configured; Crossref
// uses it to route traffic to the polite pool.
func userAgent() string {
	ua := cfg.Gateway.UserAgent
	if cfg.Crossref.MailTo != "" {
		ua += " (mailto:" + cfg.Crossref.MailTo + ")"
	}
	return ua
}
