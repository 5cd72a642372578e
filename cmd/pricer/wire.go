package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"vaultPricer/internal/cache"
	"vaultPricer/internal/chain"
	"vaultPricer/internal/config"
	"vaultPricer/internal/fetcher"
	"vaultPricer/internal/indexer"
	"vaultPricer/internal/metrics"
	"vaultPricer/internal/quote"
	"vaultPricer/internal/registry"
	"vaultPricer/internal/state"
	"vaultPricer/internal/storage/postgres"
)

// app is the wired pricing core. Fields past registry are nil when the
// command needs no chain access.
type app struct {
	registry *registry.Registry
	chain    *chain.Client
	store    *state.Store
	quotes   *quote.Orchestrator
	closers  []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func buildApp(ctx context.Context, cfg config.Config, withChain bool, logger *zap.Logger, m *metrics.Metrics) (*app, error) {
	a := &app{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	source, err := metadataSource(ctx, cfg.Registry, a)
	if err != nil {
		return nil, err
	}
	store, err := cacheStore(ctx, cfg.Registry, a)
	if err != nil {
		return nil, err
	}
	a.registry = registry.New(source, store, registry.Options{TTL: cfg.Registry.TTL, Logger: logger, Metrics: m})
	if err := a.registry.Refresh(ctx); err != nil {
		return nil, err
	}
	if err := a.registry.RefreshDisabled(ctx); err != nil {
		logger.Warn("disabled pool refresh failed", zap.Error(err))
	}

	var states quote.StateResolver
	if withChain {
		if cfg.Chain.RPCURL == "" {
			return nil, fmt.Errorf("rpc url is required")
		}
		vault, err := indexer.ParseAddress(cfg.Chain.Vault)
		if err != nil {
			return nil, fmt.Errorf("vault: %w", err)
		}
		multicall, err := indexer.ParseAddress(cfg.Chain.Multicall)
		if err != nil {
			return nil, fmt.Errorf("multicall: %w", err)
		}
		a.chain, err = chain.NewClient(ctx, cfg.Chain.RPCURL, multicall)
		if err != nil {
			return nil, fmt.Errorf("connect rpc: %w", err)
		}
		a.closers = append(a.closers, a.chain.Close)

		f := fetcher.New(a.chain, vault, fetcher.Options{
			ChunkSize:   cfg.Fetcher.ChunkSize,
			Concurrency: cfg.Fetcher.Concurrency,
			RPS:         cfg.Fetcher.RPS,
			Logger:      logger,
			Metrics:     m,
		})
		a.store = state.New(f, state.Options{
			HistoryDepth: cfg.State.HistoryDepth,
			FallbackTTL:  cfg.State.FallbackTTL,
			Disabled:     a.registry,
			Logger:       logger,
			Metrics:      m,
		})
		states = a.store
	}

	a.quotes = quote.New(a.registry, states, quote.Options{Prefix: cfg.IdentifierPrefix, Logger: logger, Metrics: m})
	ok = true
	return a, nil
}

func metadataSource(ctx context.Context, cfg config.RegistryConfig, a *app) (registry.MetadataSource, error) {
	switch {
	case cfg.PGDSN != "":
		pg, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, pg.Close)
		return pg, nil
	case cfg.MetadataFile != "":
		return registry.FileSource{Path: cfg.MetadataFile}, nil
	default:
		return nil, fmt.Errorf("pg-dsn or metadata-file is required")
	}
}

func cacheStore(ctx context.Context, cfg config.RegistryConfig, a *app) (cache.Store, error) {
	if cfg.RedisURL == "" {
		return cache.NewMemory(16), nil
	}
	r, err := cache.NewRedis(ctx, cfg.RedisURL, "")
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	a.closers = append(a.closers, func() { _ = r.Close() })
	return r, nil
}
