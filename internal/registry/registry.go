// Package registry ingests pool metadata, links nested pools and resolves
// the hop paths used to price a pair through any pool.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"vaultPricer/internal/cache"
	"vaultPricer/internal/metrics"
	"vaultPricer/internal/model"
)

const (
	PoolsKey    = "pricer:pools"
	DisabledKey = "pricer:disabled-pools"

	DefaultTTL = 5 * time.Minute
)

// Options tunes a Registry. Zero values take defaults.
type Options struct {
	TTL     time.Duration
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Registry holds the latest pool list. Lookups read an immutable view and
// never block on a refresh.
type Registry struct {
	source  MetadataSource
	store   cache.Store
	ttl     time.Duration
	logger  *zap.Logger
	metrics *metrics.Metrics

	view     atomic.Pointer[view]
	disabled atomic.Pointer[map[string]struct{}]
}

func New(source MetadataSource, store cache.Store, opts Options) *Registry {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Discard()
	}
	if store == nil {
		store = cache.NewMemory(16)
	}
	return &Registry{
		source:  source,
		store:   store,
		ttl:     opts.TTL,
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}
}

// Refresh reloads the pool list, from the TTL cache when it holds one and
// from the metadata source otherwise. The previous view stays in place on
// failure.
func (r *Registry) Refresh(ctx context.Context) error {
	var snap Snapshot
	hit, err := r.cached(ctx, PoolsKey, &snap)
	if err != nil {
		r.logger.Warn("read cached pool list failed", zap.Error(err))
	}
	if !hit {
		if snap, err = r.source.FetchPools(ctx); err != nil {
			r.metrics.RegistryRefreshes.WithLabelValues("pools", "error").Inc()
			return &model.UpstreamUnavailableError{Source: "metadata", Err: err}
		}
		r.remember(ctx, PoolsKey, snap)
	}

	v := buildView(snap, r.logger)
	r.view.Store(v)
	r.metrics.RegistryRefreshes.WithLabelValues("pools", "ok").Inc()
	r.metrics.RegistryPools.Set(float64(len(v.pools)))
	r.logger.Debug("registry refreshed", zap.Int("pools", len(v.pools)), zap.Bool("cached", hit))
	return nil
}

// RefreshDisabled reloads the list of pools excluded from event sync.
func (r *Registry) RefreshDisabled(ctx context.Context) error {
	var list []string
	hit, err := r.cached(ctx, DisabledKey, &list)
	if err != nil {
		r.logger.Warn("read cached disabled list failed", zap.Error(err))
	}
	if !hit {
		if list, err = r.source.DisabledPools(ctx); err != nil {
			r.metrics.RegistryRefreshes.WithLabelValues("disabled", "error").Inc()
			return &model.UpstreamUnavailableError{Source: "metadata", Err: err}
		}
		r.remember(ctx, DisabledKey, list)
	}

	set := make(map[string]struct{}, len(list))
	for _, addr := range list {
		set[strings.ToLower(addr)] = struct{}{}
	}
	r.disabled.Store(&set)
	r.metrics.RegistryRefreshes.WithLabelValues("disabled", "ok").Inc()
	r.metrics.DisabledPools.Set(float64(len(set)))
	return nil
}

// Run refreshes both lists on independent tickers until ctx ends, so a
// slow pool refresh never delays the disabled list. Failures are logged and
// the last good lists kept.
func (r *Registry) Run(ctx context.Context, poolsEvery, disabledEvery time.Duration) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.every(gctx, poolsEvery, "registry refresh failed", r.Refresh)
	})
	g.Go(func() error {
		return r.every(gctx, disabledEvery, "disabled pool refresh failed", r.RefreshDisabled)
	})
	return g.Wait()
}

func (r *Registry) every(ctx context.Context, interval time.Duration, failure string, refresh func(context.Context) error) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := refresh(ctx); err != nil {
				r.logger.Warn(failure, zap.Error(err))
			}
		}
	}
}

func (r *Registry) cached(ctx context.Context, key string, dst any) (bool, error) {
	raw, ok, err := r.store.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return true, nil
}

func (r *Registry) remember(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		r.logger.Warn("encode cache value failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := r.store.Set(ctx, key, raw, r.ttl); err != nil {
		r.logger.Warn("write cache failed", zap.String("key", key), zap.Error(err))
	}
}

// Ready reports whether a pool list has been ingested.
func (r *Registry) Ready() bool {
	return r.view.Load() != nil
}

// Pool looks up a pool by address.
func (r *Registry) Pool(address string) (model.PoolMetadata, bool) {
	v := r.view.Load()
	if v == nil {
		return model.PoolMetadata{}, false
	}
	i, ok := v.byAddress[strings.ToLower(address)]
	if !ok {
		return model.PoolMetadata{}, false
	}
	return v.pools[i], true
}

// Pools returns every pool ordered by address.
func (r *Registry) Pools() []model.PoolMetadata {
	v := r.view.Load()
	if v == nil {
		return nil
	}
	return append([]model.PoolMetadata(nil), v.pools...)
}

// PoolsForToken returns the pools that reach token directly or through
// nesting.
func (r *Registry) PoolsForToken(token string) []model.PoolMetadata {
	v := r.view.Load()
	if v == nil {
		return nil
	}
	idx := v.byToken[strings.ToLower(token)]
	out := make([]model.PoolMetadata, len(idx))
	for i, j := range idx {
		out[i] = v.pools[j]
	}
	return out
}

// Candidates returns the pools with a valid path between the two tokens.
func (r *Registry) Candidates(tokenIn, tokenOut string) []model.PoolMetadata {
	var out []model.PoolMetadata
	for _, p := range r.PoolsForToken(tokenIn) {
		if _, err := ResolvePath(p, tokenIn, tokenOut, model.SideSell); err == nil {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// ResolvePath looks the pool up by address and resolves its path.
func (r *Registry) ResolvePath(pool, tokenIn, tokenOut string, side model.Side) (model.Path, error) {
	meta, ok := r.Pool(pool)
	if !ok {
		return nil, fmt.Errorf("%w: unknown pool %s", ErrNoPath, pool)
	}
	return ResolvePath(meta, tokenIn, tokenOut, side)
}

// IsDisabled reports whether a pool is excluded from event sync.
func (r *Registry) IsDisabled(address string) bool {
	set := r.disabled.Load()
	if set == nil {
		return false
	}
	_, ok := (*set)[strings.ToLower(address)]
	return ok
}
