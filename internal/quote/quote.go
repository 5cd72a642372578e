// Package quote prices token pairs across every pool that can route them.
package quote

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"vaultPricer/internal/aggregate"
	"vaultPricer/internal/math/fixedpoint"
	"vaultPricer/internal/metrics"
	"vaultPricer/internal/model"
	"vaultPricer/internal/pool"
	"vaultPricer/internal/registry"
)

const (
	DefaultPrefix   = "balancerv2"
	DefaultExchange = "BalancerV2"

	// GasPerHop is the flat swap gas estimate charged for each hop.
	GasPerHop = 90_000
)

// Registry is the pool lookup the orchestrator needs.
type Registry interface {
	Pool(address string) (model.PoolMetadata, bool)
	PoolsForToken(token string) []model.PoolMetadata
	Candidates(tokenIn, tokenOut string) []model.PoolMetadata
}

// StateResolver returns pool states pinned to a block.
type StateResolver interface {
	Resolve(ctx context.Context, pools []model.PoolMetadata, block uint64) (map[string]*model.PoolState, map[string]error, error)
}

// Options tunes an Orchestrator. Zero values take defaults.
type Options struct {
	Prefix   string
	Exchange string
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
}

// Orchestrator answers quote requests against the registry and state store.
type Orchestrator struct {
	registry Registry
	states   StateResolver
	prefix   string
	exchange string
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

func New(reg Registry, states StateResolver, opts Options) *Orchestrator {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.Exchange == "" {
		opts.Exchange = DefaultExchange
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Discard()
	}
	return &Orchestrator{
		registry: reg,
		states:   states,
		prefix:   strings.ToLower(opts.Prefix),
		exchange: opts.Exchange,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
	}
}

// Identifier is the public id of a pool.
func (o *Orchestrator) Identifier(address string) string {
	return o.prefix + "_" + strings.ToLower(address)
}

// address accepts either a pool identifier or a bare address.
func (o *Orchestrator) address(id string) string {
	return strings.TrimPrefix(strings.ToLower(id), o.prefix+"_")
}

// GetPoolIdentifiers lists the pools that can price tokenIn to tokenOut on
// side. The block is accepted for interface parity; candidacy depends on
// metadata only.
func (o *Orchestrator) GetPoolIdentifiers(tokenIn, tokenOut string, side model.Side, _ uint64) []string {
	var ids []string
	for _, p := range o.candidates(tokenIn, tokenOut, side, nil) {
		ids = append(ids, o.Identifier(p.meta.Address))
	}
	return ids
}

type candidate struct {
	meta model.PoolMetadata
	path model.Path
}

func (o *Orchestrator) candidates(tokenIn, tokenOut string, side model.Side, allow []string) []candidate {
	var allowed map[string]bool
	if len(allow) > 0 {
		allowed = make(map[string]bool, len(allow))
		for _, id := range allow {
			allowed[o.address(id)] = true
		}
	}
	var out []candidate
	for _, meta := range o.registry.Candidates(tokenIn, tokenOut) {
		if allowed != nil && !allowed[meta.Address] {
			continue
		}
		path, err := registry.ResolvePath(meta, tokenIn, tokenOut, side)
		if err != nil {
			continue
		}
		out = append(out, candidate{meta: meta, path: path})
	}
	return out
}

// Request is one GetPrices call. Amounts are native units of the exact
// side's token, ascending, with a leading zero.
type Request struct {
	TokenIn  string
	TokenOut string
	Amounts  []*big.Int
	Side     model.Side
	Block    uint64
	Pools    []string
}

// GetPrices quotes every amount through each candidate pool. Pools that
// cannot price the pair are left out; the result is nil when none can.
// Only an unreachable upstream fails the call.
func (o *Orchestrator) GetPrices(ctx context.Context, req Request) ([]model.PoolPrices, error) {
	began := time.Now()
	defer func() { o.metrics.QuoteDuration.Observe(time.Since(began).Seconds()) }()

	if req.Side != model.SideSell && req.Side != model.SideBuy {
		return nil, nil
	}
	amounts, err := toU256s(req.Amounts)
	if err != nil || len(amounts) == 0 {
		return nil, nil
	}
	candidates := o.candidates(req.TokenIn, req.TokenOut, req.Side, req.Pools)
	if len(candidates) == 0 {
		return nil, nil
	}

	candidates, metas, hopPools := o.hopPools(candidates)
	if len(candidates) == 0 {
		return nil, nil
	}
	states, stateErrs, err := o.states.Resolve(ctx, hopPools, req.Block)
	if err != nil {
		return nil, err
	}

	var out []model.PoolPrices
	for _, c := range candidates {
		prices, err := o.pricePool(c, metas, states, stateErrs, amounts, req)
		if err != nil {
			o.degrade(c.meta.Address, err)
			continue
		}
		out = append(out, prices)
	}
	return out, nil
}

var errUnknownPool = errors.New("unknown pool")

// hopPools looks up every pool the candidate paths touch, once each. A
// candidate whose path names a pool the registry no longer knows is left out.
func (o *Orchestrator) hopPools(candidates []candidate) ([]candidate, map[string]model.PoolMetadata, []model.PoolMetadata) {
	metas := make(map[string]model.PoolMetadata)
	missing := make(map[string]bool)
	var kept []candidate
	for _, c := range candidates {
		var unknown string
		for _, addr := range c.path.Pools() {
			if _, ok := metas[addr]; ok {
				continue
			}
			if !missing[addr] {
				if meta, ok := o.registry.Pool(addr); ok {
					metas[addr] = meta
					continue
				}
				missing[addr] = true
			}
			unknown = addr
			break
		}
		if unknown != "" {
			o.degrade(c.meta.Address, fmt.Errorf("path uses %s: %w", unknown, errUnknownPool))
			continue
		}
		kept = append(kept, c)
	}

	seen := make(map[string]bool)
	var pools []model.PoolMetadata
	for _, c := range kept {
		for _, addr := range c.path.Pools() {
			if !seen[addr] {
				seen[addr] = true
				pools = append(pools, metas[addr])
			}
		}
	}
	sort.Slice(pools, func(i, j int) bool { return pools[i].Address < pools[j].Address })
	return kept, metas, pools
}

func (o *Orchestrator) pricePool(c candidate, metas map[string]model.PoolMetadata, states map[string]*model.PoolState, stateErrs map[string]error, amounts []*uint256.Int, req Request) (model.PoolPrices, error) {
	unit, err := o.unitAmount(c.meta, req)
	if err != nil {
		return model.PoolPrices{}, err
	}
	prices, err := o.threadPath(c.path, metas, states, stateErrs, amounts, req.Side)
	if err != nil {
		return model.PoolPrices{}, err
	}
	unitPrice, err := o.threadPath(c.path, metas, states, stateErrs, []*uint256.Int{unit}, req.Side)
	if err != nil {
		return model.PoolPrices{}, err
	}
	return model.PoolPrices{
		PoolID:  o.Identifier(c.meta.Address),
		Unit:    unitPrice[0].ToBig(),
		Prices:  toBigs(prices),
		Path:    c.path,
		GasCost: uint64(GasPerHop * len(c.path)),
	}, nil
}

// unitAmount is one whole token of the exact side's token.
func (o *Orchestrator) unitAmount(meta model.PoolMetadata, req Request) (*uint256.Int, error) {
	token := req.TokenIn
	if req.Side == model.SideBuy {
		token = req.TokenOut
	}
	m, ok := meta.MainToken(token)
	if !ok {
		return nil, fmt.Errorf("pool %s does not reach %s", meta.Address, token)
	}
	return new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(m.Decimals))), nil
}

// threadPath feeds amounts through each hop in order. For BUY the path is
// already reversed, so each hop turns required outputs into required inputs.
func (o *Orchestrator) threadPath(path model.Path, metas map[string]model.PoolMetadata, states map[string]*model.PoolState, stateErrs map[string]error, amounts []*uint256.Int, side model.Side) ([]*uint256.Int, error) {
	current := amounts
	for _, hop := range path {
		if err := stateErrs[hop.Pool]; err != nil {
			return nil, err
		}
		state, ok := states[hop.Pool]
		if !ok {
			return nil, fmt.Errorf("no state for pool %s", hop.Pool)
		}
		meta, ok := metas[hop.Pool]
		if !ok {
			return nil, fmt.Errorf("pool %s: %w", hop.Pool, errUnknownPool)
		}
		h, err := pool.For(meta.Type)
		if err != nil {
			return nil, err
		}
		pair, err := h.ParsePairData(meta, state, hop.TokenIn, hop.TokenOut)
		if err != nil {
			return nil, err
		}
		if current, err = pool.Quote(h, pair, side, current, o.logger); err != nil {
			return nil, err
		}
	}
	return current, nil
}

func (o *Orchestrator) degrade(address string, err error) {
	reason := "math"
	var (
		decodeErr      *model.DecodeError
		unsupportedErr *model.UnsupportedPoolTypeError
		convergenceErr *model.ConvergenceError
	)
	switch {
	case errors.As(err, &decodeErr):
		reason = "decode"
	case errors.As(err, &unsupportedErr):
		reason = "unsupported"
	case errors.As(err, &convergenceErr):
		reason = "convergence"
	case errors.Is(err, errUnknownPool):
		reason = "unknown_pool"
	}
	o.metrics.PoolDegradations.WithLabelValues(reason).Inc()
	o.logger.Debug("pool left out of quote", zap.String("pool", address), zap.String("reason", reason), zap.Error(err))
}

// GetTopPoolsForToken ranks the pools reaching token by liquidity.
func (o *Orchestrator) GetTopPoolsForToken(token string, limit int) []model.PoolLiquidity {
	return aggregate.Rank(o.exchange, token, o.registry.PoolsForToken(token), limit)
}

func toU256s(values []*big.Int) ([]*uint256.Int, error) {
	out := make([]*uint256.Int, len(values))
	for i, v := range values {
		if v == nil {
			return nil, fmt.Errorf("nil amount at %d", i)
		}
		u, err := fixedpoint.FromBig(v)
		if err != nil {
			return nil, err
		}
		out[i] = u
	}
	return out, nil
}

func toBigs(values []*uint256.Int) []*big.Int {
	out := make([]*big.Int, len(values))
	for i, v := range values {
		out[i] = v.ToBig()
	}
	return out
}
