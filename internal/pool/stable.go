package pool

import (
	"fmt"

	"github.com/holiman/uint256"

	"vaultPricer/internal/math/stable"
	"vaultPricer/internal/model"
)

type stablePair struct {
	amp       *uint256.Int
	balances  []*uint256.Int
	invariant *uint256.Int
}

func parseStable(meta model.PoolMetadata, state *model.PoolState, balances []*uint256.Int) (*stablePair, error) {
	if state.Amp == nil || state.Amp.Sign() == 0 {
		return nil, fmt.Errorf("stable pool %s missing amplification", meta.Address)
	}
	amp, err := toU256(state.Amp)
	if err != nil {
		return nil, err
	}
	invariant, err := stable.CalculateInvariant(amp, balances)
	if err != nil {
		return nil, err
	}
	return &stablePair{amp: amp, balances: balances, invariant: invariant}, nil
}

type stableHandler struct{}

func (stableHandler) ParsePairData(meta model.PoolMetadata, state *model.PoolState, tokenIn, tokenOut string) (*PairData, error) {
	p, err := parseBase(meta, state, tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}
	balances, err := upscaledBalances(meta, state)
	if err != nil {
		return nil, err
	}
	sp, err := parseStable(meta, state, balances)
	if err != nil {
		return nil, err
	}
	p.family = sp
	return p, nil
}

func (stableHandler) MaxTradeSize(p *PairData, side model.Side) (*uint256.Int, error) {
	return outBalanceLimit(p, side, stableLimitFactor)
}

func (stableHandler) QuoteGivenIn(p *PairData, amountIn *uint256.Int) (*uint256.Int, error) {
	sp := p.family.(*stablePair)
	return sellWithFee(p, amountIn, func(in *uint256.Int) (*uint256.Int, error) {
		return stable.CalcOutGivenIn(sp.amp, sp.balances, p.IndexIn, p.IndexOut, in, sp.invariant)
	})
}

func (stableHandler) QuoteGivenOut(p *PairData, amountOut *uint256.Int) (*uint256.Int, error) {
	sp := p.family.(*stablePair)
	return buyWithFee(p, amountOut, func(out *uint256.Int) (*uint256.Int, error) {
		return stable.CalcInGivenOut(sp.amp, sp.balances, p.IndexIn, p.IndexOut, out, sp.invariant)
	})
}
