package pool

import (
	"fmt"

	"github.com/holiman/uint256"

	"vaultPricer/internal/math/fixedpoint"
	"vaultPricer/internal/math/weighted"
	"vaultPricer/internal/model"
)

type weightedPair struct {
	weightIn  *uint256.Int
	weightOut *uint256.Int
}

type weightedHandler struct{}

func (weightedHandler) ParsePairData(meta model.PoolMetadata, state *model.PoolState, tokenIn, tokenOut string) (*PairData, error) {
	p, err := parseBase(meta, state, tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}
	in, _ := state.Token(p.TokenIn)
	out, _ := state.Token(p.TokenOut)
	if in.Weight == nil || out.Weight == nil || out.Weight.Sign() == 0 || in.Weight.Sign() == 0 {
		return nil, fmt.Errorf("weighted pool %s missing weights", meta.Address)
	}
	wp := &weightedPair{}
	if wp.weightIn, err = toU256(in.Weight); err != nil {
		return nil, err
	}
	if wp.weightOut, err = toU256(out.Weight); err != nil {
		return nil, err
	}
	p.family = wp
	return p, nil
}

// MaxTradeSize is 30% of the balance on the side the caller fixes.
func (weightedHandler) MaxTradeSize(p *PairData, side model.Side) (*uint256.Int, error) {
	switch side {
	case model.SideSell:
		limit, err := fixedpoint.MulDown(p.BalanceIn, weighted.MaxInRatio)
		if err != nil {
			return nil, err
		}
		return fixedpoint.DownscaleDown(limit, p.ScalingIn)
	case model.SideBuy:
		limit, err := fixedpoint.MulDown(p.BalanceOut, weighted.MaxOutRatio)
		if err != nil {
			return nil, err
		}
		return fixedpoint.DownscaleDown(limit, p.ScalingOut)
	default:
		return nil, model.ErrUnsupportedSide
	}
}

func (weightedHandler) QuoteGivenIn(p *PairData, amountIn *uint256.Int) (*uint256.Int, error) {
	wp := p.family.(*weightedPair)
	return sellWithFee(p, amountIn, func(in *uint256.Int) (*uint256.Int, error) {
		return weighted.CalcOutGivenIn(p.BalanceIn, wp.weightIn, p.BalanceOut, wp.weightOut, in)
	})
}

func (weightedHandler) QuoteGivenOut(p *PairData, amountOut *uint256.Int) (*uint256.Int, error) {
	wp := p.family.(*weightedPair)
	return buyWithFee(p, amountOut, func(out *uint256.Int) (*uint256.Int, error) {
		return weighted.CalcInGivenOut(p.BalanceIn, wp.weightIn, p.BalanceOut, wp.weightOut, out)
	})
}
