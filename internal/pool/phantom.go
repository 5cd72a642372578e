package pool

import (
	"fmt"

	"github.com/holiman/uint256"

	"vaultPricer/internal/math/stable"
	"vaultPricer/internal/model"
)

type phantomShape int

const (
	shapeTokenToToken phantomShape = iota
	shapeTokenToBpt
	shapeBptToToken
)

type phantomPair struct {
	stablePair
	shape         phantomShape
	indexIn       int // positions with the liquidity token removed
	indexOut      int
	virtualSupply *uint256.Int
}

type phantomHandler struct{}

// ParsePairData strips the preminted liquidity token from the balance set
// and classifies the pair.
func (phantomHandler) ParsePairData(meta model.PoolMetadata, state *model.PoolState, tokenIn, tokenOut string) (*PairData, error) {
	p, err := parseBase(meta, state, tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}
	bptIndex := state.BptIndex
	if bptIndex < 0 || bptIndex >= len(state.TokenOrder) {
		return nil, fmt.Errorf("phantom pool %s has no liquidity token index", meta.Address)
	}
	all, err := upscaledBalances(meta, state)
	if err != nil {
		return nil, err
	}
	supply, err := virtualSupply(all[bptIndex])
	if err != nil {
		return nil, err
	}

	balances := make([]*uint256.Int, 0, len(all)-1)
	balances = append(balances, all[:bptIndex]...)
	balances = append(balances, all[bptIndex+1:]...)
	sp, err := parseStable(meta, state, balances)
	if err != nil {
		return nil, err
	}

	pp := &phantomPair{
		stablePair:    *sp,
		indexIn:       skipIndex(p.IndexIn, bptIndex),
		indexOut:      skipIndex(p.IndexOut, bptIndex),
		virtualSupply: supply,
	}
	switch {
	case p.IndexIn == bptIndex:
		pp.shape = shapeBptToToken
	case p.IndexOut == bptIndex:
		pp.shape = shapeTokenToBpt
		p.BalanceOut = supply
	default:
		pp.shape = shapeTokenToToken
	}
	p.family = pp
	return p, nil
}

func skipIndex(i, removed int) int {
	if i > removed {
		return i - 1
	}
	return i
}

func (phantomHandler) MaxTradeSize(p *PairData, side model.Side) (*uint256.Int, error) {
	return outBalanceLimit(p, side, stableLimitFactor)
}

func (phantomHandler) QuoteGivenIn(p *PairData, amountIn *uint256.Int) (*uint256.Int, error) {
	pp := p.family.(*phantomPair)
	switch pp.shape {
	case shapeTokenToBpt:
		return sell(p, amountIn, func(in *uint256.Int) (*uint256.Int, error) {
			amounts := pp.singleAmount(pp.indexIn, in)
			return stable.CalcBptOutGivenExactTokensIn(pp.amp, pp.balances, amounts, pp.virtualSupply, pp.invariant, p.SwapFee)
		})
	case shapeBptToToken:
		return sell(p, amountIn, func(in *uint256.Int) (*uint256.Int, error) {
			return stable.CalcTokenOutGivenExactBptIn(pp.amp, pp.balances, pp.indexOut, in, pp.virtualSupply, pp.invariant, p.SwapFee)
		})
	default:
		return sellWithFee(p, amountIn, func(in *uint256.Int) (*uint256.Int, error) {
			return stable.CalcOutGivenIn(pp.amp, pp.balances, pp.indexIn, pp.indexOut, in, pp.invariant)
		})
	}
}

func (phantomHandler) QuoteGivenOut(p *PairData, amountOut *uint256.Int) (*uint256.Int, error) {
	pp := p.family.(*phantomPair)
	switch pp.shape {
	case shapeTokenToBpt:
		return buy(p, amountOut, func(out *uint256.Int) (*uint256.Int, error) {
			return stable.CalcTokenInGivenExactBptOut(pp.amp, pp.balances, pp.indexIn, out, pp.virtualSupply, pp.invariant, p.SwapFee)
		})
	case shapeBptToToken:
		return buy(p, amountOut, func(out *uint256.Int) (*uint256.Int, error) {
			amounts := pp.singleAmount(pp.indexOut, out)
			return stable.CalcBptInGivenExactTokensOut(pp.amp, pp.balances, amounts, pp.virtualSupply, pp.invariant, p.SwapFee)
		})
	default:
		return buyWithFee(p, amountOut, func(out *uint256.Int) (*uint256.Int, error) {
			return stable.CalcInGivenOut(pp.amp, pp.balances, pp.indexIn, pp.indexOut, out, pp.invariant)
		})
	}
}

func (pp *phantomPair) singleAmount(index int, amount *uint256.Int) []*uint256.Int {
	amounts := make([]*uint256.Int, len(pp.balances))
	for i := range amounts {
		amounts[i] = new(uint256.Int)
	}
	amounts[index] = amount
	return amounts
}
