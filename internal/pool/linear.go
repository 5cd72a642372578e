package pool

import (
	"fmt"

	"github.com/holiman/uint256"

	"vaultPricer/internal/math/linear"
	"vaultPricer/internal/model"
)

type linearRole int

const (
	roleMain linearRole = iota
	roleWrapped
	roleBpt
)

type linearPair struct {
	params         linear.Params
	roleIn         linearRole
	roleOut        linearRole
	mainBalance    *uint256.Int
	wrappedBalance *uint256.Int
	virtualSupply  *uint256.Int
}

type linearHandler struct{}

func (linearHandler) ParsePairData(meta model.PoolMetadata, state *model.PoolState, tokenIn, tokenOut string) (*PairData, error) {
	p, err := parseBase(meta, state, tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}
	n := len(state.TokenOrder)
	for _, i := range []int{state.MainIndex, state.WrappedIndex, state.BptIndex} {
		if i < 0 || i >= n {
			return nil, fmt.Errorf("linear pool %s has invalid token indices", meta.Address)
		}
	}
	balances, err := upscaledBalances(meta, state)
	if err != nil {
		return nil, err
	}
	supply, err := virtualSupply(balances[state.BptIndex])
	if err != nil {
		return nil, err
	}
	lower, err := toU256(state.LowerTarget)
	if err != nil {
		return nil, err
	}
	upper, err := toU256(state.UpperTarget)
	if err != nil {
		return nil, err
	}

	role := func(i int) linearRole {
		switch i {
		case state.MainIndex:
			return roleMain
		case state.WrappedIndex:
			return roleWrapped
		default:
			return roleBpt
		}
	}
	lp := &linearPair{
		params:         linear.Params{Fee: p.SwapFee, LowerTarget: lower, UpperTarget: upper},
		roleIn:         role(p.IndexIn),
		roleOut:        role(p.IndexOut),
		mainBalance:    balances[state.MainIndex],
		wrappedBalance: balances[state.WrappedIndex],
		virtualSupply:  supply,
	}
	if lp.roleOut == roleBpt {
		p.BalanceOut = supply
	}
	p.family = lp
	return p, nil
}

func (linearHandler) MaxTradeSize(p *PairData, side model.Side) (*uint256.Int, error) {
	return outBalanceLimit(p, side, stableLimitFactor)
}

func (linearHandler) QuoteGivenIn(p *PairData, amountIn *uint256.Int) (*uint256.Int, error) {
	lp := p.family.(*linearPair)
	return sell(p, amountIn, func(in *uint256.Int) (*uint256.Int, error) {
		switch {
		case lp.roleIn == roleMain && lp.roleOut == roleBpt:
			return linear.CalcBptOutPerMainIn(in, lp.mainBalance, lp.wrappedBalance, lp.virtualSupply, lp.params)
		case lp.roleIn == roleBpt && lp.roleOut == roleMain:
			return linear.CalcMainOutPerBptIn(in, lp.mainBalance, lp.wrappedBalance, lp.virtualSupply, lp.params)
		case lp.roleIn == roleMain && lp.roleOut == roleWrapped:
			return linear.CalcWrappedOutPerMainIn(in, lp.mainBalance, lp.params)
		case lp.roleIn == roleWrapped && lp.roleOut == roleMain:
			return linear.CalcMainOutPerWrappedIn(in, lp.mainBalance, lp.params)
		case lp.roleIn == roleWrapped && lp.roleOut == roleBpt:
			return linear.CalcBptOutPerWrappedIn(in, lp.mainBalance, lp.wrappedBalance, lp.virtualSupply, lp.params)
		case lp.roleIn == roleBpt && lp.roleOut == roleWrapped:
			return linear.CalcWrappedOutPerBptIn(in, lp.mainBalance, lp.wrappedBalance, lp.virtualSupply, lp.params)
		}
		return nil, fmt.Errorf("linear pool %s: unsupported pair shape", p.Pool)
	})
}

func (linearHandler) QuoteGivenOut(p *PairData, amountOut *uint256.Int) (*uint256.Int, error) {
	lp := p.family.(*linearPair)
	return buy(p, amountOut, func(out *uint256.Int) (*uint256.Int, error) {
		switch {
		case lp.roleIn == roleMain && lp.roleOut == roleBpt:
			return linear.CalcMainInPerBptOut(out, lp.mainBalance, lp.wrappedBalance, lp.virtualSupply, lp.params)
		case lp.roleIn == roleBpt && lp.roleOut == roleMain:
			return linear.CalcBptInPerMainOut(out, lp.mainBalance, lp.wrappedBalance, lp.virtualSupply, lp.params)
		case lp.roleIn == roleMain && lp.roleOut == roleWrapped:
			return linear.CalcMainInPerWrappedOut(out, lp.mainBalance, lp.params)
		case lp.roleIn == roleWrapped && lp.roleOut == roleMain:
			return linear.CalcWrappedInPerMainOut(out, lp.mainBalance, lp.params)
		case lp.roleIn == roleWrapped && lp.roleOut == roleBpt:
			return linear.CalcWrappedInPerBptOut(out, lp.mainBalance, lp.wrappedBalance, lp.virtualSupply, lp.params)
		case lp.roleIn == roleBpt && lp.roleOut == roleWrapped:
			return linear.CalcBptInPerWrappedOut(out, lp.mainBalance, lp.wrappedBalance, lp.virtualSupply, lp.params)
		}
		return nil, fmt.Errorf("linear pool %s: unsupported pair shape", p.Pool)
	})
}
