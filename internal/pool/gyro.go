package pool

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"vaultPricer/internal/math/gyro"
	"vaultPricer/internal/model"
)

type gyroPair struct {
	virtualIn  *uint256.Int
	virtualOut *uint256.Int
}

func gyroParam(meta model.PoolMetadata, name, value string) (*uint256.Int, error) {
	if value == "" {
		return nil, fmt.Errorf("gyro pool %s missing %s", meta.Address, name)
	}
	v, err := uint256.FromDecimal(value)
	if err != nil {
		return nil, fmt.Errorf("gyro pool %s %s: %w", meta.Address, name, err)
	}
	return v, nil
}

func gyroMaxTradeSize(p *PairData, side model.Side) (*uint256.Int, error) {
	return outBalanceLimit(p, side, gyroLimitFactor)
}

func gyroQuoteGivenIn(p *PairData, amountIn *uint256.Int) (*uint256.Int, error) {
	gp := p.family.(*gyroPair)
	return sellWithFee(p, amountIn, func(in *uint256.Int) (*uint256.Int, error) {
		return gyro.CalcOutGivenIn(p.BalanceIn, p.BalanceOut, in, gp.virtualIn, gp.virtualOut)
	})
}

func gyroQuoteGivenOut(p *PairData, amountOut *uint256.Int) (*uint256.Int, error) {
	gp := p.family.(*gyroPair)
	return buyWithFee(p, amountOut, func(out *uint256.Int) (*uint256.Int, error) {
		return gyro.CalcInGivenOut(p.BalanceIn, p.BalanceOut, out, gp.virtualIn, gp.virtualOut)
	})
}

type gyro2Handler struct{}

func (gyro2Handler) ParsePairData(meta model.PoolMetadata, state *model.PoolState, tokenIn, tokenOut string) (*PairData, error) {
	if meta.Gyro == nil {
		return nil, fmt.Errorf("gyro pool %s missing curve parameters", meta.Address)
	}
	p, err := parseBase(meta, state, tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}
	sqrtAlpha, err := gyroParam(meta, "sqrtAlpha", meta.Gyro.SqrtAlpha)
	if err != nil {
		return nil, err
	}
	sqrtBeta, err := gyroParam(meta, "sqrtBeta", meta.Gyro.SqrtBeta)
	if err != nil {
		return nil, err
	}
	sqrtAlpha, sqrtBeta, err = gyro.OrientedParams2(sqrtAlpha, sqrtBeta, p.IndexIn == 0)
	if err != nil {
		return nil, err
	}
	invariant, err := gyro.Invariant2(p.BalanceIn, p.BalanceOut, sqrtAlpha, sqrtBeta)
	if err != nil {
		return nil, err
	}
	virtualIn, virtualOut, err := gyro.VirtualOffsets2(invariant, sqrtAlpha, sqrtBeta)
	if err != nil {
		return nil, err
	}
	p.family = &gyroPair{virtualIn: virtualIn, virtualOut: virtualOut}
	return p, nil
}

func (gyro2Handler) MaxTradeSize(p *PairData, side model.Side) (*uint256.Int, error) {
	return gyroMaxTradeSize(p, side)
}

func (gyro2Handler) QuoteGivenIn(p *PairData, amountIn *uint256.Int) (*uint256.Int, error) {
	return gyroQuoteGivenIn(p, amountIn)
}

func (gyro2Handler) QuoteGivenOut(p *PairData, amountOut *uint256.Int) (*uint256.Int, error) {
	return gyroQuoteGivenOut(p, amountOut)
}

type gyro3Handler struct{}

func (gyro3Handler) ParsePairData(meta model.PoolMetadata, state *model.PoolState, tokenIn, tokenOut string) (*PairData, error) {
	if meta.Gyro == nil {
		return nil, fmt.Errorf("gyro pool %s missing curve parameters", meta.Address)
	}
	p, err := parseBase(meta, state, tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}
	if len(state.TokenOrder) != 3 {
		return nil, fmt.Errorf("gyro3 pool %s has %d tokens", meta.Address, len(state.TokenOrder))
	}
	root3Alpha, err := gyroParam(meta, "root3Alpha", meta.Gyro.Root3Alpha)
	if err != nil {
		return nil, err
	}
	balances, err := upscaledBalances(meta, state)
	if err != nil {
		return nil, err
	}
	invariant, err := gyro.Invariant3(balances, root3Alpha)
	if err != nil {
		return nil, err
	}
	offset, err := gyro.VirtualOffset3(invariant, root3Alpha)
	if err != nil {
		return nil, err
	}
	p.family = &gyroPair{virtualIn: offset, virtualOut: offset}
	return p, nil
}

func (gyro3Handler) MaxTradeSize(p *PairData, side model.Side) (*uint256.Int, error) {
	return gyroMaxTradeSize(p, side)
}

func (gyro3Handler) QuoteGivenIn(p *PairData, amountIn *uint256.Int) (*uint256.Int, error) {
	return gyroQuoteGivenIn(p, amountIn)
}

func (gyro3Handler) QuoteGivenOut(p *PairData, amountOut *uint256.Int) (*uint256.Int, error) {
	return gyroQuoteGivenOut(p, amountOut)
}

type eclpPair struct {
	params          gyro.ECLPParams
	tokenInIsToken0 bool
}

type gyroEHandler struct{}

func (gyroEHandler) ParsePairData(meta model.PoolMetadata, state *model.PoolState, tokenIn, tokenOut string) (*PairData, error) {
	if meta.Gyro == nil {
		return nil, fmt.Errorf("gyro pool %s missing curve parameters", meta.Address)
	}
	p, err := parseBase(meta, state, tokenIn, tokenOut)
	if err != nil {
		return nil, err
	}
	var params gyro.ECLPParams
	fields := []struct {
		name  string
		value string
		dst   **big.Int
	}{
		{"alpha", meta.Gyro.Alpha, &params.Alpha},
		{"beta", meta.Gyro.Beta, &params.Beta},
		{"c", meta.Gyro.C, &params.C},
		{"s", meta.Gyro.S, &params.S},
		{"lambda", meta.Gyro.Lambda, &params.Lambda},
	}
	for _, f := range fields {
		v, ok := new(big.Int).SetString(f.value, 10)
		if !ok {
			return nil, fmt.Errorf("gyro pool %s invalid %s %q", meta.Address, f.name, f.value)
		}
		*f.dst = v
	}
	p.family = &eclpPair{params: params, tokenInIsToken0: p.IndexIn == 0}
	return p, nil
}

func (gyroEHandler) MaxTradeSize(p *PairData, side model.Side) (*uint256.Int, error) {
	return gyroMaxTradeSize(p, side)
}

func (gyroEHandler) QuoteGivenIn(p *PairData, amountIn *uint256.Int) (*uint256.Int, error) {
	ep := p.family.(*eclpPair)
	return sellWithFee(p, amountIn, func(in *uint256.Int) (*uint256.Int, error) {
		return gyro.ECLPCalcOutGivenIn(p.BalanceIn, p.BalanceOut, in, ep.tokenInIsToken0, ep.params)
	})
}

func (gyroEHandler) QuoteGivenOut(p *PairData, amountOut *uint256.Int) (*uint256.Int, error) {
	ep := p.family.(*eclpPair)
	return buyWithFee(p, amountOut, func(out *uint256.Int) (*uint256.Int, error) {
		return gyro.ECLPCalcInGivenOut(p.BalanceIn, p.BalanceOut, out, ep.tokenInIsToken0, ep.params)
	})
}

