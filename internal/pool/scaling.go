package pool

import (
	"github.com/holiman/uint256"

	"vaultPricer/internal/math/fixedpoint"
	"vaultPricer/internal/model"
)

var (
	stableLimitFactor = uint256.NewInt(99e16)     // 99%
	gyroLimitFactor   = uint256.NewInt(999999e12) // 99.9999%
	maxUint112        = new(uint256.Int).SubUint64(new(uint256.Int).Lsh(uint256.NewInt(1), 112), 1)
)

// upscaledMath maps an 18-decimal amount to an 18-decimal result.
type upscaledMath func(amount *uint256.Int) (*uint256.Int, error)

// sellWithFee takes the fee from the native input, rounding the fee up,
// upscales the remainder and downscales the output rounding down.
func sellWithFee(p *PairData, amountIn *uint256.Int, calc upscaledMath) (*uint256.Int, error) {
	var c fixedpoint.Checked
	fee := c.MulUp(amountIn, p.SwapFee)
	net := c.Sub(amountIn, fee)
	upscaled := c.MulUp(net, p.ScalingIn)
	if c.Err != nil {
		return nil, c.Err
	}
	out, err := calc(upscaled)
	if err != nil {
		return nil, err
	}
	return fixedpoint.DownscaleDown(out, p.ScalingOut)
}

// buyWithFee solves for the net input, downscales it rounding up and grosses
// it up by the fee.
func buyWithFee(p *PairData, amountOut *uint256.Int, calc upscaledMath) (*uint256.Int, error) {
	var c fixedpoint.Checked
	upscaled := c.MulUp(amountOut, p.ScalingOut)
	if c.Err != nil {
		return nil, c.Err
	}
	in, err := calc(upscaled)
	if err != nil {
		return nil, err
	}
	native := c.DivUp(in, p.ScalingIn)
	return c.Result(c.DivUp(native, fixedpoint.Complement(p.SwapFee)))
}

// sell and buy are the fee-free variants for shapes that charge fees inside
// the math.
func sell(p *PairData, amountIn *uint256.Int, calc upscaledMath) (*uint256.Int, error) {
	upscaled, err := fixedpoint.Upscale(amountIn, p.ScalingIn)
	if err != nil {
		return nil, err
	}
	out, err := calc(upscaled)
	if err != nil {
		return nil, err
	}
	return fixedpoint.DownscaleDown(out, p.ScalingOut)
}

func buy(p *PairData, amountOut *uint256.Int, calc upscaledMath) (*uint256.Int, error) {
	upscaled, err := fixedpoint.Upscale(amountOut, p.ScalingOut)
	if err != nil {
		return nil, err
	}
	in, err := calc(upscaled)
	if err != nil {
		return nil, err
	}
	return fixedpoint.DownscaleUp(in, p.ScalingIn)
}

// outBalanceLimit caps trades at factor of the output balance, expressed in
// the native units of the amount the caller supplies for side.
func outBalanceLimit(p *PairData, side model.Side, factor *uint256.Int) (*uint256.Int, error) {
	limit, err := fixedpoint.MulDown(p.BalanceOut, factor)
	if err != nil {
		return nil, err
	}
	switch side {
	case model.SideSell:
		return fixedpoint.DownscaleDown(limit, p.ScalingIn)
	case model.SideBuy:
		return fixedpoint.DownscaleDown(limit, p.ScalingOut)
	default:
		return nil, model.ErrUnsupportedSide
	}
}

// virtualSupply is the preminted supply less what the pool still holds.
func virtualSupply(poolHeld *uint256.Int) (*uint256.Int, error) {
	return fixedpoint.Sub(maxUint112, poolHeld)
}
