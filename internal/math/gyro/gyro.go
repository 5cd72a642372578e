// Package gyro implements concentrated-liquidity curves: the 2-token and
// 3-token price-bounded pools and the rotated-ellipse pool.
package gyro

import (
	"fmt"

	"github.com/holiman/uint256"

	"vaultPricer/internal/math/fixedpoint"
	"vaultPricer/internal/model"
)

var (
	onePlus2  = new(uint256.Int).AddUint64(fixedpoint.One, 2)
	oneMinus1 = new(uint256.Int).SubUint64(fixedpoint.One, 1)
)

// CalcOutGivenIn prices a swap on virtual reserves balance + offset. The
// offsets are biased so the pool never pays out more than the exact curve.
func CalcOutGivenIn(balanceIn, balanceOut, amountIn, virtualIn, virtualOut *uint256.Int) (*uint256.Int, error) {
	var c fixedpoint.Checked
	virtInOver := c.Add(balanceIn, c.MulUp(virtualIn, onePlus2))
	virtOutUnder := c.Add(balanceOut, c.MulDown(virtualOut, oneMinus1))

	out := c.DivDown(c.MulDown(virtOutUnder, amountIn), c.Add(virtInOver, amountIn))
	if c.Err != nil {
		return nil, c.Err
	}
	if out.Gt(balanceOut) {
		return nil, fmt.Errorf("gyro out %s above balance %s: %w", out.Dec(), balanceOut.Dec(), model.ErrTradeTooLarge)
	}
	return out, nil
}

// CalcInGivenOut is the exact-output counterpart of CalcOutGivenIn, before fees.
func CalcInGivenOut(balanceIn, balanceOut, amountOut, virtualIn, virtualOut *uint256.Int) (*uint256.Int, error) {
	if amountOut.Gt(balanceOut) {
		return nil, fmt.Errorf("gyro out %s above balance %s: %w", amountOut.Dec(), balanceOut.Dec(), model.ErrTradeTooLarge)
	}
	var c fixedpoint.Checked
	virtInOver := c.Add(balanceIn, c.MulUp(virtualIn, onePlus2))
	virtOutUnder := c.Add(balanceOut, c.MulDown(virtualOut, oneMinus1))
	return c.Result(c.DivUp(c.MulUp(virtInOver, amountOut), c.Sub(virtOutUnder, amountOut)))
}

// Sqrt is a fixed point square root by seven Newton steps from a
// power-of-two guess.
func Sqrt(input *uint256.Int) (*uint256.Int, error) {
	if input.IsZero() {
		return new(uint256.Int), nil
	}
	var c fixedpoint.Checked
	var guess *uint256.Int
	if !input.Lt(fixedpoint.One) {
		whole := new(uint256.Int).Div(input, fixedpoint.One)
		guess = new(uint256.Int).Lsh(uint256.NewInt(1), intLog2Halved(whole))
		guess = c.Mul(guess, fixedpoint.One)
	} else {
		guess = input.Clone()
	}
	inflated := c.Mul(input, fixedpoint.One)
	for i := 0; i < 7; i++ {
		guess = c.Add(guess, c.Div(inflated, guess))
		guess = new(uint256.Int).Rsh(guess, 1)
	}
	return c.Result(guess)
}

func intLog2Halved(x *uint256.Int) uint {
	x = x.Clone()
	var n uint
	for i := uint(128); i >= 2; i /= 2 {
		factor := new(uint256.Int).Lsh(uint256.NewInt(1), i)
		if !x.Lt(factor) {
			x.Rsh(x, i)
			n += i / 2
		}
	}
	return n
}
