// Package weighted implements constant-weighted-product swap math.
package weighted

import (
	"fmt"

	"github.com/holiman/uint256"

	"vaultPricer/internal/math/fixedpoint"
	"vaultPricer/internal/model"
)

var (
	// MaxInRatio and MaxOutRatio cap a single swap at 30% of the balance.
	MaxInRatio  = uint256.NewInt(3e17)
	MaxOutRatio = uint256.NewInt(3e17)
)

// CalcOutGivenIn returns balanceOut * (1 - (balanceIn / (balanceIn + amountIn))^(weightIn / weightOut)).
// All values are upscaled; amountIn is net of fees.
func CalcOutGivenIn(balanceIn, weightIn, balanceOut, weightOut, amountIn *uint256.Int) (*uint256.Int, error) {
	var c fixedpoint.Checked
	if limit := c.MulDown(balanceIn, MaxInRatio); c.Err == nil && amountIn.Gt(limit) {
		return nil, fmt.Errorf("weighted in %s above %s: %w", amountIn.Dec(), limit.Dec(), model.ErrTradeTooLarge)
	}

	denominator := c.Add(balanceIn, amountIn)
	base := c.DivUp(balanceIn, denominator)
	exponent := c.DivDown(weightIn, weightOut)
	power := c.PowUp(base, exponent)
	return c.Result(c.MulDown(balanceOut, fixedpoint.Complement(power)))
}

// CalcInGivenOut returns balanceIn * ((balanceOut / (balanceOut - amountOut))^(weightOut / weightIn) - 1),
// before fees.
func CalcInGivenOut(balanceIn, weightIn, balanceOut, weightOut, amountOut *uint256.Int) (*uint256.Int, error) {
	var c fixedpoint.Checked
	if limit := c.MulDown(balanceOut, MaxOutRatio); c.Err == nil && amountOut.Gt(limit) {
		return nil, fmt.Errorf("weighted out %s above %s: %w", amountOut.Dec(), limit.Dec(), model.ErrTradeTooLarge)
	}

	base := c.DivUp(balanceOut, c.Sub(balanceOut, amountOut))
	exponent := c.DivUp(weightOut, weightIn)
	power := c.PowUp(base, exponent)
	ratio := c.Sub(power, fixedpoint.One)
	return c.Result(c.MulUp(balanceIn, ratio))
}
