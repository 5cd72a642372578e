package stable

import (
	"github.com/holiman/uint256"

	"vaultPricer/internal/math/fixedpoint"
)

// CalcBptOutGivenExactTokensIn prices a proportional-or-not join. Fees apply
// only to the part of each amount that exceeds the proportional share.
func CalcBptOutGivenExactTokensIn(amp *uint256.Int, balances, amountsIn []*uint256.Int, bptTotalSupply, invariant, swapFee *uint256.Int) (*uint256.Int, error) {
	var c fixedpoint.Checked
	sum := sumOf(&c, balances)

	ratios := make([]*uint256.Int, len(balances))
	idealRatio := new(uint256.Int)
	for i := range balances {
		weight := c.DivDown(balances[i], sum)
		ratios[i] = c.DivDown(c.Add(balances[i], amountsIn[i]), balances[i])
		idealRatio = c.Add(idealRatio, c.MulDown(ratios[i], weight))
	}

	newBalances := make([]*uint256.Int, len(balances))
	for i := range balances {
		amount := amountsIn[i]
		if ratios[i].Gt(idealRatio) {
			nonTaxable := new(uint256.Int)
			if idealRatio.Gt(fixedpoint.One) {
				nonTaxable = c.MulDown(balances[i], c.Sub(idealRatio, fixedpoint.One))
			}
			taxable := c.Sub(amountsIn[i], nonTaxable)
			amount = c.Add(nonTaxable, c.MulDown(taxable, fixedpoint.Complement(swapFee)))
		}
		newBalances[i] = c.Add(balances[i], amount)
	}
	if c.Err != nil {
		return nil, c.Err
	}

	newInvariant, err := CalculateInvariant(amp, newBalances)
	if err != nil {
		return nil, err
	}
	invariantRatio := c.DivDown(newInvariant, invariant)
	if c.Err == nil && !invariantRatio.Gt(fixedpoint.One) {
		return new(uint256.Int), nil
	}
	return c.Result(c.MulDown(bptTotalSupply, c.Sub(invariantRatio, fixedpoint.One)))
}

// CalcTokenOutGivenExactBptIn prices a single-token exit for bptAmountIn.
func CalcTokenOutGivenExactBptIn(amp *uint256.Int, balances []*uint256.Int, tokenIndex int, bptAmountIn, bptTotalSupply, invariant, swapFee *uint256.Int) (*uint256.Int, error) {
	var c fixedpoint.Checked
	newInvariant := c.MulUp(c.DivUp(c.Sub(bptTotalSupply, bptAmountIn), bptTotalSupply), invariant)
	if c.Err != nil {
		return nil, c.Err
	}
	newBalance, err := BalanceGivenInvariant(amp, balances, newInvariant, tokenIndex)
	if err != nil {
		return nil, err
	}
	amountOutWithoutFee := c.Sub(balances[tokenIndex], newBalance)

	taxablePercentage := fixedpoint.Complement(c.DivDown(balances[tokenIndex], sumOf(&c, balances)))
	taxable := c.MulUp(amountOutWithoutFee, taxablePercentage)
	nonTaxable := c.Sub(amountOutWithoutFee, taxable)
	return c.Result(c.Add(nonTaxable, c.MulDown(taxable, fixedpoint.Complement(swapFee))))
}

// CalcBptInGivenExactTokensOut prices an exit for exact token amounts.
func CalcBptInGivenExactTokensOut(amp *uint256.Int, balances, amountsOut []*uint256.Int, bptTotalSupply, invariant, swapFee *uint256.Int) (*uint256.Int, error) {
	var c fixedpoint.Checked
	sum := sumOf(&c, balances)

	ratios := make([]*uint256.Int, len(balances))
	idealRatio := new(uint256.Int)
	for i := range balances {
		weight := c.DivDown(balances[i], sum)
		ratios[i] = c.DivUp(c.Sub(balances[i], amountsOut[i]), balances[i])
		idealRatio = c.Add(idealRatio, c.MulUp(ratios[i], weight))
	}

	newBalances := make([]*uint256.Int, len(balances))
	for i := range balances {
		amount := amountsOut[i]
		if idealRatio.Gt(ratios[i]) {
			nonTaxable := c.MulDown(balances[i], fixedpoint.Complement(idealRatio))
			taxable := c.Sub(amountsOut[i], nonTaxable)
			amount = c.Add(nonTaxable, c.DivUp(taxable, fixedpoint.Complement(swapFee)))
		}
		newBalances[i] = c.Sub(balances[i], amount)
	}
	if c.Err != nil {
		return nil, c.Err
	}

	newInvariant, err := CalculateInvariant(amp, newBalances)
	if err != nil {
		return nil, err
	}
	invariantRatio := c.DivDown(newInvariant, invariant)
	return c.Result(c.MulUp(bptTotalSupply, fixedpoint.Complement(invariantRatio)))
}

// CalcTokenInGivenExactBptOut prices a single-token join minting bptAmountOut.
func CalcTokenInGivenExactBptOut(amp *uint256.Int, balances []*uint256.Int, tokenIndex int, bptAmountOut, bptTotalSupply, invariant, swapFee *uint256.Int) (*uint256.Int, error) {
	var c fixedpoint.Checked
	newInvariant := c.MulUp(c.DivUp(c.Add(bptTotalSupply, bptAmountOut), bptTotalSupply), invariant)
	if c.Err != nil {
		return nil, c.Err
	}
	newBalance, err := BalanceGivenInvariant(amp, balances, newInvariant, tokenIndex)
	if err != nil {
		return nil, err
	}
	amountInWithoutFee := c.Sub(newBalance, balances[tokenIndex])

	taxablePercentage := fixedpoint.Complement(c.DivDown(balances[tokenIndex], sumOf(&c, balances)))
	taxable := c.MulUp(amountInWithoutFee, taxablePercentage)
	nonTaxable := c.Sub(amountInWithoutFee, taxable)
	return c.Result(c.Add(nonTaxable, c.DivUp(taxable, fixedpoint.Complement(swapFee))))
}

func sumOf(c *fixedpoint.Checked, balances []*uint256.Int) *uint256.Int {
	sum := new(uint256.Int)
	for _, b := range balances {
		sum = c.Add(sum, b)
	}
	return sum
}
