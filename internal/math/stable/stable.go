// Package stable implements the StableSwap invariant and the swap and
// single-token join/exit formulas built on it.
package stable

import (
	"github.com/holiman/uint256"

	"vaultPricer/internal/math/fixedpoint"
	"vaultPricer/internal/model"
)

// AmpPrecision is the fixed scale of amplification parameters.
const AmpPrecision = 1000

const maxIterations = 255

var (
	ampPrecision = uint256.NewInt(AmpPrecision)
	one          = uint256.NewInt(1)
)

func within1(a, b *uint256.Int) bool {
	if a.Gt(b) {
		return new(uint256.Int).Sub(a, b).CmpUint64(1) <= 0
	}
	return new(uint256.Int).Sub(b, a).CmpUint64(1) <= 0
}

// CalculateInvariant solves for D in
//
//	A·n^n·S + D = A·D·n^n + D^(n+1) / (n^n·P)
//
// by Newton iteration, stopping once successive values differ by at most one.
func CalculateInvariant(amp *uint256.Int, balances []*uint256.Int) (*uint256.Int, error) {
	var c fixedpoint.Checked
	sum := new(uint256.Int)
	for _, b := range balances {
		sum = c.Add(sum, b)
	}
	if c.Err != nil {
		return nil, c.Err
	}
	if sum.IsZero() {
		return sum, nil
	}

	n := uint256.NewInt(uint64(len(balances)))
	ampTimesTotal := c.Mul(amp, n)
	invariant := sum
	for i := 0; i < maxIterations; i++ {
		dp := invariant
		for _, b := range balances {
			dp = c.Div(c.Mul(dp, invariant), c.Mul(b, n))
		}
		prev := invariant

		numerator := c.Mul(c.Add(c.Div(c.Mul(ampTimesTotal, sum), ampPrecision), c.Mul(dp, n)), invariant)
		denominator := c.Add(
			c.Div(c.Mul(c.Sub(ampTimesTotal, ampPrecision), invariant), ampPrecision),
			c.Mul(c.Add(n, one), dp),
		)
		invariant = c.Div(numerator, denominator)
		if c.Err != nil {
			return nil, c.Err
		}
		if within1(invariant, prev) {
			return invariant, nil
		}
	}
	return nil, &model.ConvergenceError{Solver: "stable invariant", Iterations: maxIterations}
}

// BalanceGivenInvariant solves for balances[tokenIndex] holding the invariant
// and every other balance fixed. The result rounds up.
func BalanceGivenInvariant(amp *uint256.Int, balances []*uint256.Int, invariant *uint256.Int, tokenIndex int) (*uint256.Int, error) {
	var c fixedpoint.Checked
	n := uint256.NewInt(uint64(len(balances)))
	ampTimesTotal := c.Mul(amp, n)

	sum := balances[0].Clone()
	pD := c.Mul(balances[0], n)
	for j := 1; j < len(balances); j++ {
		pD = c.Div(c.Mul(c.Mul(pD, balances[j]), n), invariant)
		sum = c.Add(sum, balances[j])
	}
	sum = c.Sub(sum, balances[tokenIndex])

	invariantSquared := c.Mul(invariant, invariant)
	cc := c.Mul(c.Mul(c.DivRoundUp(invariantSquared, c.Mul(ampTimesTotal, pD)), ampPrecision), balances[tokenIndex])
	b := c.Add(sum, c.Mul(c.Div(invariant, ampTimesTotal), ampPrecision))

	balance := c.DivRoundUp(c.Add(invariantSquared, cc), c.Add(invariant, b))
	if c.Err != nil {
		return nil, c.Err
	}
	for i := 0; i < maxIterations; i++ {
		prev := balance
		balance = c.DivRoundUp(
			c.Add(c.Mul(balance, balance), cc),
			c.Sub(c.Add(c.Mul(balance, uint256.NewInt(2)), b), invariant),
		)
		if c.Err != nil {
			return nil, c.Err
		}
		if within1(balance, prev) {
			return balance, nil
		}
	}
	return nil, &model.ConvergenceError{Solver: "stable balance", Iterations: maxIterations}
}

func withDelta(balances []*uint256.Int, index int, v *uint256.Int) []*uint256.Int {
	out := make([]*uint256.Int, len(balances))
	copy(out, balances)
	out[index] = v
	return out
}

// CalcOutGivenIn returns the upscaled amount out for a net, upscaled amountIn.
func CalcOutGivenIn(amp *uint256.Int, balances []*uint256.Int, indexIn, indexOut int, amountIn, invariant *uint256.Int) (*uint256.Int, error) {
	var c fixedpoint.Checked
	next := withDelta(balances, indexIn, c.Add(balances[indexIn], amountIn))
	if c.Err != nil {
		return nil, c.Err
	}
	final, err := BalanceGivenInvariant(amp, next, invariant, indexOut)
	if err != nil {
		return nil, err
	}
	return c.Result(c.Sub(c.Sub(balances[indexOut], final), one))
}

// CalcInGivenOut returns the upscaled amount in, before fees, for amountOut.
func CalcInGivenOut(amp *uint256.Int, balances []*uint256.Int, indexIn, indexOut int, amountOut, invariant *uint256.Int) (*uint256.Int, error) {
	var c fixedpoint.Checked
	next := withDelta(balances, indexOut, c.Sub(balances[indexOut], amountOut))
	if c.Err != nil {
		return nil, c.Err
	}
	final, err := BalanceGivenInvariant(amp, next, invariant, indexIn)
	if err != nil {
		return nil, err
	}
	return c.Result(c.Add(c.Sub(final, balances[indexIn]), one))
}
