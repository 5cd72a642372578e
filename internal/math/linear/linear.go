// Package linear implements swaps in pools pairing a main token with its
// wrapped counterpart, charging a fee only outside the target band.
package linear

import (
	"github.com/holiman/uint256"

	"vaultPricer/internal/math/fixedpoint"
)

// Params is the fee and target band, all upscaled.
type Params struct {
	Fee         *uint256.Int
	LowerTarget *uint256.Int
	UpperTarget *uint256.Int
}

// toNominal maps a real main balance to its fee-adjusted nominal balance.
func toNominal(c *fixedpoint.Checked, real *uint256.Int, p Params) *uint256.Int {
	switch {
	case real.Lt(p.LowerTarget):
		fees := c.MulDown(c.Sub(p.LowerTarget, real), p.Fee)
		return c.Sub(real, fees)
	case !real.Gt(p.UpperTarget):
		return real
	default:
		fees := c.MulDown(c.Sub(real, p.UpperTarget), p.Fee)
		return c.Sub(real, fees)
	}
}

// fromNominal inverts toNominal.
func fromNominal(c *fixedpoint.Checked, nominal *uint256.Int, p Params) *uint256.Int {
	switch {
	case nominal.Lt(p.LowerTarget):
		return c.DivDown(c.Add(nominal, c.MulDown(p.LowerTarget, p.Fee)), c.Add(fixedpoint.One, p.Fee))
	case !nominal.Gt(p.UpperTarget):
		return nominal
	default:
		return c.DivDown(c.Sub(nominal, c.MulDown(p.UpperTarget, p.Fee)), c.Sub(fixedpoint.One, p.Fee))
	}
}

// ToNominal is the exported form of the real to nominal mapping.
func ToNominal(real *uint256.Int, p Params) (*uint256.Int, error) {
	var c fixedpoint.Checked
	return c.Result(toNominal(&c, real, p))
}

// FromNominal is the exported form of the nominal to real mapping.
func FromNominal(nominal *uint256.Int, p Params) (*uint256.Int, error) {
	var c fixedpoint.Checked
	return c.Result(fromNominal(&c, nominal, p))
}

func invariant(c *fixedpoint.Checked, nominalMain, wrapped *uint256.Int) *uint256.Int {
	return c.Add(nominalMain, wrapped)
}

func CalcBptOutPerMainIn(mainIn, mainBalance, wrappedBalance, bptSupply *uint256.Int, p Params) (*uint256.Int, error) {
	var c fixedpoint.Checked
	if bptSupply.IsZero() {
		return c.Result(toNominal(&c, mainIn, p))
	}
	previousNominal := toNominal(&c, mainBalance, p)
	afterNominal := toNominal(&c, c.Add(mainBalance, mainIn), p)
	deltaNominal := c.Sub(afterNominal, previousNominal)
	inv := invariant(&c, previousNominal, wrappedBalance)
	return c.Result(c.Div(c.Mul(bptSupply, deltaNominal), inv))
}

func CalcBptInPerMainOut(mainOut, mainBalance, wrappedBalance, bptSupply *uint256.Int, p Params) (*uint256.Int, error) {
	var c fixedpoint.Checked
	previousNominal := toNominal(&c, mainBalance, p)
	afterNominal := toNominal(&c, c.Sub(mainBalance, mainOut), p)
	deltaNominal := c.Sub(previousNominal, afterNominal)
	inv := invariant(&c, previousNominal, wrappedBalance)
	return c.Result(c.DivRoundUp(c.Mul(bptSupply, deltaNominal), inv))
}

func CalcWrappedOutPerMainIn(mainIn, mainBalance *uint256.Int, p Params) (*uint256.Int, error) {
	var c fixedpoint.Checked
	previousNominal := toNominal(&c, mainBalance, p)
	afterNominal := toNominal(&c, c.Add(mainBalance, mainIn), p)
	return c.Result(c.Sub(afterNominal, previousNominal))
}

func CalcWrappedInPerMainOut(mainOut, mainBalance *uint256.Int, p Params) (*uint256.Int, error) {
	var c fixedpoint.Checked
	previousNominal := toNominal(&c, mainBalance, p)
	afterNominal := toNominal(&c, c.Sub(mainBalance, mainOut), p)
	return c.Result(c.Sub(previousNominal, afterNominal))
}

func CalcMainInPerBptOut(bptOut, mainBalance, wrappedBalance, bptSupply *uint256.Int, p Params) (*uint256.Int, error) {
	var c fixedpoint.Checked
	if bptSupply.IsZero() {
		return c.Result(fromNominal(&c, bptOut, p))
	}
	previousNominal := toNominal(&c, mainBalance, p)
	inv := invariant(&c, previousNominal, wrappedBalance)
	deltaNominal := c.DivRoundUp(c.Mul(inv, bptOut), bptSupply)
	afterNominal := c.Add(previousNominal, deltaNominal)
	return c.Result(c.Sub(fromNominal(&c, afterNominal, p), mainBalance))
}

func CalcMainOutPerBptIn(bptIn, mainBalance, wrappedBalance, bptSupply *uint256.Int, p Params) (*uint256.Int, error) {
	var c fixedpoint.Checked
	previousNominal := toNominal(&c, mainBalance, p)
	inv := invariant(&c, previousNominal, wrappedBalance)
	deltaNominal := c.Div(c.Mul(inv, bptIn), bptSupply)
	afterNominal := c.Sub(previousNominal, deltaNominal)
	return c.Result(c.Sub(mainBalance, fromNominal(&c, afterNominal, p)))
}

func CalcMainOutPerWrappedIn(wrappedIn, mainBalance *uint256.Int, p Params) (*uint256.Int, error) {
	var c fixedpoint.Checked
	previousNominal := toNominal(&c, mainBalance, p)
	afterNominal := c.Sub(previousNominal, wrappedIn)
	return c.Result(c.Sub(mainBalance, fromNominal(&c, afterNominal, p)))
}

func CalcMainInPerWrappedOut(wrappedOut, mainBalance *uint256.Int, p Params) (*uint256.Int, error) {
	var c fixedpoint.Checked
	previousNominal := toNominal(&c, mainBalance, p)
	afterNominal := c.Add(previousNominal, wrappedOut)
	return c.Result(c.Sub(fromNominal(&c, afterNominal, p), mainBalance))
}

func CalcBptOutPerWrappedIn(wrappedIn, mainBalance, wrappedBalance, bptSupply *uint256.Int, p Params) (*uint256.Int, error) {
	var c fixedpoint.Checked
	if bptSupply.IsZero() {
		return wrappedIn.Clone(), nil
	}
	nominalMain := toNominal(&c, mainBalance, p)
	previousInvariant := invariant(&c, nominalMain, wrappedBalance)
	newInvariant := invariant(&c, nominalMain, c.Add(wrappedBalance, wrappedIn))
	return c.Result(c.Sub(c.Div(c.Mul(bptSupply, newInvariant), previousInvariant), bptSupply))
}

func CalcBptInPerWrappedOut(wrappedOut, mainBalance, wrappedBalance, bptSupply *uint256.Int, p Params) (*uint256.Int, error) {
	var c fixedpoint.Checked
	nominalMain := toNominal(&c, mainBalance, p)
	previousInvariant := invariant(&c, nominalMain, wrappedBalance)
	newInvariant := invariant(&c, nominalMain, c.Sub(wrappedBalance, wrappedOut))
	return c.Result(c.Sub(bptSupply, c.Div(c.Mul(bptSupply, newInvariant), previousInvariant)))
}

func CalcWrappedInPerBptOut(bptOut, mainBalance, wrappedBalance, bptSupply *uint256.Int, p Params) (*uint256.Int, error) {
	var c fixedpoint.Checked
	if bptSupply.IsZero() {
		return bptOut.Clone(), nil
	}
	nominalMain := toNominal(&c, mainBalance, p)
	previousInvariant := invariant(&c, nominalMain, wrappedBalance)
	newWrapped := c.Sub(c.DivRoundUp(c.Mul(c.Add(bptSupply, bptOut), previousInvariant), bptSupply), nominalMain)
	return c.Result(c.Sub(newWrapped, wrappedBalance))
}

func CalcWrappedOutPerBptIn(bptIn, mainBalance, wrappedBalance, bptSupply *uint256.Int, p Params) (*uint256.Int, error) {
	var c fixedpoint.Checked
	nominalMain := toNominal(&c, mainBalance, p)
	previousInvariant := invariant(&c, nominalMain, wrappedBalance)
	newWrapped := c.Sub(c.DivRoundUp(c.Mul(c.Sub(bptSupply, bptIn), previousInvariant), bptSupply), nominalMain)
	return c.Result(c.Sub(wrappedBalance, newWrapped))
}
