package gyro

import (
	"github.com/holiman/uint256"

	"vaultPricer/internal/math/fixedpoint"
)

// Invariant2 solves (x + L/sqrtBeta)(y + L·sqrtAlpha) = L² for L.
func Invariant2(x, y, sqrtAlpha, sqrtBeta *uint256.Int) (*uint256.Int, error) {
	var c fixedpoint.Checked
	two := fixedpoint.Two
	four := fixedpoint.Four

	a := c.Sub(fixedpoint.One, c.DivDown(sqrtAlpha, sqrtBeta))
	mb := c.Add(c.DivDown(y, sqrtBeta), c.MulDown(x, sqrtAlpha))
	mc := c.MulDown(x, y)

	bSquare := c.Add(
		c.Add(
			c.MulDown(c.MulDown(c.MulDown(x, x), sqrtAlpha), sqrtAlpha),
			c.DivDown(c.MulDown(c.MulDown(c.MulDown(x, y), two), sqrtAlpha), sqrtBeta),
		),
		c.DivDown(c.MulDown(y, y), c.MulUp(sqrtBeta, sqrtBeta)),
	)
	denominator := c.MulUp(a, two)
	radicand := c.Add(bSquare, c.MulDown(c.MulDown(mc, four), a))
	if c.Err != nil {
		return nil, c.Err
	}
	root, err := Sqrt(radicand)
	if err != nil {
		return nil, err
	}
	return c.Result(c.DivDown(c.Add(mb, root), denominator))
}

// VirtualOffsets2 returns the virtual reserve offsets for the in and out token.
func VirtualOffsets2(invariant, sqrtAlpha, sqrtBeta *uint256.Int) (in, out *uint256.Int, err error) {
	var c fixedpoint.Checked
	in = c.DivDown(invariant, sqrtBeta)
	out = c.MulDown(invariant, sqrtAlpha)
	if c.Err != nil {
		return nil, nil, c.Err
	}
	return in, out, nil
}

// OrientedParams2 returns price bounds expressed in tokenOut per tokenIn.
func OrientedParams2(sqrtAlpha, sqrtBeta *uint256.Int, tokenInIsToken0 bool) (*uint256.Int, *uint256.Int, error) {
	if tokenInIsToken0 {
		return sqrtAlpha, sqrtBeta, nil
	}
	var c fixedpoint.Checked
	alpha := c.DivDown(fixedpoint.One, sqrtBeta)
	beta := c.DivDown(fixedpoint.One, sqrtAlpha)
	if c.Err != nil {
		return nil, nil, c.Err
	}
	return alpha, beta, nil
}
