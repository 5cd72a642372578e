package gyro

import (
	"github.com/holiman/uint256"

	"vaultPricer/internal/math/fixedpoint"
	"vaultPricer/internal/model"
)

const maxNewtonIterations = 255

var three = uint256.NewInt(3e18)

// Invariant3 solves (x + L·r)(y + L·r)(z + L·r) = L³ with r = root3Alpha,
// i.e. the largest root of (1 - r³)L³ - r²(x+y+z)L² - r(xy+yz+zx)L - xyz.
func Invariant3(balances []*uint256.Int, root3Alpha *uint256.Int) (*uint256.Int, error) {
	var c fixedpoint.Checked
	x, y, z := balances[0], balances[1], balances[2]

	r2 := c.MulDown(root3Alpha, root3Alpha)
	a := c.Sub(fixedpoint.One, c.MulDown(r2, root3Alpha))
	mb := c.MulDown(c.Add(c.Add(x, y), z), r2)
	mc := c.MulDown(c.Add(c.Add(c.MulDown(x, y), c.MulDown(y, z)), c.MulDown(z, x)), root3Alpha)
	md := c.MulDown(c.MulDown(x, y), z)
	if c.Err != nil {
		return nil, c.Err
	}

	// Past the local extremum f is increasing and convex.
	threeA := c.MulDown(three, a)
	root, err := Sqrt(c.Add(c.MulDown(mb, mb), c.MulDown(threeA, mc)))
	if err != nil {
		return nil, err
	}
	l := c.DivUp(c.Add(mb, root), threeA)
	if c.Err != nil {
		return nil, c.Err
	}

	cubic := func(l *uint256.Int) (pos, neg *uint256.Int) {
		l2 := c.MulDown(l, l)
		pos = c.MulDown(c.MulDown(a, l2), l)
		neg = c.Add(c.Add(c.MulDown(mb, l2), c.MulDown(mc, l)), md)
		return pos, neg
	}

	for i := 0; ; i++ {
		pos, neg := cubic(l)
		if c.Err != nil {
			return nil, c.Err
		}
		if !pos.Lt(neg) || l.IsZero() {
			break
		}
		if i == maxNewtonIterations {
			return nil, &model.ConvergenceError{Solver: "gyro3 bracket", Iterations: i}
		}
		l = c.Mul(l, uint256.NewInt(2))
	}

	for i := 0; i < maxNewtonIterations; i++ {
		pos, neg := cubic(l)
		if c.Err != nil {
			return nil, c.Err
		}
		if pos.Lt(neg) {
			return l, nil
		}
		derivative := c.Sub(c.Sub(c.MulDown(threeA, c.MulDown(l, l)), c.MulDown(c.Mul(mb, uint256.NewInt(2)), l)), mc)
		step := c.DivDown(c.Sub(pos, neg), derivative)
		if c.Err != nil {
			return nil, c.Err
		}
		if step.CmpUint64(1) <= 0 {
			return l, nil
		}
		l = c.Sub(l, step)
	}
	return nil, &model.ConvergenceError{Solver: "gyro3 invariant", Iterations: maxNewtonIterations}
}

// VirtualOffset3 is the virtual reserve offset shared by all three tokens.
func VirtualOffset3(invariant, root3Alpha *uint256.Int) (*uint256.Int, error) {
	return fixedpoint.MulDown(invariant, root3Alpha)
}
