package gyro

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"vaultPricer/internal/model"
)

// ECLPParams is the rotated-ellipse geometry in 18 decimals: price bounds
// alpha and beta, rotation (c, s) = (cos φ, sin φ) and stretch lambda.
type ECLPParams struct {
	Alpha  *big.Int
	Beta   *big.Int
	C      *big.Int
	S      *big.Int
	Lambda *big.Int
}

// Internal arithmetic runs at 36 decimals.
var (
	one18          = big.NewInt(1e18)
	oneXP          = new(big.Int).Mul(one18, one18)
	normTolerance  = new(big.Int).Exp(big.NewInt(10), big.NewInt(30), nil) // 1e-6
	rMarginDivisor = big.NewInt(1e15)
)

var errEmptyCurve = errors.New("eclp: degenerate curve")

func xpMul(a, b *big.Int) *big.Int {
	z := new(big.Int).Mul(a, b)
	return z.Quo(z, oneXP)
}

func xpDiv(a, b *big.Int) *big.Int {
	z := new(big.Int).Mul(a, oneXP)
	return z.Quo(z, b)
}

func xpSqrt(a *big.Int) *big.Int {
	z := new(big.Int).Mul(a, oneXP)
	return z.Sqrt(z)
}

func toXP(v *big.Int) *big.Int { return new(big.Int).Mul(v, one18) }

func add(a, b *big.Int) *big.Int { return new(big.Int).Add(a, b) }
func sub(a, b *big.Int) *big.Int { return new(big.Int).Sub(a, b) }

// eclp holds geometry derived once per parameter set.
type eclp struct {
	c, s, lambda *big.Int
	lambdaInvSq  *big.Int
	chi0, chi1   *big.Int
	aChi0, aChi1 *big.Int
	denominator  *big.Int // |A·chi|² - 1
}

func newECLP(p ECLPParams) (*eclp, error) {
	if p.Alpha == nil || p.Beta == nil || p.C == nil || p.S == nil || p.Lambda == nil {
		return nil, fmt.Errorf("eclp: missing parameters")
	}
	if p.Alpha.Sign() <= 0 || p.Alpha.Cmp(p.Beta) >= 0 {
		return nil, fmt.Errorf("eclp: invalid price bounds %s..%s", p.Alpha, p.Beta)
	}
	if p.Lambda.Cmp(one18) < 0 {
		return nil, fmt.Errorf("eclp: lambda %s below one", p.Lambda)
	}
	e := &eclp{c: toXP(p.C), s: toXP(p.S), lambda: toXP(p.Lambda)}
	norm := add(xpMul(e.c, e.c), xpMul(e.s, e.s))
	if new(big.Int).Abs(sub(norm, oneXP)).Cmp(normTolerance) > 0 {
		return nil, fmt.Errorf("eclp: rotation (%s, %s) is not a unit vector", p.C, p.S)
	}
	e.lambdaInvSq = xpDiv(oneXP, xpMul(e.lambda, e.lambda))

	tauAlpha0, tauAlpha1 := e.tau(toXP(p.Alpha))
	tauBeta0, tauBeta1 := e.tau(toXP(p.Beta))
	e.chi0, _ = e.aInv(tauBeta0, tauBeta1)
	_, e.chi1 = e.aInv(tauAlpha0, tauAlpha1)
	e.aChi0, e.aChi1 = e.a(e.chi0, e.chi1)
	e.denominator = sub(add(xpMul(e.aChi0, e.aChi0), xpMul(e.aChi1, e.aChi1)), oneXP)
	if e.denominator.Sign() <= 0 {
		return nil, errEmptyCurve
	}
	return e, nil
}

// a maps the ellipse onto the unit circle.
func (e *eclp) a(v0, v1 *big.Int) (*big.Int, *big.Int) {
	w0 := xpDiv(sub(xpMul(e.c, v0), xpMul(e.s, v1)), e.lambda)
	w1 := add(xpMul(e.s, v0), xpMul(e.c, v1))
	return w0, w1
}

func (e *eclp) aInv(w0, w1 *big.Int) (*big.Int, *big.Int) {
	cl := xpMul(e.c, e.lambda)
	sl := xpMul(e.s, e.lambda)
	v0 := add(xpMul(cl, w0), xpMul(e.s, w1))
	v1 := add(new(big.Int).Neg(xpMul(sl, w0)), xpMul(e.c, w1))
	return v0, v1
}

// tau is the unit-circle point whose tangent corresponds to price p.
func (e *eclp) tau(p *big.Int) (*big.Int, *big.Int) {
	num := xpMul(e.lambda, sub(xpMul(p, e.c), e.s))
	t := xpDiv(num, add(e.c, xpMul(p, e.s)))
	d := xpSqrt(add(oneXP, xpMul(t, t)))
	return xpDiv(t, d), xpDiv(oneXP, d)
}

func (e *eclp) invariant(x, y *big.Int) (*big.Int, error) {
	av0, av1 := e.a(x, y)
	at := add(xpMul(av0, e.aChi0), xpMul(av1, e.aChi1))
	vv := add(xpMul(av0, av0), xpMul(av1, av1))
	disc := sub(xpMul(at, at), xpMul(e.denominator, vv))
	if disc.Sign() < 0 {
		return nil, errEmptyCurve
	}
	return xpDiv(add(at, xpSqrt(disc)), e.denominator), nil
}

func (e *eclp) solveQuadratic(a, b, cc *big.Int) (*big.Int, error) {
	fourAC := new(big.Int).Mul(xpMul(a, cc), big.NewInt(4))
	disc := sub(xpMul(b, b), fourAC)
	if disc.Sign() < 0 {
		return nil, fmt.Errorf("eclp: balance outside curve: %w", model.ErrTradeTooLarge)
	}
	num := sub(new(big.Int).Neg(b), xpSqrt(disc))
	return xpDiv(num, new(big.Int).Mul(a, big.NewInt(2))), nil
}

func (e *eclp) yGivenX(x, r *big.Int) (*big.Int, error) {
	shifted := sub(x, xpMul(r, e.chi0))
	cs := xpMul(e.c, e.s)
	a := add(xpMul(xpMul(e.s, e.s), e.lambdaInvSq), xpMul(e.c, e.c))
	b := xpMul(xpMul(new(big.Int).Mul(big.NewInt(2), cs), sub(oneXP, e.lambdaInvSq)), shifted)
	cc := sub(
		xpMul(add(xpMul(xpMul(e.c, e.c), e.lambdaInvSq), xpMul(e.s, e.s)), xpMul(shifted, shifted)),
		xpMul(r, r),
	)
	root, err := e.solveQuadratic(a, b, cc)
	if err != nil {
		return nil, err
	}
	return add(xpMul(r, e.chi1), root), nil
}

func (e *eclp) xGivenY(y, r *big.Int) (*big.Int, error) {
	shifted := sub(y, xpMul(r, e.chi1))
	cs := xpMul(e.c, e.s)
	a := add(xpMul(xpMul(e.c, e.c), e.lambdaInvSq), xpMul(e.s, e.s))
	b := xpMul(xpMul(new(big.Int).Mul(big.NewInt(2), cs), sub(oneXP, e.lambdaInvSq)), shifted)
	cc := sub(
		xpMul(add(xpMul(xpMul(e.s, e.s), e.lambdaInvSq), xpMul(e.c, e.c)), xpMul(shifted, shifted)),
		xpMul(r, r),
	)
	root, err := e.solveQuadratic(a, b, cc)
	if err != nil {
		return nil, err
	}
	return add(xpMul(r, e.chi0), root), nil
}

// conservativeInvariant inflates r slightly so solved balances err toward
// the pool.
func (e *eclp) conservativeInvariant(x, y *big.Int) (*big.Int, error) {
	r, err := e.invariant(x, y)
	if err != nil {
		return nil, err
	}
	return add(r, add(new(big.Int).Quo(r, rMarginDivisor), big.NewInt(1))), nil
}

func (e *eclp) balanceGiven(known *big.Int, r *big.Int, knownIsX bool) (*big.Int, error) {
	if knownIsX {
		return e.yGivenX(known, r)
	}
	return e.xGivenY(known, r)
}

func orient(balanceIn, balanceOut *uint256.Int, tokenInIsToken0 bool) (x, y *big.Int) {
	if tokenInIsToken0 {
		return toXP(balanceIn.ToBig()), toXP(balanceOut.ToBig())
	}
	return toXP(balanceOut.ToBig()), toXP(balanceIn.ToBig())
}

func fromXPDown(v *big.Int) (*uint256.Int, error) {
	if v.Sign() <= 0 {
		return new(uint256.Int), nil
	}
	z, overflow := uint256.FromBig(new(big.Int).Quo(v, one18))
	if overflow {
		return nil, model.ErrMathOverflow
	}
	return z, nil
}

func fromXPUp(v *big.Int) (*uint256.Int, error) {
	if v.Sign() <= 0 {
		return new(uint256.Int), nil
	}
	q, m := new(big.Int).QuoRem(v, one18, new(big.Int))
	if m.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	z, overflow := uint256.FromBig(q)
	if overflow {
		return nil, model.ErrMathOverflow
	}
	return z, nil
}

// ECLPCalcOutGivenIn prices a swap of net, upscaled amountIn on the ellipse.
func ECLPCalcOutGivenIn(balanceIn, balanceOut, amountIn *uint256.Int, tokenInIsToken0 bool, p ECLPParams) (*uint256.Int, error) {
	e, err := newECLP(p)
	if err != nil {
		return nil, err
	}
	x, y := orient(balanceIn, balanceOut, tokenInIsToken0)
	r, err := e.conservativeInvariant(x, y)
	if err != nil {
		return nil, err
	}

	in := toXP(amountIn.ToBig())
	var newOut, oldOut *big.Int
	if tokenInIsToken0 {
		newOut, err = e.balanceGiven(add(x, in), r, true)
		oldOut = y
	} else {
		newOut, err = e.balanceGiven(add(y, in), r, false)
		oldOut = x
	}
	if err != nil {
		return nil, err
	}
	if newOut.Sign() < 0 {
		return nil, fmt.Errorf("eclp: swap drains pool: %w", model.ErrTradeTooLarge)
	}
	return fromXPDown(sub(oldOut, newOut))
}

// ECLPCalcInGivenOut returns the upscaled amount in, before fees, for amountOut.
func ECLPCalcInGivenOut(balanceIn, balanceOut, amountOut *uint256.Int, tokenInIsToken0 bool, p ECLPParams) (*uint256.Int, error) {
	if !amountOut.Lt(balanceOut) {
		return nil, fmt.Errorf("eclp out %s not below balance %s: %w", amountOut.Dec(), balanceOut.Dec(), model.ErrTradeTooLarge)
	}
	e, err := newECLP(p)
	if err != nil {
		return nil, err
	}
	x, y := orient(balanceIn, balanceOut, tokenInIsToken0)
	r, err := e.conservativeInvariant(x, y)
	if err != nil {
		return nil, err
	}

	out := toXP(amountOut.ToBig())
	var newIn, oldIn *big.Int
	if tokenInIsToken0 {
		newIn, err = e.balanceGiven(sub(y, out), r, false)
		oldIn = x
	} else {
		newIn, err = e.balanceGiven(sub(x, out), r, true)
		oldIn = y
	}
	if err != nil {
		return nil, err
	}
	return fromXPUp(sub(newIn, oldIn))
}

// ECLPInvariant returns the curve invariant r in 18 decimals, rounded down.
func ECLPInvariant(x, y *uint256.Int, p ECLPParams) (*big.Int, error) {
	e, err := newECLP(p)
	if err != nil {
		return nil, err
	}
	r, err := e.invariant(toXP(x.ToBig()), toXP(y.ToBig()))
	if err != nil {
		return nil, err
	}
	return r.Quo(r, one18), nil
}
