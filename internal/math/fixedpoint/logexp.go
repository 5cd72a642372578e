package fixedpoint

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

var (
	ErrBaseOutOfBounds     = errors.New("logexp: base out of bounds")
	ErrExponentOutOfBounds = errors.New("logexp: exponent out of bounds")
	ErrProductOutOfBounds  = errors.New("logexp: product out of bounds")
	ErrInvalidExponent     = errors.New("logexp: invalid exponent")
)

func bigDec(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("logexp: bad constant " + s)
	}
	return v
}

var (
	one18 = bigDec("1000000000000000000")
	one20 = bigDec("100000000000000000000")
	one36 = bigDec("1000000000000000000000000000000000000")

	maxNaturalExponent = new(big.Int).Mul(big.NewInt(130), one18)
	minNaturalExponent = new(big.Int).Mul(big.NewInt(-41), one18)

	ln36LowerBound = new(big.Int).Sub(one18, big.NewInt(1e17))
	ln36UpperBound = new(big.Int).Add(one18, big.NewInt(1e17))

	mildExponentBound = new(big.Int).Quo(new(big.Int).Lsh(big.NewInt(1), 254), one20)

	// 18 decimal constants
	x0 = bigDec("128000000000000000000")
	a0 = bigDec("38877084059945950922200000000000000000000000000000000000")
	x1 = bigDec("64000000000000000000")
	a1 = bigDec("6235149080811616882910000000")

	// 20 decimal constants
	x2  = bigDec("3200000000000000000000")
	a2  = bigDec("7896296018268069516100000000000000")
	x3  = bigDec("1600000000000000000000")
	a3  = bigDec("888611052050787263676000000")
	x4  = bigDec("800000000000000000000")
	a4  = bigDec("298095798704172827474000")
	x5  = bigDec("400000000000000000000")
	a5  = bigDec("5459815003314423907810")
	x6  = bigDec("200000000000000000000")
	a6  = bigDec("738905609893065022723")
	x7  = bigDec("100000000000000000000")
	a7  = bigDec("271828182845904523536")
	x8  = bigDec("50000000000000000000")
	a8  = bigDec("164872127070012814685")
	x9  = bigDec("25000000000000000000")
	a9  = bigDec("128402541668774148407")
	x10 = bigDec("12500000000000000000")
	a10 = bigDec("113314845306682631683")
	x11 = bigDec("6250000000000000000")
	a11 = bigDec("106449445891785942956")

	expSteps = [][2]*big.Int{{x2, a2}, {x3, a3}, {x4, a4}, {x5, a5}, {x6, a6}, {x7, a7}, {x8, a8}, {x9, a9}}
	lnSteps  = [][2]*big.Int{{x2, a2}, {x3, a3}, {x4, a4}, {x5, a5}, {x6, a6}, {x7, a7}, {x8, a8}, {x9, a9}, {x10, a10}, {x11, a11}}
)

// Pow computes x^y for 18-decimal x and y using natural log and exp series.
// Division truncates toward zero, matching signed 256-bit semantics.
func Pow(x, y *uint256.Int) (*uint256.Int, error) {
	if y.IsZero() {
		return One.Clone(), nil
	}
	if x.IsZero() {
		return new(uint256.Int), nil
	}
	if x.Gt(maxUint255) {
		return nil, ErrBaseOutOfBounds
	}

	xi := x.ToBig()
	yi := y.ToBig()
	if yi.Cmp(mildExponentBound) >= 0 {
		return nil, ErrExponentOutOfBounds
	}

	var logxTimesY *big.Int
	if xi.Cmp(ln36LowerBound) > 0 && xi.Cmp(ln36UpperBound) < 0 {
		ln36x := ln36(xi)
		hi := new(big.Int).Quo(ln36x, one18)
		hi.Mul(hi, yi)
		lo := new(big.Int).Rem(ln36x, one18)
		lo.Mul(lo, yi)
		lo.Quo(lo, one18)
		logxTimesY = hi.Add(hi, lo)
	} else {
		logxTimesY = ln(xi)
		logxTimesY.Mul(logxTimesY, yi)
	}
	logxTimesY.Quo(logxTimesY, one18)

	if logxTimesY.Cmp(minNaturalExponent) < 0 || logxTimesY.Cmp(maxNaturalExponent) > 0 {
		return nil, ErrProductOutOfBounds
	}

	result, err := exp(logxTimesY)
	if err != nil {
		return nil, err
	}
	return FromBig(result)
}

func exp(x *big.Int) (*big.Int, error) {
	if x.Cmp(minNaturalExponent) < 0 || x.Cmp(maxNaturalExponent) > 0 {
		return nil, ErrInvalidExponent
	}
	if x.Sign() < 0 {
		inverse, err := exp(new(big.Int).Neg(x))
		if err != nil {
			return nil, err
		}
		num := new(big.Int).Mul(one18, one18)
		return num.Quo(num, inverse), nil
	}

	x = new(big.Int).Set(x)
	firstAN := big.NewInt(1)
	if x.Cmp(x0) >= 0 {
		x.Sub(x, x0)
		firstAN = a0
	} else if x.Cmp(x1) >= 0 {
		x.Sub(x, x1)
		firstAN = a1
	}

	// switch to 20 decimals
	x.Mul(x, big.NewInt(100))

	product := new(big.Int).Set(one20)
	for _, step := range expSteps {
		if x.Cmp(step[0]) >= 0 {
			x.Sub(x, step[0])
			product.Mul(product, step[1])
			product.Quo(product, one20)
		}
	}

	seriesSum := new(big.Int).Set(one20)
	term := new(big.Int).Set(x)
	seriesSum.Add(seriesSum, term)
	for i := int64(2); i <= 12; i++ {
		term.Mul(term, x)
		term.Quo(term, one20)
		term.Quo(term, big.NewInt(i))
		seriesSum.Add(seriesSum, term)
	}

	result := product.Mul(product, seriesSum)
	result.Quo(result, one20)
	result.Mul(result, firstAN)
	return result.Quo(result, big.NewInt(100)), nil
}

func ln(a *big.Int) *big.Int {
	if a.Cmp(one18) < 0 {
		inv := new(big.Int).Mul(one18, one18)
		inv.Quo(inv, a)
		r := ln(inv)
		return r.Neg(r)
	}

	a = new(big.Int).Set(a)
	sum := new(big.Int)
	if a.Cmp(new(big.Int).Mul(a0, one18)) >= 0 {
		a.Quo(a, a0)
		sum.Add(sum, x0)
	}
	if a.Cmp(new(big.Int).Mul(a1, one18)) >= 0 {
		a.Quo(a, a1)
		sum.Add(sum, x1)
	}

	// switch to 20 decimals
	sum.Mul(sum, big.NewInt(100))
	a.Mul(a, big.NewInt(100))

	for _, step := range lnSteps {
		if a.Cmp(step[1]) >= 0 {
			a.Mul(a, one20)
			a.Quo(a, step[1])
			sum.Add(sum, step[0])
		}
	}

	z := new(big.Int).Sub(a, one20)
	z.Mul(z, one20)
	z.Quo(z, new(big.Int).Add(a, one20))
	zSquared := new(big.Int).Mul(z, z)
	zSquared.Quo(zSquared, one20)

	num := new(big.Int).Set(z)
	seriesSum := new(big.Int).Set(num)
	for _, d := range []int64{3, 5, 7, 9, 11} {
		num.Mul(num, zSquared)
		num.Quo(num, one20)
		seriesSum.Add(seriesSum, new(big.Int).Quo(num, big.NewInt(d)))
	}
	seriesSum.Mul(seriesSum, big.NewInt(2))

	sum.Add(sum, seriesSum)
	return sum.Quo(sum, big.NewInt(100))
}

// ln36 is the high precision natural log used for bases close to one.
func ln36(x *big.Int) *big.Int {
	x = new(big.Int).Mul(x, one18)

	z := new(big.Int).Sub(x, one36)
	z.Mul(z, one36)
	z.Quo(z, new(big.Int).Add(x, one36))
	zSquared := new(big.Int).Mul(z, z)
	zSquared.Quo(zSquared, one36)

	num := new(big.Int).Set(z)
	seriesSum := new(big.Int).Set(num)
	for _, d := range []int64{3, 5, 7, 9, 11, 13, 15} {
		num.Mul(num, zSquared)
		num.Quo(num, one36)
		seriesSum.Add(seriesSum, new(big.Int).Quo(num, big.NewInt(d)))
	}
	return seriesSum.Mul(seriesSum, big.NewInt(2))
}
