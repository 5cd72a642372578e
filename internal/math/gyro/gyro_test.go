package gyro

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultPricer/internal/model"
)

func dec(s string) *uint256.Int { return uint256.MustFromDecimal(s) }

func bigDec(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic(s)
	}
	return v
}

func assertClose(t *testing.T, want string, got *uint256.Int, tolerance uint64) {
	t.Helper()
	w := dec(want)
	diff := new(uint256.Int)
	if got.Gt(w) {
		diff.Sub(got, w)
	} else {
		diff.Sub(w, got)
	}
	assert.True(t, diff.CmpUint64(tolerance) <= 0, "want %s got %s", want, got.Dec())
}

func TestSqrt(t *testing.T) {
	got, err := Sqrt(dec("4000000000000000000"))
	require.NoError(t, err)
	assert.Equal(t, "2000000000000000000", got.Dec())

	got, err = Sqrt(dec("250000000000000000"))
	require.NoError(t, err)
	assert.Equal(t, "500000000000000000", got.Dec())
}

func TestTwoCLPSwap(t *testing.T) {
	// USDC (6 decimals) in, DAI out, both upscaled.
	balanceIn := dec("1000000000000000000000")
	balanceOut := dec("1232000000000000000000")
	sqrtAlpha := dec("999500374750171757")
	sqrtBeta := dec("1000500375350272092")

	l, err := Invariant2(balanceIn, balanceOut, sqrtAlpha, sqrtBeta)
	require.NoError(t, err)
	virtIn, virtOut, err := VirtualOffsets2(l, sqrtAlpha, sqrtBeta)
	require.NoError(t, err)

	// 13.5 USDC less a 0.9% fee.
	out, err := CalcOutGivenIn(balanceIn, balanceOut, dec("13378500000000000000"), virtIn, virtOut)
	require.NoError(t, err)
	assert.Equal(t, "13379816831223414577", out.Dec())

	in, err := CalcInGivenOut(balanceIn, balanceOut, out, virtIn, virtOut)
	require.NoError(t, err)
	assert.False(t, in.Lt(dec("13378500000000000000")), "exact-out must not undercharge")

	_, err = CalcInGivenOut(balanceIn, balanceOut, dec("1232000000000000000001"), virtIn, virtOut)
	assert.ErrorIs(t, err, model.ErrTradeTooLarge)
}

func TestOrientedParams2(t *testing.T) {
	sqrtAlpha := dec("999500374750171757")
	sqrtBeta := dec("1000500375350272092")

	a, b, err := OrientedParams2(sqrtAlpha, sqrtBeta, true)
	require.NoError(t, err)
	assert.Equal(t, sqrtAlpha, a)
	assert.Equal(t, sqrtBeta, b)

	a, b, err = OrientedParams2(sqrtAlpha, sqrtBeta, false)
	require.NoError(t, err)
	assert.True(t, a.Lt(b))
	assert.True(t, a.Lt(dec("1000000000000000000")))
}

func TestThreeCLP(t *testing.T) {
	balances := []*uint256.Int{
		dec("1000000000000000000000"),
		dec("1200000000000000000000"),
		dec("900000000000000000000"),
	}
	root3Alpha := dec("995000000000000000")

	l, err := Invariant3(balances, root3Alpha)
	require.NoError(t, err)
	assert.Equal(t, "206659140667123407494948", l.Dec())

	offset, err := VirtualOffset3(l, root3Alpha)
	require.NoError(t, err)
	ten := dec("10000000000000000000")

	out, err := CalcOutGivenIn(balances[0], balances[1], ten, offset, offset)
	require.NoError(t, err)
	assert.Equal(t, "10009194919692335868", out.Dec())

	in, err := CalcInGivenOut(balances[0], balances[1], ten, offset, offset)
	require.NoError(t, err)
	assert.Equal(t, "9990813083009511808", in.Dec())
}

var eclpParams = ECLPParams{
	Alpha:  bigDec("900000000000000000"),
	Beta:   bigDec("1100000000000000000"),
	C:      bigDec("707106781186547524"),
	S:      bigDec("707106781186547524"),
	Lambda: bigDec("5000000000000000000"),
}

func TestECLPInvariant(t *testing.T) {
	thousand := dec("1000000000000000000000")
	r, err := ECLPInvariant(thousand, thousand, eclpParams)
	require.NoError(t, err)
	// 1193.1432663409414 by floating point.
	assert.Equal(t, "1193143266340941", new(big.Int).Quo(r, big.NewInt(1e6)).String())
}

func TestECLPSwap(t *testing.T) {
	thousand := dec("1000000000000000000000")
	ten := dec("10000000000000000000")

	out, err := ECLPCalcOutGivenIn(thousand, thousand, ten, true, eclpParams)
	require.NoError(t, err)
	assertClose(t, "9951929673133074212", out, 1000)

	out, err = ECLPCalcOutGivenIn(thousand, thousand, ten, false, eclpParams)
	require.NoError(t, err)
	assertClose(t, "10038779430001180621", out, 1000)

	in, err := ECLPCalcInGivenOut(thousand, thousand, ten, true, eclpParams)
	require.NoError(t, err)
	assertClose(t, "10048325485816899319", in, 1000)

	_, err = ECLPCalcInGivenOut(thousand, thousand, thousand, true, eclpParams)
	assert.ErrorIs(t, err, model.ErrTradeTooLarge)
}

func TestECLPRejectsBadParams(t *testing.T) {
	bad := eclpParams
	bad.Alpha, bad.Beta = bad.Beta, bad.Alpha
	_, err := ECLPInvariant(dec("1"), dec("1"), bad)
	assert.Error(t, err)

	bad = eclpParams
	bad.S = bigDec("100000000000000000")
	_, err = ECLPInvariant(dec("1"), dec("1"), bad)
	assert.Error(t, err)
}
