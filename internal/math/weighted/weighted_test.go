package weighted

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultPricer/internal/math/fixedpoint"
	"vaultPricer/internal/model"
)

func dec(s string) *uint256.Int { return uint256.MustFromDecimal(s) }

var (
	balanceIn  = dec("1000000000000000000000")
	balanceOut = dec("4000000000000000000000")
	weightIn   = dec("800000000000000000")
	weightOut  = dec("200000000000000000")
	swapFee    = dec("3000000000000000")
)

func TestCalcOutGivenIn(t *testing.T) {
	amount := dec("10000000000000000000")
	fee, err := fixedpoint.MulUp(amount, swapFee)
	require.NoError(t, err)
	net := new(uint256.Int).Sub(amount, fee)

	out, err := CalcOutGivenIn(balanceIn, weightIn, balanceOut, weightOut, net)
	require.NoError(t, err)
	assert.Equal(t, "155621884623040368000", out.Dec())

	native, err := fixedpoint.DownscaleDown(out, dec("1000000000000000000000000000000"))
	require.NoError(t, err)
	assert.Equal(t, "155621884", native.Dec())
}

func TestCalcInGivenOut(t *testing.T) {
	amountOut := dec("100000000000000000000")
	in, err := CalcInGivenOut(balanceIn, weightIn, balanceOut, weightOut, amountOut)
	require.NoError(t, err)
	assert.Equal(t, "6349525306037432000", in.Dec())

	gross, err := fixedpoint.DivUp(in, fixedpoint.Complement(swapFee))
	require.NoError(t, err)
	assert.Equal(t, "6368631199636341024", gross.Dec())
}

func TestRatioLimits(t *testing.T) {
	_, err := CalcOutGivenIn(balanceIn, weightIn, balanceOut, weightOut, dec("300000000000000000001"))
	assert.ErrorIs(t, err, model.ErrTradeTooLarge)

	_, err = CalcOutGivenIn(balanceIn, weightIn, balanceOut, weightOut, dec("300000000000000000000"))
	assert.NoError(t, err)

	_, err = CalcInGivenOut(balanceIn, weightIn, balanceOut, weightOut, dec("1200000000000000000001"))
	assert.ErrorIs(t, err, model.ErrTradeTooLarge)
}

func TestMarginalRateDiminishes(t *testing.T) {
	prevRate := new(uint256.Int).SetAllOne()
	for _, a := range []string{"1000000000000000000", "10000000000000000000", "100000000000000000000", "250000000000000000000"} {
		amount := dec(a)
		out, err := CalcOutGivenIn(balanceIn, weightIn, balanceOut, weightOut, amount)
		require.NoError(t, err)
		rate, err := fixedpoint.DivDown(out, amount)
		require.NoError(t, err)
		assert.True(t, rate.Lt(prevRate), "rate %s should fall below %s", rate.Dec(), prevRate.Dec())
		prevRate = rate
	}
}
