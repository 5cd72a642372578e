package stable

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultPricer/internal/model"
)

func dec(s string) *uint256.Int { return uint256.MustFromDecimal(s) }

func decs(ss ...string) []*uint256.Int {
	out := make([]*uint256.Int, len(ss))
	for i, s := range ss {
		out[i] = dec(s)
	}
	return out
}

// DAI / USDC / USDT, upscaled.
var (
	amp      = uint256.NewInt(200 * AmpPrecision)
	balances = decs("1000000000000000000000000", "1200000000000000000000000", "900000000000000000000000")
	swapFee  = dec("400000000000000")
)

func TestCalculateInvariant(t *testing.T) {
	inv, err := CalculateInvariant(amp, balances)
	require.NoError(t, err)
	assert.Equal(t, "3099888769460454695322188", inv.Dec())

	zero, err := CalculateInvariant(amp, decs("0", "0"))
	require.NoError(t, err)
	assert.True(t, zero.IsZero())
}

func TestSwap(t *testing.T) {
	inv, err := CalculateInvariant(amp, balances)
	require.NoError(t, err)

	// 1000 USDC less a 0.04% fee, upscaled from 6 decimals.
	out, err := CalcOutGivenIn(amp, balances, 1, 0, dec("999600000000000000000"), inv)
	require.NoError(t, err)
	assert.Equal(t, "998720836046938854122", out.Dec())

	in, err := CalcInGivenOut(amp, balances, 1, 0, dec("500000000000000000000"), inv)
	require.NoError(t, err)
	assert.Equal(t, "500439015491721816584", in.Dec())

	assert.Equal(t, "1000000000000000000000000", balances[0].Dec(), "inputs must not be mutated")
}

func TestBalanceGivenInvariantInverts(t *testing.T) {
	tests := []struct {
		name     string
		amp      uint64
		balances []string
	}{
		{name: "two tokens low amp", amp: 1, balances: []string{"1000000000000000000000", "2000000000000000000000"}},
		{name: "balanced three", amp: 50, balances: []string{"1000000000000000000000000", "1000000000000000000000000", "1000000000000000000000000"}},
		{name: "four tokens max amp", amp: 5000, balances: []string{"300000000000000000000000", "500000000000000000000000", "700000000000000000000000", "1100000000000000000000000"}},
		{name: "five tokens", amp: 200, balances: []string{"10000000000000000000000", "90000000000000000000000", "30000000000000000000000", "40000000000000000000000", "80000000000000000000000"}},
		{name: "skewed", amp: 1, balances: []string{"100000000000000000000", "1000000000000000000000000"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := uint256.NewInt(tt.amp * AmpPrecision)
			bals := decs(tt.balances...)
			inv, err := CalculateInvariant(a, bals)
			require.NoError(t, err)

			for i, b := range bals {
				got, err := BalanceGivenInvariant(a, bals, inv, i)
				require.NoError(t, err)
				require.False(t, got.Lt(b), "solved balance rounds up")
				diff := new(uint256.Int).Sub(got, b)
				tolerance := new(uint256.Int).Div(b, uint256.NewInt(1e15))
				assert.False(t, diff.Gt(tolerance), "token %d diff %s", i, diff.Dec())
			}
		})
	}
}

func TestPhantomShapes(t *testing.T) {
	inv, err := CalculateInvariant(amp, balances)
	require.NoError(t, err)
	supply := dec("3000000000000000000000000")
	thousand := dec("1000000000000000000000")

	bptOut, err := CalcBptOutGivenExactTokensIn(amp, balances, decs("0", "1000000000000000000000", "0"), supply, inv, swapFee)
	require.NoError(t, err)
	assert.Equal(t, "966820615588782000000", bptOut.Dec())

	tokenOut, err := CalcTokenOutGivenExactBptIn(amp, balances, 0, thousand, supply, inv, swapFee)
	require.NoError(t, err)
	assert.Equal(t, "1032876508155150221856", tokenOut.Dec())

	bptIn, err := CalcBptInGivenExactTokensOut(amp, balances, decs("1000000000000000000000", "0", "0"), supply, inv, swapFee)
	require.NoError(t, err)
	assert.Equal(t, "968169930619869000000", bptIn.Dec())

	tokenIn, err := CalcTokenInGivenExactBptOut(amp, balances, 1, thousand, supply, inv, swapFee)
	require.NoError(t, err)
	assert.Equal(t, "1034318120350630058668", tokenIn.Dec())
}

func TestSwapBeyondBalanceFails(t *testing.T) {
	inv, err := CalculateInvariant(amp, balances)
	require.NoError(t, err)

	_, err = CalcInGivenOut(amp, balances, 1, 0, dec("1000000000000000000000001"), inv)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrMathOverflow))
}
