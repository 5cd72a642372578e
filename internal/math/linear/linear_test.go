package linear

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) *uint256.Int { return uint256.MustFromDecimal(s) }

var (
	params = Params{
		Fee:         dec("2000000000000000"),
		LowerTarget: dec("100000000000000000000000"),
		UpperTarget: dec("400000000000000000000000"),
	}
	mainBalance    = dec("450000000000000000000000")
	wrappedBalance = dec("300000000000000000000000")
	bptSupply      = dec("740000000000000000000000")
	thousand       = dec("1000000000000000000000")
)

func TestNominalMapping(t *testing.T) {
	inside, err := ToNominal(dec("200000000000000000000000"), params)
	require.NoError(t, err)
	assert.Equal(t, "200000000000000000000000", inside.Dec())

	below, err := ToNominal(dec("50000000000000000000000"), params)
	require.NoError(t, err)
	assert.Equal(t, "49900000000000000000000", below.Dec())

	back, err := FromNominal(below, params)
	require.NoError(t, err)
	assert.Equal(t, "50000000000000000000000", back.Dec())
}

func TestPairShapes(t *testing.T) {
	tests := []struct {
		name string
		calc func() (*uint256.Int, error)
		want string
	}{
		{
			name: "bpt out per main in",
			calc: func() (*uint256.Int, error) {
				return CalcBptOutPerMainIn(thousand, mainBalance, wrappedBalance, bptSupply, params)
			},
			want: "984824643285771436191",
		},
		{
			name: "main out per bpt in",
			calc: func() (*uint256.Int, error) {
				return CalcMainOutPerBptIn(thousand, mainBalance, wrappedBalance, bptSupply, params)
			},
			want: "1015409196771922222824",
		},
		{
			name: "wrapped out per main in",
			calc: func() (*uint256.Int, error) { return CalcWrappedOutPerMainIn(thousand, mainBalance, params) },
			want: "998000000000000000000",
		},
		{
			name: "main out per wrapped in",
			calc: func() (*uint256.Int, error) { return CalcMainOutPerWrappedIn(thousand, mainBalance, params) },
			want: "1002004008016032064129",
		},
		{
			name: "bpt out per wrapped in",
			calc: func() (*uint256.Int, error) {
				return CalcBptOutPerWrappedIn(thousand, mainBalance, wrappedBalance, bptSupply, params)
			},
			want: "986798239765302040272",
		},
		{
			name: "wrapped out per bpt in",
			calc: func() (*uint256.Int, error) {
				return CalcWrappedOutPerBptIn(thousand, mainBalance, wrappedBalance, bptSupply, params)
			},
			want: "1013378378378378378378",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.calc()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Dec())
		})
	}
}

func TestMainBptInverse(t *testing.T) {
	bptOut, err := CalcBptOutPerMainIn(thousand, mainBalance, wrappedBalance, bptSupply, params)
	require.NoError(t, err)

	mainIn, err := CalcMainInPerBptOut(bptOut, mainBalance, wrappedBalance, bptSupply, params)
	require.NoError(t, err)
	assert.Equal(t, thousand.Dec(), mainIn.Dec())
}

func TestWrappedInverse(t *testing.T) {
	wrappedOut, err := CalcWrappedOutPerMainIn(thousand, mainBalance, params)
	require.NoError(t, err)

	mainIn, err := CalcMainInPerWrappedOut(wrappedOut, mainBalance, params)
	require.NoError(t, err)
	diff := new(uint256.Int)
	if mainIn.Gt(thousand) {
		diff.Sub(mainIn, thousand)
	} else {
		diff.Sub(thousand, mainIn)
	}
	assert.True(t, diff.CmpUint64(2) <= 0, "diff %s", diff.Dec())
}

func TestEmptySupplyMintsNominal(t *testing.T) {
	zero := new(uint256.Int)
	got, err := CalcBptOutPerWrappedIn(thousand, zero, zero, zero, params)
	require.NoError(t, err)
	assert.Equal(t, thousand.Dec(), got.Dec())
}
