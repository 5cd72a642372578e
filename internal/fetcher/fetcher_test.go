package fetcher

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultPricer/internal/dex"
	"vaultPricer/internal/fetcher/fetchertest"
	"vaultPricer/internal/model"
)

const (
	weth = "0x00000000000000000000000000000000000000e1"
	usdc = "0x00000000000000000000000000000000000000c1"
	dai  = "0x00000000000000000000000000000000000000d1"
)

func big10(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic(s)
	}
	return v
}

func idFor(addr string) string { return addr + "000100000000000000000001" }

func weightedPool() (model.PoolMetadata, *model.PoolState) {
	addr := "0x1000000000000000000000000000000000000001"
	meta := model.PoolMetadata{ID: idFor(addr), Address: addr, Type: model.PoolTypeWeighted,
		Tokens: []model.Token{{Address: weth, Decimals: 18}, {Address: usdc, Decimals: 6}}}
	state := &model.PoolState{
		ID: meta.ID, Address: addr, Type: meta.Type, BlockNumber: 100, BptIndex: -1,
		TokenOrder: []string{weth, usdc},
		Tokens: map[string]model.TokenState{
			weth: {Balance: big10("1000000000000000000000"), ScalingFactor: big10("1000000000000000000"), Weight: big10("800000000000000000")},
			usdc: {Balance: big10("500000000000"), ScalingFactor: big10("1000000000000000000000000000000"), Weight: big10("200000000000000000")},
		},
		SwapFee: big10("3000000000000000"),
	}
	return meta, state
}

func stablePool() (model.PoolMetadata, *model.PoolState) {
	addr := "0x2000000000000000000000000000000000000002"
	meta := model.PoolMetadata{ID: idFor(addr), Address: addr, Type: model.PoolTypeStable,
		Tokens: []model.Token{{Address: usdc, Decimals: 6}, {Address: dai, Decimals: 18}}}
	state := &model.PoolState{
		ID: meta.ID, Address: addr, Type: meta.Type, BlockNumber: 100, BptIndex: -1,
		TokenOrder: []string{usdc, dai},
		Tokens: map[string]model.TokenState{
			usdc: {Balance: big10("1000000000000"), ScalingFactor: big10("1000000000000000000000000000000")},
			dai:  {Balance: big10("1000000000000000000000000"), ScalingFactor: big10("1000000000000000000")},
		},
		SwapFee: big10("400000000000000"),
		Amp:     big10("200000"),
	}
	return meta, state
}

func linearPool() (model.PoolMetadata, *model.PoolState) {
	addr := "0x3000000000000000000000000000000000000003"
	wrapped := "0x00000000000000000000000000000000000000c2"
	meta := model.PoolMetadata{ID: idFor(addr), Address: addr, Type: model.PoolTypeAaveLinear,
		Tokens: []model.Token{{Address: addr, Decimals: 18}, {Address: usdc, Decimals: 6}, {Address: wrapped, Decimals: 6}}}
	state := &model.PoolState{
		ID: meta.ID, Address: addr, Type: meta.Type, BlockNumber: 100,
		TokenOrder: []string{addr, usdc, wrapped},
		Tokens: map[string]model.TokenState{
			addr:    {Balance: big10("5192296858534827628530496329220095"), ScalingFactor: big10("1000000000000000000")},
			usdc:    {Balance: big10("2000000000"), ScalingFactor: big10("1000000000000000000000000000000")},
			wrapped: {Balance: big10("1000000000"), ScalingFactor: big10("1080000000000000000000000000000")},
		},
		SwapFee:      big10("100000000000000"),
		LowerTarget:  big10("1000000000000000000000"),
		UpperTarget:  big10("5000000000000000000000"),
		BptIndex:     0,
		MainIndex:    1,
		WrappedIndex: 2,
	}
	return meta, state
}

func TestFetchDecodesAcrossChunks(t *testing.T) {
	fake := fetchertest.New()
	var metas []model.PoolMetadata
	want := map[string]*model.PoolState{}
	for _, build := range []func() (model.PoolMetadata, *model.PoolState){weightedPool, stablePool, linearPool} {
		meta, state := build()
		require.NoError(t, fake.SetPool(state))
		metas = append(metas, meta)
		want[meta.Address] = state
	}

	f := New(fake, fetchertest.Vault, Options{ChunkSize: 3, Concurrency: 2})
	batch, err := f.Fetch(context.Background(), metas, 100)
	require.NoError(t, err)
	require.Empty(t, batch.Errors)

	// 3 + 3 + 7 calls in chunks of three.
	assert.Equal(t, 13, fake.Calls())
	assert.Len(t, fake.Batches, 5)
	for _, b := range fake.Blocks {
		assert.Equal(t, uint64(100), b)
	}

	for addr, w := range want {
		got := batch.States[addr]
		require.NotNil(t, got, addr)
		assert.Equal(t, w, got, addr)
	}
}

func TestFetchScopesDecodeErrorsToPool(t *testing.T) {
	fake := fetchertest.New()
	wMeta, wState := weightedPool()
	sMeta, sState := stablePool()
	require.NoError(t, fake.SetPool(wState))
	require.NoError(t, fake.SetPool(sState))
	require.NoError(t, fake.Revert(wMeta.Address, dex.MethodNormalizedWeights))

	bogus := model.PoolMetadata{ID: "0x01", Address: "0x4000000000000000000000000000000000000004", Type: model.PoolTypeWeighted}
	unknown := model.PoolMetadata{ID: idFor("0x5000000000000000000000000000000000000005"), Address: "0x5000000000000000000000000000000000000005", Type: "FX"}

	f := New(fake, fetchertest.Vault, Options{})
	batch, err := f.Fetch(context.Background(), []model.PoolMetadata{wMeta, bogus, unknown, sMeta}, 100)
	require.NoError(t, err)

	var decodeErr *model.DecodeError
	require.ErrorAs(t, batch.Errors[wMeta.Address], &decodeErr)
	assert.Equal(t, dex.MethodNormalizedWeights, decodeErr.Call)
	assert.Error(t, batch.Errors[bogus.Address])
	var unsupported *model.UnsupportedPoolTypeError
	assert.ErrorAs(t, batch.Errors[unknown.Address], &unsupported)

	assert.Equal(t, sState, batch.States[sMeta.Address])
	assert.Len(t, batch.States, 1)
}

func TestFetchChunkFailureIsUpstream(t *testing.T) {
	fake := fetchertest.New()
	meta, state := stablePool()
	require.NoError(t, fake.SetPool(state))
	fake.Err = errors.New("connection reset")

	f := New(fake, fetchertest.Vault, Options{ChunkSize: 1, RPS: 1000})
	_, err := f.Fetch(context.Background(), []model.PoolMetadata{meta}, 100)
	var upstream *model.UpstreamUnavailableError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, "chain", upstream.Source)
}

func TestCallPlans(t *testing.T) {
	meta, _ := stablePool()
	p, err := buildPlan(meta, fetchertest.Vault)
	require.NoError(t, err)
	assert.Equal(t, []string{dex.MethodGetPoolTokens, dex.MethodSwapFee, dex.MethodAmplification}, p.methods)

	meta.Type = model.PoolTypeComposableStable
	p, err = buildPlan(meta, fetchertest.Vault)
	require.NoError(t, err)
	assert.Len(t, p.methods, 5)

	meta.Type = model.PoolTypeGyroE
	p, err = buildPlan(meta, fetchertest.Vault)
	require.NoError(t, err)
	assert.Len(t, p.calls, 2)
}
