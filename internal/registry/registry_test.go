package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultPricer/internal/cache"
	"vaultPricer/internal/model"
)

const (
	usdc  = "0x00000000000000000000000000000000000000c1"
	ausdc = "0x00000000000000000000000000000000000000c2"
	dai   = "0x00000000000000000000000000000000000000d1"
	adai  = "0x00000000000000000000000000000000000000d2"
	weth  = "0x00000000000000000000000000000000000000e1"

	linearUSDC = "0x0000000000000000000000000000000000000a01"
	linearDAI  = "0x0000000000000000000000000000000000000a02"
	boosted    = "0x0000000000000000000000000000000000000b01"
	weighted   = "0x0000000000000000000000000000000000000c01"
)

func poolID(addr string) string { return addr + "000000000000000000000000" }

func fixture() Snapshot {
	tok := func(a string, d uint8) model.Token { return model.Token{Address: a, Decimals: d} }
	return Snapshot{
		Pools: []model.PoolMetadata{
			{ID: poolID(linearUSDC), Address: linearUSDC, Type: model.PoolTypeAaveLinear, Tokens: []model.Token{tok(usdc, 6), tok(ausdc, 6), tok(linearUSDC, 18)}},
			{ID: poolID(linearDAI), Address: linearDAI, Type: model.PoolTypeERC4626Linear, Tokens: []model.Token{tok(dai, 18), tok(adai, 18), tok(linearDAI, 18)}},
			{ID: poolID(boosted), Address: boosted, Type: model.PoolTypeComposableStable, Tokens: []model.Token{tok(linearUSDC, 18), tok(linearDAI, 18), tok(boosted, 18)}, LiquidityUSD: 5e6},
			{ID: poolID(weighted), Address: weighted, Type: model.PoolTypeWeighted, Tokens: []model.Token{tok(weth, 18), tok(boosted, 18)}, LiquidityUSD: 1e6},
			{ID: "0xdead", Address: "0xdead", Type: "Element", Tokens: []model.Token{tok(weth, 18)}},
		},
		Edges: []model.NestedEdge{
			{Parent: poolID(boosted), Child: poolID(linearUSDC), Kind: model.EdgeNestedMainToken},
			{Parent: poolID(boosted), Child: poolID(linearDAI), Kind: model.EdgeNestedMainToken},
			{Parent: poolID(weighted), Child: poolID(boosted), Kind: model.EdgeNestedMainToken},
			{Parent: poolID(weighted), Child: poolID(linearDAI), Kind: model.EdgeNestedMainToken},
		},
		Disabled: []string{"0x0000000000000000000000000000000000000C01"},
	}
}

type staticSource struct {
	snap  Snapshot
	err   error
	calls int
}

func (s *staticSource) FetchPools(context.Context) (Snapshot, error) {
	s.calls++
	return s.snap, s.err
}

func (s *staticSource) DisabledPools(context.Context) ([]string, error) {
	return s.snap.Disabled, s.err
}

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	r := New(&staticSource{snap: fixture()}, cache.NewMemory(8), Options{})
	require.NoError(t, r.Refresh(context.Background()))
	require.NoError(t, r.RefreshDisabled(context.Background()))
	return r
}

func TestMainTokenDerivation(t *testing.T) {
	r := newRegistry(t)

	_, ok := r.Pool("0xdead")
	assert.False(t, ok, "unsupported type is skipped")

	lin, ok := r.Pool(linearUSDC)
	require.True(t, ok)
	assert.Len(t, lin.MainTokens, 2)
	_, ok = lin.MainToken(linearUSDC)
	assert.False(t, ok, "own BPT is not a main token")

	bb, _ := r.Pool(boosted)
	m, ok := bb.MainToken(usdc)
	require.True(t, ok)
	assert.False(t, m.DeeplyNested)
	assert.Equal(t, model.Path{{Pool: linearUSDC, PoolID: poolID(linearUSDC), TokenIn: linearUSDC, TokenOut: usdc}}, m.Path)
	assert.Equal(t, linearUSDC, m.PoolToken())

	w, _ := r.Pool(weighted)
	m, ok = w.MainToken(usdc)
	require.True(t, ok)
	assert.True(t, m.DeeplyNested)
	assert.Equal(t, boosted, m.PoolToken())
	assert.Equal(t, []string{boosted, linearUSDC}, m.Path.Pools())

	// weighted does not hold the linearDAI BPT, so that edge is ignored.
	m, _ = w.MainToken(dai)
	assert.Equal(t, []string{boosted, linearDAI}, m.Path.Pools())
}

func TestResolvePath(t *testing.T) {
	r := newRegistry(t)

	path, err := r.ResolvePath(boosted, usdc, dai, model.SideSell)
	require.NoError(t, err)
	assert.Equal(t, model.Path{
		{Pool: linearUSDC, PoolID: poolID(linearUSDC), TokenIn: usdc, TokenOut: linearUSDC},
		{Pool: boosted, PoolID: poolID(boosted), TokenIn: linearUSDC, TokenOut: linearDAI},
		{Pool: linearDAI, PoolID: poolID(linearDAI), TokenIn: linearDAI, TokenOut: dai},
	}, path)

	buy, err := r.ResolvePath(boosted, usdc, dai, model.SideBuy)
	require.NoError(t, err)
	assert.Equal(t, path.Reverse(), buy)

	path, err = r.ResolvePath(weighted, usdc, weth, model.SideSell)
	require.NoError(t, err)
	assert.Equal(t, []string{linearUSDC, boosted, weighted}, path.Pools())
	assert.Equal(t, usdc, path[0].TokenIn)
	assert.Equal(t, weth, path[2].TokenOut)

	for _, tc := range []struct {
		name, pool, in, out string
	}{
		{"same pool token", boosted, usdc, ausdc},
		{"both deep through one entry", weighted, usdc, dai},
		{"unknown token", boosted, weth, usdc},
		{"identical", boosted, usdc, usdc},
		{"unknown pool", "0xffff", usdc, dai},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := r.ResolvePath(tc.pool, tc.in, tc.out, model.SideSell)
			assert.ErrorIs(t, err, ErrNoPath)
		})
	}
}

func TestResolvePathRejectsSharedDeepStructure(t *testing.T) {
	hop := func(pool, in, out string) model.PathHop {
		return model.PathHop{Pool: pool, TokenIn: in, TokenOut: out}
	}
	meta := model.PoolMetadata{
		Address: "0xp",
		MainTokens: []model.MainToken{
			{Token: model.Token{Address: "0xa"}, DeeplyNested: true, Path: model.Path{hop("0xx", "0xx", "0xl"), hop("0xl", "0xl", "0xa")}},
			{Token: model.Token{Address: "0xb"}, DeeplyNested: true, Path: model.Path{hop("0xy", "0xy", "0xl"), hop("0xl", "0xl", "0xb")}},
		},
	}
	_, err := ResolvePath(meta, "0xa", "0xb", model.SideSell)
	assert.ErrorIs(t, err, ErrNoPath)
}

func TestCandidatesAndDisabled(t *testing.T) {
	r := newRegistry(t)

	got := r.Candidates(usdc, dai)
	require.Len(t, got, 1)
	assert.Equal(t, boosted, got[0].Address)

	assert.Len(t, r.Candidates(usdc, weth), 1)
	assert.True(t, r.IsDisabled(weighted))
	assert.False(t, r.IsDisabled(boosted))
}

func TestRefreshUsesCacheAndKeepsLastView(t *testing.T) {
	src := &staticSource{snap: fixture()}
	r := New(src, cache.NewMemory(8), Options{TTL: 100 * time.Millisecond})
	ctx := context.Background()

	require.NoError(t, r.Refresh(ctx))
	require.NoError(t, r.Refresh(ctx))
	assert.Equal(t, 1, src.calls, "second refresh is served from the cache")

	time.Sleep(200 * time.Millisecond)
	src.err = errors.New("connection refused")
	err := r.Refresh(ctx)
	var upstream *model.UpstreamUnavailableError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, 2, src.calls)

	_, ok := r.Pool(boosted)
	assert.True(t, ok, "last good view retained")
}

func TestNestedEdgeValidation(t *testing.T) {
	snap := fixture()
	snap.Edges = append(snap.Edges,
		model.NestedEdge{Parent: poolID(linearUSDC), Child: poolID(linearDAI), Kind: model.EdgeNestedMainToken},
		model.NestedEdge{Parent: poolID(boosted), Child: poolID(weighted), Kind: "other"},
	)
	r := New(&staticSource{snap: snap}, nil, Options{})
	require.NoError(t, r.Refresh(context.Background()))

	lin, _ := r.Pool(linearUSDC)
	_, ok := lin.MainToken(dai)
	assert.False(t, ok, "edge to a pool whose token is not held is dropped")
}

// stalledSource never finishes a pool-list fetch.
type stalledSource struct {
	started chan struct{}
	once    sync.Once

	mu       sync.Mutex
	disabled []string
}

func (s *stalledSource) FetchPools(ctx context.Context) (Snapshot, error) {
	s.once.Do(func() { close(s.started) })
	<-ctx.Done()
	return Snapshot{}, ctx.Err()
}

func (s *stalledSource) DisabledPools(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.disabled...), nil
}

func (s *stalledSource) setDisabled(list ...string) {
	s.mu.Lock()
	s.disabled = list
	s.mu.Unlock()
}

func TestRunRefreshesDisabledWhilePoolFetchStalls(t *testing.T) {
	src := &stalledSource{started: make(chan struct{})}
	r := New(src, cache.NewMemory(8), Options{TTL: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, 5*time.Millisecond, 5*time.Millisecond) }()

	select {
	case <-src.started:
	case <-time.After(time.Second):
		t.Fatal("pool refresh never started")
	}
	src.setDisabled(weighted)
	assert.Eventually(t, func() bool { return r.IsDisabled(weighted) }, time.Second, 5*time.Millisecond)
	assert.False(t, r.Ready(), "pool list is still stalled")

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}
