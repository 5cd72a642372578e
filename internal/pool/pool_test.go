package pool

import (
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"vaultPricer/internal/model"
)

const (
	dai  = "0x6b175474e89094c44da98b954eedeac495271d0f"
	usdc = "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"
	usdt = "0xdac17f958d2ee523a2206206994597c13d831ec7"
	weth = "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"
)

func bigDec(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic(s)
	}
	return v
}

func u(s string) *uint256.Int { return uint256.MustFromDecimal(s) }

func amounts(ss ...string) []*uint256.Int {
	out := make([]*uint256.Int, len(ss))
	for i, s := range ss {
		out[i] = u(s)
	}
	return out
}

func decStrings(vs []*uint256.Int) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.Dec()
	}
	return out
}

type tokenSpec struct {
	address  string
	decimals uint8
	balance  string
	weight   string
}

func fixture(address string, typ model.PoolType, fee string, tokens ...tokenSpec) (model.PoolMetadata, *model.PoolState) {
	meta := model.PoolMetadata{ID: address + "000200000000000000000001", Address: address, Type: typ}
	state := &model.PoolState{
		ID:           meta.ID,
		Address:      address,
		Type:         typ,
		Tokens:       map[string]model.TokenState{},
		SwapFee:      bigDec(fee),
		BptIndex:     -1,
		MainIndex:    -1,
		WrappedIndex: -1,
	}
	for _, t := range tokens {
		meta.Tokens = append(meta.Tokens, model.Token{Address: t.address, Decimals: t.decimals})
		state.TokenOrder = append(state.TokenOrder, t.address)
		ts := model.TokenState{Balance: bigDec(t.balance)}
		if t.weight != "" {
			ts.Weight = bigDec(t.weight)
		}
		state.Tokens[t.address] = ts
	}
	return meta, state
}

func parse(t *testing.T, meta model.PoolMetadata, state *model.PoolState, in, out string) (Handler, *PairData) {
	t.Helper()
	h, err := For(meta.Type)
	require.NoError(t, err)
	pair, err := h.ParsePairData(meta, state, in, out)
	require.NoError(t, err)
	return h, pair
}

func TestGyro2Scenario(t *testing.T) {
	meta, state := fixture("0xdac42eeb17758daa38caf9a3540c808247527ae3", model.PoolTypeGyro2, "9000000000000000",
		tokenSpec{address: usdc, decimals: 6, balance: "1000000000"},
		tokenSpec{address: dai, decimals: 18, balance: "1232000000000000000000"},
	)
	meta.Gyro = &model.GyroParams{SqrtAlpha: "999500374750171757", SqrtBeta: "1000500375350272092"}

	h, pair := parse(t, meta, state, usdc, dai)

	limit, err := h.MaxTradeSize(pair, model.SideSell)
	require.NoError(t, err)
	assert.Equal(t, "1231998768", limit.Dec())

	prices, err := Quote(h, pair, model.SideSell, amounts("0", "13500000"), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "13379816831223414577"}, decStrings(prices))
}

func TestWeightedHandler(t *testing.T) {
	meta, state := fixture("0x5c6ee304399dbdb9c8ef030ab642b10820db8f56", model.PoolTypeWeighted, "3000000000000000",
		tokenSpec{address: weth, decimals: 18, balance: "1000000000000000000000", weight: "800000000000000000"},
		tokenSpec{address: usdc, decimals: 6, balance: "4000000000", weight: "200000000000000000"},
	)
	h, pair := parse(t, meta, state, weth, usdc)

	sells, err := Quote(h, pair, model.SideSell, amounts("0", "10000000000000000000"), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "155621884"}, decStrings(sells))

	buys, err := Quote(h, pair, model.SideBuy, amounts("0", "100000000"), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "6368631199636341024"}, decStrings(buys))
}

func TestQuoteShortCircuitsAfterLimit(t *testing.T) {
	meta, state := fixture("0x5c6ee304399dbdb9c8ef030ab642b10820db8f56", model.PoolTypeWeighted, "3000000000000000",
		tokenSpec{address: weth, decimals: 18, balance: "1000000000000000000000", weight: "800000000000000000"},
		tokenSpec{address: usdc, decimals: 6, balance: "4000000000", weight: "200000000000000000"},
	)
	h, pair := parse(t, meta, state, weth, usdc)

	counting := &countingHandler{Handler: h}
	prices, err := Quote(counting, pair, model.SideSell, amounts(
		"0",
		"1000000000000000000",
		"300000000000000000000",
		"300000000000000000001",
		"1000000000000000000000",
	), nil)
	require.NoError(t, err)
	require.Len(t, prices, 5)
	assert.True(t, prices[0].IsZero())
	assert.False(t, prices[1].IsZero())
	assert.False(t, prices[2].IsZero())
	assert.True(t, prices[3].IsZero())
	assert.True(t, prices[4].IsZero())
	assert.Equal(t, 2, counting.calls)
}

type countingHandler struct {
	Handler
	calls int
}

func (c *countingHandler) QuoteGivenIn(p *PairData, amountIn *uint256.Int) (*uint256.Int, error) {
	c.calls++
	return c.Handler.QuoteGivenIn(p, amountIn)
}

func TestStableHandler(t *testing.T) {
	meta, state := fixture("0x06df3b2bbb68adc8b0e302443692037ed9f91b42", model.PoolTypeStable, "400000000000000",
		tokenSpec{address: dai, decimals: 18, balance: "1000000000000000000000000"},
		tokenSpec{address: usdc, decimals: 6, balance: "1200000000000"},
		tokenSpec{address: usdt, decimals: 6, balance: "900000000000"},
	)
	state.Amp = big.NewInt(200000)

	h, pair := parse(t, meta, state, usdc, dai)
	sells, err := Quote(h, pair, model.SideSell, amounts("0", "1000000000"), nil)
	require.NoError(t, err)
	assert.Equal(t, "998720836046938854122", sells[1].Dec())

	buys, err := Quote(h, pair, model.SideBuy, amounts("0", "500000000000000000000"), nil)
	require.NoError(t, err)
	assert.Equal(t, "500639272", buys[1].Dec())
}

func TestPhantomStripsLiquidityToken(t *testing.T) {
	pool := "0x79c58f70905f734641735bc61e45c19dd9ad60bc"
	meta, state := fixture(pool, model.PoolTypeComposableStable, "400000000000000",
		tokenSpec{address: dai, decimals: 18, balance: "1000000000000000000000000"},
		tokenSpec{address: pool, decimals: 18, balance: "5192296855534827628530496329220095"},
		tokenSpec{address: usdc, decimals: 6, balance: "1200000000000"},
		tokenSpec{address: usdt, decimals: 6, balance: "900000000000"},
	)
	state.Amp = big.NewInt(200000)
	state.BptIndex = 1

	h, pair := parse(t, meta, state, usdc, pool)
	assert.Equal(t, shapeTokenToBpt, pair.family.(*phantomPair).shape)
	assert.Equal(t, 1, pair.family.(*phantomPair).indexIn)
	assert.Equal(t, "3000000000000000000000000", pair.BalanceOut.Dec())

	prices, err := Quote(h, pair, model.SideSell, amounts("0", "1000000000"), nil)
	require.NoError(t, err)
	assert.Equal(t, "966820615588782000000", prices[1].Dec())

	_, pair = parse(t, meta, state, pool, dai)
	assert.Equal(t, shapeBptToToken, pair.family.(*phantomPair).shape)
	prices, err = Quote(h, pair, model.SideSell, amounts("0", "1000000000000000000000"), nil)
	require.NoError(t, err)
	assert.Equal(t, "1032876508155150221856", prices[1].Dec())
}

func TestLinearHandler(t *testing.T) {
	pool := "0x2bbf681cc4eb09218bee85ea2a5d3d13fa40fc0c"
	wrapped := "0x02d60b84491589974263d922d9cc7a3152618ef6"
	meta, state := fixture(pool, model.PoolTypeAaveLinear, "2000000000000000",
		tokenSpec{address: pool, decimals: 18, balance: "5192296858534827628530496329220095"},
		tokenSpec{address: dai, decimals: 18, balance: "450000000000000000000000"},
		tokenSpec{address: wrapped, decimals: 18, balance: "300000000000000000000000"},
	)
	state.BptIndex = 0
	state.MainIndex = 1
	state.WrappedIndex = 2
	state.LowerTarget = bigDec("100000000000000000000000")
	state.UpperTarget = bigDec("400000000000000000000000")
	// Supply of 740k liquidity tokens.
	held := new(big.Int).Sub(new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 112), big.NewInt(1)), bigDec("740000000000000000000000"))
	state.Tokens[pool] = model.TokenState{Balance: held}

	h, pair := parse(t, meta, state, dai, wrapped)
	prices, err := Quote(h, pair, model.SideSell, amounts("0", "1000000000000000000000"), nil)
	require.NoError(t, err)
	assert.Equal(t, "998000000000000000000", prices[1].Dec())

	_, pair = parse(t, meta, state, dai, pool)
	prices, err = Quote(h, pair, model.SideSell, amounts("0", "1000000000000000000000"), nil)
	require.NoError(t, err)
	assert.Equal(t, "984824643285771436191", prices[1].Dec())

	inputs, err := Quote(h, pair, model.SideBuy, prices, nil)
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000000", inputs[1].Dec())
}

func TestUnsupportedType(t *testing.T) {
	_, err := For(model.PoolType("Element"))
	var unsupported *model.UnsupportedPoolTypeError
	assert.True(t, errors.As(err, &unsupported))
}

func TestConvergenceFailureSurfaces(t *testing.T) {
	meta, state := fixture("0x5c6ee304399dbdb9c8ef030ab642b10820db8f56", model.PoolTypeWeighted, "0",
		tokenSpec{address: weth, decimals: 18, balance: "1000", weight: "500000000000000000"},
		tokenSpec{address: usdc, decimals: 6, balance: "1000", weight: "500000000000000000"},
	)
	_, pair := parse(t, meta, state, weth, usdc)
	failing := failingHandler{err: &model.ConvergenceError{Solver: "test", Iterations: 255}}
	_, err := Quote(failing, pair, model.SideSell, amounts("0", "1"), nil)
	var conv *model.ConvergenceError
	assert.True(t, errors.As(err, &conv))
}

func TestOverflowCapIsLoggedButTradeLimitIsNot(t *testing.T) {
	meta, state := fixture("0x5c6ee304399dbdb9c8ef030ab642b10820db8f56", model.PoolTypeWeighted, "0",
		tokenSpec{address: weth, decimals: 18, balance: "1000", weight: "500000000000000000"},
		tokenSpec{address: usdc, decimals: 6, balance: "1000", weight: "500000000000000000"},
	)
	_, pair := parse(t, meta, state, weth, usdc)

	tests := []struct {
		name string
		err  error
		logs int
	}{
		{name: "overflow", err: fmt.Errorf("sub: %w", model.ErrMathOverflow), logs: 1},
		{name: "trade too large", err: model.ErrTradeTooLarge, logs: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, recorded := observer.New(zap.WarnLevel)
			prices, err := Quote(failingHandler{err: tt.err}, pair, model.SideSell, amounts("0", "1", "2"), zap.New(core))
			require.NoError(t, err)
			require.Len(t, prices, 3)
			for _, p := range prices {
				assert.True(t, p.IsZero())
			}
			assert.Equal(t, tt.logs, recorded.Len())
			if tt.logs > 0 {
				entry := recorded.All()[0]
				assert.Equal(t, "math overflow capped quote", entry.Message)
				assert.Equal(t, pair.Pool, entry.ContextMap()["pool"])
				assert.Equal(t, "1", entry.ContextMap()["amount"])
			}
		})
	}
}

type failingHandler struct {
	weightedHandler
	err error
}

func (f failingHandler) MaxTradeSize(*PairData, model.Side) (*uint256.Int, error) {
	return new(uint256.Int).SetAllOne(), nil
}

func (f failingHandler) QuoteGivenIn(*PairData, *uint256.Int) (*uint256.Int, error) {
	return nil, f.err
}
