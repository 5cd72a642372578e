// Package pool adapts per-family swap math to a common capability interface
// and threads amount arrays through it.
package pool

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"vaultPricer/internal/math/fixedpoint"
	"vaultPricer/internal/model"
)

// PairData is one pool's state normalized for a single (tokenIn, tokenOut)
// direction. Balances are upscaled to 18 decimals.
type PairData struct {
	Pool       string
	Type       model.PoolType
	TokenIn    string
	TokenOut   string
	IndexIn    int
	IndexOut   int
	BalanceIn  *uint256.Int
	BalanceOut *uint256.Int
	ScalingIn  *uint256.Int
	ScalingOut *uint256.Int
	SwapFee    *uint256.Int

	// family carries handler-specific fields.
	family any
}

// Handler is the capability set every pool math family implements.
// Amounts are in native token units.
type Handler interface {
	ParsePairData(meta model.PoolMetadata, state *model.PoolState, tokenIn, tokenOut string) (*PairData, error)
	MaxTradeSize(pair *PairData, side model.Side) (*uint256.Int, error)
	QuoteGivenIn(pair *PairData, amountIn *uint256.Int) (*uint256.Int, error)
	QuoteGivenOut(pair *PairData, amountOut *uint256.Int) (*uint256.Int, error)
}

var (
	handlersMu sync.RWMutex
	handlers   = map[model.Family]Handler{
		model.FamilyWeighted: weightedHandler{},
		model.FamilyStable:   stableHandler{},
		model.FamilyPhantom:  phantomHandler{},
		model.FamilyLinear:   linearHandler{},
		model.FamilyGyro2:    gyro2Handler{},
		model.FamilyGyro3:    gyro3Handler{},
		model.FamilyGyroE:    gyroEHandler{},
	}
)

// Register installs or replaces the handler for a family.
func Register(family model.Family, h Handler) {
	handlersMu.Lock()
	defer handlersMu.Unlock()
	handlers[family] = h
}

// For returns the handler serving a pool type.
func For(t model.PoolType) (Handler, error) {
	handlersMu.RLock()
	defer handlersMu.RUnlock()
	h, ok := handlers[t.Family()]
	if !ok {
		return nil, &model.UnsupportedPoolTypeError{Type: t}
	}
	return h, nil
}

// Quote prices every amount in an ascending array through one pool. The
// leading zero sentinel maps to zero. Once an amount hits the trade-size
// ceiling or a balance bound, it and every later amount are zero without
// further math. A math overflow caps the same way but is logged. Other
// failures, such as a solver that does not converge, are returned.
func Quote(h Handler, pair *PairData, side model.Side, amounts []*uint256.Int, logger *zap.Logger) ([]*uint256.Int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit, err := h.MaxTradeSize(pair, side)
	if err != nil {
		return nil, err
	}
	quoteOne := h.QuoteGivenIn
	switch side {
	case model.SideSell:
	case model.SideBuy:
		quoteOne = h.QuoteGivenOut
	default:
		return nil, model.ErrUnsupportedSide
	}

	out := make([]*uint256.Int, len(amounts))
	capped := false
	for i, amount := range amounts {
		if capped || amount.Gt(limit) {
			capped = true
			out[i] = new(uint256.Int)
			continue
		}
		if amount.IsZero() {
			out[i] = new(uint256.Int)
			continue
		}
		v, err := quoteOne(pair, amount)
		if err != nil {
			switch {
			case errors.Is(err, model.ErrTradeTooLarge):
			case errors.Is(err, model.ErrMathOverflow):
				logger.Warn("math overflow capped quote",
					zap.String("pool", pair.Pool),
					zap.String("type", string(pair.Type)),
					zap.String("side", string(side)),
					zap.Int("index", i),
					zap.String("amount", amount.Dec()),
					zap.Error(err))
			default:
				return nil, err
			}
			capped = true
			out[i] = new(uint256.Int)
			continue
		}
		out[i] = v
	}
	return out, nil
}

// parseBase fills the fields every family shares.
func parseBase(meta model.PoolMetadata, state *model.PoolState, tokenIn, tokenOut string) (*PairData, error) {
	tokenIn = strings.ToLower(tokenIn)
	tokenOut = strings.ToLower(tokenOut)
	indexIn := state.Index(tokenIn)
	indexOut := state.Index(tokenOut)
	if indexIn < 0 || indexOut < 0 || indexIn == indexOut {
		return nil, fmt.Errorf("pool %s does not pair %s and %s", meta.Address, tokenIn, tokenOut)
	}

	p := &PairData{
		Pool:     meta.Address,
		Type:     meta.Type,
		TokenIn:  tokenIn,
		TokenOut: tokenOut,
		IndexIn:  indexIn,
		IndexOut: indexOut,
	}
	var err error
	if p.SwapFee, err = toU256(state.SwapFee); err != nil {
		return nil, err
	}
	if p.ScalingIn, err = scalingFactor(meta, state, tokenIn); err != nil {
		return nil, err
	}
	if p.ScalingOut, err = scalingFactor(meta, state, tokenOut); err != nil {
		return nil, err
	}
	if p.BalanceIn, err = upscaledBalance(state, tokenIn, p.ScalingIn); err != nil {
		return nil, err
	}
	if p.BalanceOut, err = upscaledBalance(state, tokenOut, p.ScalingOut); err != nil {
		return nil, err
	}
	return p, nil
}

func toU256(v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return new(uint256.Int), nil
	}
	return fixedpoint.FromBig(v)
}

// scalingFactor prefers the on-chain factor and falls back to decimals.
func scalingFactor(meta model.PoolMetadata, state *model.PoolState, token string) (*uint256.Int, error) {
	if ts, ok := state.Token(token); ok && ts.ScalingFactor != nil && ts.ScalingFactor.Sign() > 0 {
		return fixedpoint.FromBig(ts.ScalingFactor)
	}
	i := meta.TokenIndex(token)
	if i < 0 {
		return nil, fmt.Errorf("pool %s has no metadata for token %s", meta.Address, token)
	}
	return fixedpoint.ScalingFactor(meta.Tokens[i].Decimals)
}

func upscaledBalance(state *model.PoolState, token string, factor *uint256.Int) (*uint256.Int, error) {
	ts, ok := state.Token(token)
	if !ok {
		return nil, fmt.Errorf("pool %s has no state for token %s", state.Address, token)
	}
	balance, err := toU256(ts.Balance)
	if err != nil {
		return nil, err
	}
	return fixedpoint.Upscale(balance, factor)
}

// upscaledBalances returns every balance in token order.
func upscaledBalances(meta model.PoolMetadata, state *model.PoolState) ([]*uint256.Int, error) {
	out := make([]*uint256.Int, len(state.TokenOrder))
	for i, token := range state.TokenOrder {
		factor, err := scalingFactor(meta, state, token)
		if err != nil {
			return nil, err
		}
		if out[i], err = upscaledBalance(state, token, factor); err != nil {
			return nil, err
		}
	}
	return out, nil
}
