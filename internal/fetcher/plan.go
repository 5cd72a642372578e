package fetcher

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"vaultPricer/internal/chain"
	"vaultPricer/internal/dex"
	"vaultPricer/internal/math/fixedpoint"
	"vaultPricer/internal/math/stable"
	"vaultPricer/internal/model"
)

// poolPlan is the ordered list of reads for one pool. Decoding consumes
// exactly len(methods) results.
type poolPlan struct {
	meta    model.PoolMetadata
	methods []string
	calls   []chain.Call
}

// extraMethods lists the type-specific getters read after getPoolTokens and
// the swap fee.
func extraMethods(t model.PoolType) []string {
	switch t.Family() {
	case model.FamilyWeighted:
		return []string{dex.MethodNormalizedWeights}
	case model.FamilyStable:
		if t == model.PoolTypeMetaStable {
			return []string{dex.MethodAmplification, dex.MethodScalingFactors}
		}
		return []string{dex.MethodAmplification}
	case model.FamilyPhantom:
		return []string{dex.MethodAmplification, dex.MethodScalingFactors, dex.MethodBptIndex}
	case model.FamilyLinear:
		return []string{dex.MethodScalingFactors, dex.MethodTargets, dex.MethodMainIndex, dex.MethodWrappedIndex, dex.MethodBptIndex}
	default:
		return nil
	}
}

func buildPlan(meta model.PoolMetadata, vault common.Address) (poolPlan, error) {
	if meta.Type.Family() == model.FamilyUnknown {
		return poolPlan{}, &model.UnsupportedPoolTypeError{Type: meta.Type}
	}
	id, err := parsePoolID(meta.ID)
	if err != nil {
		return poolPlan{}, err
	}
	if !common.IsHexAddress(meta.Address) {
		return poolPlan{}, fmt.Errorf("invalid pool address %q", meta.Address)
	}
	pool := common.HexToAddress(meta.Address)

	tokensData, err := dex.PackGetPoolTokens(id)
	if err != nil {
		return poolPlan{}, fmt.Errorf("pack %s: %w", dex.MethodGetPoolTokens, err)
	}
	p := poolPlan{
		meta:    meta,
		methods: []string{dex.MethodGetPoolTokens},
		calls:   []chain.Call{{Target: vault, Data: tokensData}},
	}
	for _, method := range append([]string{dex.MethodSwapFee}, extraMethods(meta.Type)...) {
		data, err := dex.PackPoolCall(method)
		if err != nil {
			return poolPlan{}, fmt.Errorf("pack %s: %w", method, err)
		}
		p.methods = append(p.methods, method)
		p.calls = append(p.calls, chain.Call{Target: pool, Data: data})
	}
	return p, nil
}

func parsePoolID(id string) ([32]byte, error) {
	var out [32]byte
	raw, err := hexutil.Decode(id)
	if err != nil {
		return out, fmt.Errorf("invalid pool id %q: %w", id, err)
	}
	if len(raw) != 32 {
		return out, fmt.Errorf("pool id %q is %d bytes", id, len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

// decode builds a PoolState from the plan's results. Every failure is a
// DecodeError naming the call.
func (p poolPlan) decode(results []chain.Result, block uint64) (*model.PoolState, error) {
	meta := p.meta
	fail := func(call string, err error) error {
		return &model.DecodeError{Pool: meta.Address, Call: call, Err: err}
	}
	for i, r := range results {
		if !r.Success {
			return nil, fail(p.methods[i], fmt.Errorf("call reverted"))
		}
	}

	tokens, balances, err := dex.UnpackPoolTokens(results[0].ReturnData)
	if err != nil {
		return nil, fail(dex.MethodGetPoolTokens, err)
	}
	state := &model.PoolState{
		ID:          meta.ID,
		Address:     meta.Address,
		Type:        meta.Type,
		BlockNumber: block,
		TokenOrder:  make([]string, len(tokens)),
		Tokens:      make(map[string]model.TokenState, len(tokens)),
		BptIndex:    -1,
	}
	for i, t := range tokens {
		addr := strings.ToLower(t.Hex())
		state.TokenOrder[i] = addr
		state.Tokens[addr] = model.TokenState{Balance: balances[i]}
	}
	if state.SwapFee, err = dex.UnpackUint(dex.MethodSwapFee, results[1].ReturnData); err != nil {
		return nil, fail(dex.MethodSwapFee, err)
	}

	var factors []*big.Int
	for i, method := range p.methods[2:] {
		data := results[i+2].ReturnData
		switch method {
		case dex.MethodNormalizedWeights:
			weights, err := dex.UnpackUints(method, data)
			if err != nil {
				return nil, fail(method, err)
			}
			if len(weights) != len(tokens) {
				return nil, fail(method, fmt.Errorf("%d weights for %d tokens", len(weights), len(tokens)))
			}
			for j, addr := range state.TokenOrder {
				ts := state.Tokens[addr]
				ts.Weight = weights[j]
				state.Tokens[addr] = ts
			}
		case dex.MethodAmplification:
			value, _, precision, err := dex.UnpackAmplification(data)
			if err != nil {
				return nil, fail(method, err)
			}
			if precision.Sign() == 0 {
				return nil, fail(method, fmt.Errorf("zero amplification precision"))
			}
			amp := new(big.Int).Mul(value, big.NewInt(stable.AmpPrecision))
			state.Amp = amp.Quo(amp, precision)
		case dex.MethodScalingFactors:
			if factors, err = dex.UnpackUints(method, data); err != nil {
				return nil, fail(method, err)
			}
			if len(factors) != len(tokens) {
				return nil, fail(method, fmt.Errorf("%d scaling factors for %d tokens", len(factors), len(tokens)))
			}
		case dex.MethodTargets:
			if state.LowerTarget, state.UpperTarget, err = dex.UnpackTargets(data); err != nil {
				return nil, fail(method, err)
			}
		case dex.MethodMainIndex, dex.MethodWrappedIndex, dex.MethodBptIndex:
			v, err := dex.UnpackUint(method, data)
			if err != nil {
				return nil, fail(method, err)
			}
			if !v.IsInt64() || v.Int64() >= int64(len(tokens)) {
				return nil, fail(method, fmt.Errorf("index %s out of range", v))
			}
			switch method {
			case dex.MethodMainIndex:
				state.MainIndex = int(v.Int64())
			case dex.MethodWrappedIndex:
				state.WrappedIndex = int(v.Int64())
			default:
				state.BptIndex = int(v.Int64())
			}
		}
	}

	for i, addr := range state.TokenOrder {
		ts := state.Tokens[addr]
		if factors != nil {
			ts.ScalingFactor = factors[i]
		} else {
			j := meta.TokenIndex(addr)
			if j < 0 {
				return nil, fail(dex.MethodGetPoolTokens, fmt.Errorf("token %s missing from metadata", addr))
			}
			sf, err := fixedpoint.ScalingFactor(meta.Tokens[j].Decimals)
			if err != nil {
				return nil, fail(dex.MethodGetPoolTokens, err)
			}
			ts.ScalingFactor = sf.ToBig()
		}
		state.Tokens[addr] = ts
	}
	return state, nil
}
