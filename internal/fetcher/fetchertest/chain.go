// Package fetchertest provides an in-memory chain that answers the
// fetcher's batched reads from PoolState values.
package fetchertest

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"vaultPricer/internal/chain"
	"vaultPricer/internal/dex"
	"vaultPricer/internal/model"
)

// Vault is the vault address the fake serves getPoolTokens from.
var Vault = common.HexToAddress("0xBA12222222228d8Ba445958a75a0704d566BF2C8")

// Chain implements chain.BatchReader.
type Chain struct {
	mu        sync.Mutex
	responses map[string][]byte
	Err       error
	Batches   []int
	Blocks    []uint64
}

func New() *Chain {
	return &Chain{responses: make(map[string][]byte)}
}

func key(target common.Address, data []byte) string {
	return strings.ToLower(target.Hex()) + hexutil.Encode(data)
}

func (c *Chain) BatchRead(_ context.Context, calls []chain.Call, block uint64) ([]chain.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Batches = append(c.Batches, len(calls))
	c.Blocks = append(c.Blocks, block)
	if c.Err != nil {
		return nil, c.Err
	}
	out := make([]chain.Result, len(calls))
	for i, call := range calls {
		if data, ok := c.responses[key(call.Target, call.Data)]; ok {
			out[i] = chain.Result{Success: true, ReturnData: data}
		}
	}
	return out, nil
}

// Calls returns the total number of reads served.
func (c *Chain) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, b := range c.Batches {
		n += b
	}
	return n
}

// Revert makes a pool getter fail.
func (c *Chain) Revert(pool, method string) error {
	data, err := dex.PackPoolCall(method)
	if err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.responses, key(common.HexToAddress(pool), data))
	c.mu.Unlock()
	return nil
}

// SetPool registers every getter a refresh of s reads.
func (c *Chain) SetPool(s *model.PoolState) error {
	vaultABI, err := dex.VaultABI()
	if err != nil {
		return err
	}
	poolABI, err := dex.PoolABI()
	if err != nil {
		return err
	}
	id, err := hexutil.Decode(s.ID)
	if err != nil || len(id) != 32 {
		return fmt.Errorf("bad pool id %q", s.ID)
	}
	var poolID [32]byte
	copy(poolID[:], id)

	tokens := make([]common.Address, len(s.TokenOrder))
	balances := make([]*big.Int, len(s.TokenOrder))
	weights := make([]*big.Int, len(s.TokenOrder))
	factors := make([]*big.Int, len(s.TokenOrder))
	for i, addr := range s.TokenOrder {
		ts := s.Tokens[addr]
		tokens[i] = common.HexToAddress(addr)
		balances[i] = ts.Balance
		weights[i] = orZero(ts.Weight)
		factors[i] = orZero(ts.ScalingFactor)
	}

	set := func(target common.Address, input []byte, outputs ...interface{}) error {
		method, err := methodOf(input)
		if err != nil {
			return err
		}
		var packed []byte
		if method == dex.MethodGetPoolTokens {
			packed, err = vaultABI.Methods[method].Outputs.Pack(outputs...)
		} else {
			packed, err = poolABI.Methods[method].Outputs.Pack(outputs...)
		}
		if err != nil {
			return fmt.Errorf("pack %s: %w", method, err)
		}
		c.mu.Lock()
		c.responses[key(target, input)] = packed
		c.mu.Unlock()
		return nil
	}

	input, err := dex.PackGetPoolTokens(poolID)
	if err != nil {
		return err
	}
	if err := set(Vault, input, tokens, balances, new(big.Int).SetUint64(s.BlockNumber)); err != nil {
		return err
	}

	pool := common.HexToAddress(s.Address)
	getters := []struct {
		method string
		values []interface{}
	}{
		{dex.MethodSwapFee, []interface{}{orZero(s.SwapFee)}},
		{dex.MethodNormalizedWeights, []interface{}{weights}},
		{dex.MethodAmplification, []interface{}{orZero(s.Amp), false, big.NewInt(1000)}},
		{dex.MethodScalingFactors, []interface{}{factors}},
		{dex.MethodTargets, []interface{}{orZero(s.LowerTarget), orZero(s.UpperTarget)}},
		{dex.MethodMainIndex, []interface{}{big.NewInt(int64(s.MainIndex))}},
		{dex.MethodWrappedIndex, []interface{}{big.NewInt(int64(s.WrappedIndex))}},
		{dex.MethodBptIndex, []interface{}{big.NewInt(int64(s.BptIndex))}},
	}
	for _, g := range getters {
		if g.method == dex.MethodBptIndex && s.BptIndex < 0 {
			continue
		}
		input, err := dex.PackPoolCall(g.method)
		if err != nil {
			return err
		}
		if err := set(pool, input, g.values...); err != nil {
			return err
		}
	}
	return nil
}

func methodOf(input []byte) (string, error) {
	vaultABI, _ := dex.VaultABI()
	if m, err := vaultABI.MethodById(input); err == nil {
		return m.Name, nil
	}
	poolABI, _ := dex.PoolABI()
	m, err := poolABI.MethodById(input)
	if err != nil {
		return "", err
	}
	return m.Name, nil
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
