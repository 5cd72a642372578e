package model

import (
	"fmt"
	"math/big"
	"strings"
)

// TokenState is one pool token's balance in native decimals plus the optional
// factors that normalize it for math.
type TokenState struct {
	Balance       *big.Int `json:"balance"`
	ScalingFactor *big.Int `json:"scalingFactor,omitempty"`
	Weight        *big.Int `json:"weight,omitempty"`
}

// PoolState is a pool's on-chain state at one block. Values are never mutated
// after construction; updates produce a new PoolState that shares unchanged
// TokenState entries with its predecessor.
type PoolState struct {
	ID          string                `json:"id"`
	Address     string                `json:"address"`
	Type        PoolType              `json:"poolType"`
	BlockNumber uint64                `json:"blockNumber"`
	TokenOrder  []string              `json:"tokenOrder"`
	Tokens      map[string]TokenState `json:"tokens"`
	SwapFee     *big.Int              `json:"swapFee"`

	// Stable family; already multiplied by the amp precision.
	Amp *big.Int `json:"amp,omitempty"`

	// Linear family.
	LowerTarget  *big.Int `json:"lowerTarget,omitempty"`
	UpperTarget  *big.Int `json:"upperTarget,omitempty"`
	MainIndex    int      `json:"mainIndex"`
	WrappedIndex int      `json:"wrappedIndex"`

	// BptIndex is -1 for pools without a preminted liquidity token.
	BptIndex int `json:"bptIndex"`
}

// Token returns the state for a token address, case-insensitively.
func (s *PoolState) Token(address string) (TokenState, bool) {
	ts, ok := s.Tokens[strings.ToLower(address)]
	return ts, ok
}

// Index returns the position of token in TokenOrder, or -1.
func (s *PoolState) Index(address string) int {
	address = strings.ToLower(address)
	for i, t := range s.TokenOrder {
		if t == address {
			return i
		}
	}
	return -1
}

// Balances returns native balances in token order.
func (s *PoolState) Balances() []*big.Int {
	out := make([]*big.Int, len(s.TokenOrder))
	for i, t := range s.TokenOrder {
		out[i] = s.Tokens[t].Balance
	}
	return out
}

// WithBalanceDeltas returns a copy of s at block with each listed token's
// balance shifted by its signed delta. s itself is left untouched.
func (s *PoolState) WithBalanceDeltas(block uint64, deltas map[string]*big.Int) (*PoolState, error) {
	next := *s
	next.BlockNumber = block
	next.Tokens = make(map[string]TokenState, len(s.Tokens))
	for addr, ts := range s.Tokens {
		next.Tokens[addr] = ts
	}
	for addr, delta := range deltas {
		addr = strings.ToLower(addr)
		ts, ok := next.Tokens[addr]
		if !ok {
			return nil, fmt.Errorf("pool %s has no token %s", s.Address, addr)
		}
		balance := new(big.Int).Add(ts.Balance, delta)
		if balance.Sign() < 0 {
			return nil, fmt.Errorf("pool %s token %s balance underflow", s.Address, addr)
		}
		ts.Balance = balance
		next.Tokens[addr] = ts
	}
	return &next, nil
}

// SameBalances reports whether both states hold identical balances for the
// same token set. Block numbers are ignored.
func (s *PoolState) SameBalances(other *PoolState) bool {
	if len(s.Tokens) != len(other.Tokens) {
		return false
	}
	for addr, ts := range s.Tokens {
		o, ok := other.Tokens[addr]
		if !ok || ts.Balance.Cmp(o.Balance) != 0 {
			return false
		}
	}
	return true
}
