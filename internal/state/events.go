package state

import (
	"fmt"
	"math/big"

	"vaultPricer/internal/dex"
	"vaultPricer/internal/model"
)

// eventHandler turns one decoded event into signed balance deltas.
type eventHandler func(ev model.VaultEvent) (map[string]*big.Int, error)

var eventHandlers = map[string]eventHandler{
	model.EventSwap:               swapDeltas,
	model.EventPoolBalanceChanged: balanceChangedDeltas,
}

func swapDeltas(ev model.VaultEvent) (map[string]*big.Int, error) {
	if ev.Swap == nil {
		return nil, fmt.Errorf("swap event without payload")
	}
	in, err := dex.ParseAmount(ev.Swap.AmountIn)
	if err != nil {
		return nil, err
	}
	out, err := dex.ParseAmount(ev.Swap.AmountOut)
	if err != nil {
		return nil, err
	}
	return map[string]*big.Int{
		ev.Swap.TokenIn:  in,
		ev.Swap.TokenOut: out.Neg(out),
	}, nil
}

// balanceChangedDeltas credits each token with delta minus the protocol fee
// taken on the way in or out.
func balanceChangedDeltas(ev model.VaultEvent) (map[string]*big.Int, error) {
	c := ev.BalanceChange
	if c == nil {
		return nil, fmt.Errorf("balance change event without payload")
	}
	if len(c.Deltas) != len(c.Tokens) || len(c.ProtocolFeeAmounts) != len(c.Tokens) {
		return nil, fmt.Errorf("balance change arrays differ in length")
	}
	out := make(map[string]*big.Int, len(c.Tokens))
	for i, token := range c.Tokens {
		delta, err := dex.ParseAmount(c.Deltas[i])
		if err != nil {
			return nil, err
		}
		fee, err := dex.ParseAmount(c.ProtocolFeeAmounts[i])
		if err != nil {
			return nil, err
		}
		net := delta.Sub(delta, fee)
		if prev, ok := out[token]; ok {
			net.Add(net, prev)
		}
		out[token] = net
	}
	return out, nil
}

// ApplyEvent returns the state after ev, leaving s untouched. Unknown event
// names return s itself.
func ApplyEvent(s *model.PoolState, ev model.VaultEvent) (*model.PoolState, error) {
	handler, ok := eventHandlers[ev.EventName]
	if !ok {
		return s, nil
	}
	deltas, err := handler(ev)
	if err != nil {
		return nil, fmt.Errorf("apply %s to pool %s: %w", ev.EventName, s.Address, err)
	}
	return s.WithBalanceDeltas(ev.BlockNumber, deltas)
}
