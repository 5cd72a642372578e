// Package aggregate derives read-only summaries from pool metadata and
// formats raw amounts for display.
package aggregate

import (
	"sort"
	"strings"

	"vaultPricer/internal/model"
)

// Rank orders the pools that reach token by reported liquidity, highest
// first, and keeps at most limit of them. Pools without liquidity are left
// out. A pool's connector tokens are its other reachable tokens.
func Rank(exchange, token string, pools []model.PoolMetadata, limit int) []model.PoolLiquidity {
	token = strings.ToLower(token)
	out := make([]model.PoolLiquidity, 0, len(pools))
	for _, p := range pools {
		if p.LiquidityUSD <= 0 {
			continue
		}
		if _, ok := p.MainToken(token); !ok {
			continue
		}
		connectors := make([]model.Token, 0, len(p.MainTokens))
		for _, m := range p.MainTokens {
			if m.Address != token {
				connectors = append(connectors, m.Token)
			}
		}
		out = append(out, model.PoolLiquidity{
			Exchange:        exchange,
			Address:         p.Address,
			ConnectorTokens: connectors,
			LiquidityUSD:    p.LiquidityUSD,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].LiquidityUSD != out[j].LiquidityUSD {
			return out[i].LiquidityUSD > out[j].LiquidityUSD
		}
		return out[i].Address < out[j].Address
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
