package model

import "math/big"

// PoolPrices is one pool's quote, aligned index-for-index with the requested
// amounts. For SELL the prices are output amounts; for BUY they are inputs.
type PoolPrices struct {
	PoolID  string     `json:"poolId"`
	Unit    *big.Int   `json:"unit"`
	Prices  []*big.Int `json:"prices"`
	Path    Path       `json:"path"`
	GasCost uint64     `json:"gasCost"`
}
