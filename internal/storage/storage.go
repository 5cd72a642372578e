package storage

import (
	"math/big"

	"vaultPricer/internal/model"
)

// PriceRecord is one pool's quote together with the request it answers.
type PriceRecord struct {
	Block    uint64     `json:"block"`
	Side     model.Side `json:"side"`
	TokenIn  string     `json:"tokenIn"`
	TokenOut string     `json:"tokenOut"`
	Amounts  []*big.Int `json:"amounts"`
	QuotedAt string     `json:"quotedAt"`
	model.PoolPrices
}

// Storage defines a sink for quote results.
type Storage interface {
	PutPrices(records []PriceRecord) error
}
