package model

// PoolLiquidity is one entry of a per-token liquidity ranking.
type PoolLiquidity struct {
	Exchange        string  `json:"exchange"`
	Address         string  `json:"address"`
	ConnectorTokens []Token `json:"connectorTokens"`
	LiquidityUSD    float64 `json:"liquidityUSD"`
}
