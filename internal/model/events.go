package model

// SwapEventData is the decoded vault Swap payload.
type SwapEventData struct {
	TokenIn   string `json:"token_in"`
	TokenOut  string `json:"token_out"`
	AmountIn  string `json:"amount_in"`
	AmountOut string `json:"amount_out"`
}

// PoolBalanceChangedData is the decoded vault PoolBalanceChanged payload.
// Deltas are signed.
type PoolBalanceChangedData struct {
	LiquidityProvider  string   `json:"liquidity_provider"`
	Tokens             []string `json:"tokens"`
	Deltas             []string `json:"deltas"`
	ProtocolFeeAmounts []string `json:"protocol_fee_amounts"`
}
