package model

const (
	EventSwap               = "Swap"
	EventPoolBalanceChanged = "PoolBalanceChanged"
)

// VaultEvent is a decoded vault log addressed to a single pool.
type VaultEvent struct {
	BlockNumber uint64 `json:"block_number"`
	TxHash      string `json:"tx_hash"`
	LogIndex    uint64 `json:"log_index"`
	EventName   string `json:"event_name"`
	PoolID      string `json:"pool_id"`
	PoolAddress string `json:"pool_address"`

	Swap          *SwapEventData          `json:"swap,omitempty"`
	BalanceChange *PoolBalanceChangedData `json:"balance_change,omitempty"`
}

// Before orders events by chain position.
func (e VaultEvent) Before(other VaultEvent) bool {
	if e.BlockNumber != other.BlockNumber {
		return e.BlockNumber < other.BlockNumber
	}
	return e.LogIndex < other.LogIndex
}
