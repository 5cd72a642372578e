package dex

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"vaultPricer/internal/model"
)

// VaultDecoder decodes the vault's Swap and PoolBalanceChanged logs.
type VaultDecoder struct {
	vaultABI    abi.ABI
	topicToName map[string]string
}

// NewVaultDecoder builds a vault event decoder.
func NewVaultDecoder() (*VaultDecoder, error) {
	vaultABI, err := VaultABI()
	if err != nil {
		return nil, err
	}
	return &VaultDecoder{
		vaultABI: vaultABI,
		topicToName: map[string]string{
			strings.ToLower(vaultABI.Events[model.EventSwap].ID.Hex()):               model.EventSwap,
			strings.ToLower(vaultABI.Events[model.EventPoolBalanceChanged].ID.Hex()): model.EventPoolBalanceChanged,
		},
	}, nil
}

// Topics returns the topic0 hashes the decoder understands.
func (d *VaultDecoder) Topics() []common.Hash {
	return []common.Hash{
		d.vaultABI.Events[model.EventSwap].ID,
		d.vaultABI.Events[model.EventPoolBalanceChanged].ID,
	}
}

// CanDecode checks if the topic0 is supported.
func (d *VaultDecoder) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	_, ok := d.topicToName[strings.ToLower(topic0)]
	return ok
}

// Decode converts a LogRecord into a VaultEvent.
func (d *VaultDecoder) Decode(log model.LogRecord) (*model.VaultEvent, error) {
	if len(log.Topics) < 2 {
		return nil, fmt.Errorf("missing topics")
	}
	name, ok := d.topicToName[strings.ToLower(log.Topics[0])]
	if !ok {
		return nil, fmt.Errorf("unsupported topic0: %s", log.Topics[0])
	}

	event := &model.VaultEvent{
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash,
		LogIndex:    log.LogIndex,
		EventName:   name,
	}

	var (
		poolID [32]byte
		err    error
	)
	switch name {
	case model.EventSwap:
		event.Swap, poolID, err = d.decodeSwap(log)
	case model.EventPoolBalanceChanged:
		event.BalanceChange, poolID, err = d.decodeBalanceChanged(log)
	}
	if err != nil {
		return nil, err
	}
	event.PoolID = strings.ToLower(hexutil.Encode(poolID[:]))
	event.PoolAddress = strings.ToLower(PoolAddress(poolID).Hex())
	return event, nil
}

// PoolAddress extracts the pool contract address from a vault pool id.
func PoolAddress(poolID [32]byte) common.Address {
	return common.BytesToAddress(poolID[:20])
}

func (d *VaultDecoder) decodeSwap(log model.LogRecord) (*model.SwapEventData, [32]byte, error) {
	event := d.vaultABI.Events[model.EventSwap]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return nil, [32]byte{}, err
	}

	var indexed struct {
		PoolId   [32]byte
		TokenIn  common.Address
		TokenOut common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return nil, [32]byte{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return nil, [32]byte{}, err
	}
	if len(values) != 2 {
		return nil, [32]byte{}, fmt.Errorf("unexpected swap values: %d", len(values))
	}
	amountIn, err := asBigInt(values[0])
	if err != nil {
		return nil, [32]byte{}, err
	}
	amountOut, err := asBigInt(values[1])
	if err != nil {
		return nil, [32]byte{}, err
	}

	return &model.SwapEventData{
		TokenIn:   strings.ToLower(indexed.TokenIn.Hex()),
		TokenOut:  strings.ToLower(indexed.TokenOut.Hex()),
		AmountIn:  amountIn.String(),
		AmountOut: amountOut.String(),
	}, indexed.PoolId, nil
}

func (d *VaultDecoder) decodeBalanceChanged(log model.LogRecord) (*model.PoolBalanceChangedData, [32]byte, error) {
	event := d.vaultABI.Events[model.EventPoolBalanceChanged]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return nil, [32]byte{}, err
	}

	var indexed struct {
		PoolId            [32]byte
		LiquidityProvider common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return nil, [32]byte{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return nil, [32]byte{}, err
	}
	if len(values) != 3 {
		return nil, [32]byte{}, fmt.Errorf("unexpected balance change values: %d", len(values))
	}
	tokens, err := asAddresses(values[0])
	if err != nil {
		return nil, [32]byte{}, err
	}
	deltas, err := asBigInts(values[1])
	if err != nil {
		return nil, [32]byte{}, err
	}
	fees, err := asBigInts(values[2])
	if err != nil {
		return nil, [32]byte{}, err
	}
	if len(deltas) != len(tokens) || len(fees) != len(tokens) {
		return nil, [32]byte{}, fmt.Errorf("balance change arrays differ: %d tokens, %d deltas, %d fees", len(tokens), len(deltas), len(fees))
	}

	out := &model.PoolBalanceChangedData{
		LiquidityProvider:  strings.ToLower(indexed.LiquidityProvider.Hex()),
		Tokens:             make([]string, len(tokens)),
		Deltas:             make([]string, len(tokens)),
		ProtocolFeeAmounts: make([]string, len(tokens)),
	}
	for i := range tokens {
		out.Tokens[i] = strings.ToLower(tokens[i].Hex())
		out.Deltas[i] = deltas[i].String()
		out.ProtocolFeeAmounts[i] = fees[i].String()
	}
	return out, indexed.PoolId, nil
}

func parseIndexedTopics(event abi.Event, topics []string) ([]common.Hash, error) {
	indexedCount := len(indexedArguments(event.Inputs))
	if len(topics) != indexedCount+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", indexedCount+1, len(topics))
	}
	return parseTopicHashes(topics[1:])
}

func parseTopicHashes(topics []string) ([]common.Hash, error) {
	out := make([]common.Hash, 0, len(topics))
	for _, topic := range topics {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackNonIndexed(event abi.Event, dataHex string) ([]interface{}, error) {
	data, err := hexutil.Decode(dataHex)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}

// ParseAmount parses a decoded decimal amount.
func ParseAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return v, nil
}
