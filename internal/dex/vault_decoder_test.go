package dex

import (
	"context"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"vaultPricer/internal/chain"
	"vaultPricer/internal/model"
)

var (
	vault    = common.HexToAddress("0xBA12222222228d8Ba445958a75a0704d566BF2C8")
	poolID   = common.HexToHash("0x32296969ef14eb0c6d29669c550d4a0449130230000200000000000000000080")
	tokenIn  = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	tokenOut = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
)

func TestVaultDecoderSwap(t *testing.T) {
	vaultABI, err := VaultABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	decoder, err := NewVaultDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	data, err := vaultABI.Events["Swap"].Inputs.NonIndexed().Pack(big.NewInt(1000), big.NewInt(1990))
	if err != nil {
		t.Fatalf("pack swap: %v", err)
	}
	logRecord := buildLogRecord(vaultABI.Events["Swap"].ID, data, []common.Hash{
		poolID,
		topicFromAddress(tokenIn),
		topicFromAddress(tokenOut),
	})
	if !decoder.CanDecode(logRecord.Topic0()) {
		t.Fatalf("swap topic not recognized")
	}

	event, err := decoder.Decode(logRecord)
	if err != nil {
		t.Fatalf("decode swap: %v", err)
	}
	if event.EventName != model.EventSwap || event.Swap == nil {
		t.Fatalf("unexpected event %+v", event)
	}
	if event.Swap.AmountIn != "1000" || event.Swap.AmountOut != "1990" {
		t.Fatalf("amounts mismatch: %+v", event.Swap)
	}
	if event.Swap.TokenIn != strings.ToLower(tokenIn.Hex()) || event.Swap.TokenOut != strings.ToLower(tokenOut.Hex()) {
		t.Fatalf("token mismatch: %+v", event.Swap)
	}
	if event.PoolAddress != "0x32296969ef14eb0c6d29669c550d4a0449130230" {
		t.Fatalf("pool address = %s", event.PoolAddress)
	}
	if event.PoolID != strings.ToLower(poolID.Hex()) {
		t.Fatalf("pool id = %s", event.PoolID)
	}
	if event.BlockNumber != 12345 || event.LogIndex != 1 {
		t.Fatalf("position mismatch: %d/%d", event.BlockNumber, event.LogIndex)
	}
}

func TestVaultDecoderPoolBalanceChanged(t *testing.T) {
	vaultABI, _ := VaultABI()
	decoder, err := NewVaultDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	provider := common.HexToAddress("0x2222222222222222222222222222222222222222")
	data, err := vaultABI.Events["PoolBalanceChanged"].Inputs.NonIndexed().Pack(
		[]common.Address{tokenIn, tokenOut},
		[]*big.Int{big.NewInt(500), big.NewInt(-300)},
		[]*big.Int{big.NewInt(5), big.NewInt(0)},
	)
	if err != nil {
		t.Fatalf("pack balance change: %v", err)
	}
	logRecord := buildLogRecord(vaultABI.Events["PoolBalanceChanged"].ID, data, []common.Hash{
		poolID,
		topicFromAddress(provider),
	})

	event, err := decoder.Decode(logRecord)
	if err != nil {
		t.Fatalf("decode balance change: %v", err)
	}
	change := event.BalanceChange
	if change == nil || len(change.Tokens) != 2 {
		t.Fatalf("unexpected change %+v", change)
	}
	if change.Deltas[0] != "500" || change.Deltas[1] != "-300" {
		t.Fatalf("deltas mismatch: %v", change.Deltas)
	}
	if change.ProtocolFeeAmounts[0] != "5" {
		t.Fatalf("fees mismatch: %v", change.ProtocolFeeAmounts)
	}
	if change.LiquidityProvider != strings.ToLower(provider.Hex()) {
		t.Fatalf("provider mismatch: %s", change.LiquidityProvider)
	}
}

func TestVaultDecoderRejectsForeignTopic(t *testing.T) {
	decoder, _ := NewVaultDecoder()
	logRecord := buildLogRecord(common.HexToHash("0x01"), nil, []common.Hash{poolID})
	if decoder.CanDecode(logRecord.Topic0()) {
		t.Fatalf("foreign topic accepted")
	}
	if _, err := decoder.Decode(logRecord); err == nil {
		t.Fatalf("expected error")
	}
}

func TestPoolCallCodecs(t *testing.T) {
	vaultABI, _ := VaultABI()
	raw, err := vaultABI.Methods[MethodGetPoolTokens].Outputs.Pack(
		[]common.Address{tokenIn, tokenOut},
		[]*big.Int{big.NewInt(10), big.NewInt(20)},
		big.NewInt(99),
	)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	tokens, balances, err := UnpackPoolTokens(raw)
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	if tokens[1] != tokenOut || balances[1].Int64() != 20 {
		t.Fatalf("unexpected tokens %v balances %v", tokens, balances)
	}

	poolABI, _ := PoolABI()
	raw, _ = poolABI.Methods[MethodAmplification].Outputs.Pack(big.NewInt(200000), false, big.NewInt(1000))
	amp, updating, precision, err := UnpackAmplification(raw)
	if err != nil || amp.Int64() != 200000 || updating || precision.Int64() != 1000 {
		t.Fatalf("amp = %v %v %v (%v)", amp, updating, precision, err)
	}

	if _, err := UnpackUint(MethodSwapFee, []byte{0x01}); err == nil {
		t.Fatalf("short data must fail")
	}

	call, err := PackGetPoolTokens(poolID)
	if err != nil || len(call) != 4+32 {
		t.Fatalf("pack getPoolTokens: %x (%v)", call, err)
	}
}

type fakeReader struct {
	results []chain.Result
	calls   []chain.Call
}

func (f *fakeReader) BatchRead(_ context.Context, calls []chain.Call, _ uint64) ([]chain.Result, error) {
	f.calls = calls
	return f.results, nil
}

func TestResolveTokens(t *testing.T) {
	stringABI, _ := erc20ABIStringInstance()
	bytesABI, _ := erc20ABIBytes32Instance()

	decimals, _ := stringABI.Methods["decimals"].Outputs.Pack(uint8(6))
	symbol, _ := stringABI.Methods["symbol"].Outputs.Pack("USDC")
	var mkr [32]byte
	copy(mkr[:], "MKR")
	legacy, _ := bytesABI.Methods["symbol"].Outputs.Pack(mkr)

	reader := &fakeReader{results: []chain.Result{
		{Success: true, ReturnData: decimals},
		{Success: true, ReturnData: symbol},
		{Success: false},
		{Success: true, ReturnData: legacy},
	}}
	tokens := []model.Token{
		{Address: "0x00000000000000000000000000000000000000c1"},
		{Address: "0x00000000000000000000000000000000000000c2", Decimals: 18, Symbol: "DAI"},
		{Address: "0x00000000000000000000000000000000000000c3", Decimals: 18},
	}

	got, err := ResolveTokens(context.Background(), reader, tokens, 100, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(reader.calls) != 4 {
		t.Fatalf("expected 4 calls, got %d", len(reader.calls))
	}
	if got[0].Decimals != 6 || got[0].Symbol != "USDC" {
		t.Fatalf("token 0 = %+v", got[0])
	}
	if got[2].Decimals != 18 || got[2].Symbol != "MKR" {
		t.Fatalf("token 2 = %+v", got[2])
	}
	if tokens[0].Symbol != "" {
		t.Fatalf("input slice mutated")
	}
}

func buildLogRecord(topic0 common.Hash, data []byte, indexed []common.Hash) model.LogRecord {
	topics := make([]string, 0, len(indexed)+1)
	topics = append(topics, topic0.Hex())
	for _, topic := range indexed {
		topics = append(topics, topic.Hex())
	}

	return model.LogRecord{
		ChainID:     1,
		BlockNumber: 12345,
		BlockHash:   "0xabc",
		TxHash:      "0xdef",
		LogIndex:    1,
		Address:     vault.Hex(),
		Topics:      topics,
		Data:        hexutil.Encode(data),
	}
}

func topicFromAddress(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}
