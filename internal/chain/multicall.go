package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const multicallABIJSON = `[
  {
    "inputs": [
      {"internalType": "bool", "name": "requireSuccess", "type": "bool"},
      {"components": [
        {"internalType": "address", "name": "target", "type": "address"},
        {"internalType": "bytes", "name": "callData", "type": "bytes"}
      ], "internalType": "struct Multicall2.Call[]", "name": "calls", "type": "tuple[]"}
    ],
    "name": "tryAggregate",
    "outputs": [
      {"components": [
        {"internalType": "bool", "name": "success", "type": "bool"},
        {"internalType": "bytes", "name": "returnData", "type": "bytes"}
      ], "internalType": "struct Multicall2.Result[]", "name": "returnData", "type": "tuple[]"}
    ],
    "stateMutability": "nonpayable",
    "type": "function"
  }
]`

var (
	multicallOnce sync.Once
	multicallABI  abi.ABI
	multicallErr  error
)

func getMulticallABI() (abi.ABI, error) {
	multicallOnce.Do(func() {
		multicallABI, multicallErr = abi.JSON(strings.NewReader(multicallABIJSON))
	})
	return multicallABI, multicallErr
}

// Call is one read in a batch.
type Call struct {
	Target common.Address
	Data   []byte
}

// Result is the outcome of one Call, in call order.
type Result struct {
	Success    bool
	ReturnData []byte
}

// BatchReader executes a batch of reads pinned to one block and returns the
// results in call order.
type BatchReader interface {
	BatchRead(ctx context.Context, calls []Call, blockNumber uint64) ([]Result, error)
}

type multicallCall struct {
	Target   common.Address
	CallData []byte
}

type multicallResult struct {
	Success    bool
	ReturnData []byte
}

// BatchRead submits calls through Multicall2.tryAggregate without requiring
// success, so a reverted call only fails its own slot.
func (c *Client) BatchRead(ctx context.Context, calls []Call, blockNumber uint64) ([]Result, error) {
	if len(calls) == 0 {
		return nil, nil
	}
	input, err := packTryAggregate(calls)
	if err != nil {
		return nil, err
	}

	target := c.multicall
	raw, err := c.CallContract(ctx, ethereum.CallMsg{To: &target, Data: input}, new(big.Int).SetUint64(blockNumber))
	if err != nil {
		return nil, fmt.Errorf("call tryAggregate at block %d: %w", blockNumber, err)
	}

	out, err := unpackTryAggregate(raw)
	if err != nil {
		return nil, err
	}
	if len(out) != len(calls) {
		return nil, fmt.Errorf("tryAggregate returned %d results for %d calls", len(out), len(calls))
	}
	return out, nil
}

func packTryAggregate(calls []Call) ([]byte, error) {
	parsed, err := getMulticallABI()
	if err != nil {
		return nil, err
	}
	packed := make([]multicallCall, len(calls))
	for i, call := range calls {
		packed[i] = multicallCall{Target: call.Target, CallData: call.Data}
	}
	input, err := parsed.Pack("tryAggregate", false, packed)
	if err != nil {
		return nil, fmt.Errorf("pack tryAggregate: %w", err)
	}
	return input, nil
}

func unpackTryAggregate(raw []byte) ([]Result, error) {
	parsed, err := getMulticallABI()
	if err != nil {
		return nil, err
	}
	var decoded []multicallResult
	if err := parsed.UnpackIntoInterface(&decoded, "tryAggregate", raw); err != nil {
		return nil, fmt.Errorf("unpack tryAggregate: %w", err)
	}
	out := make([]Result, len(decoded))
	for i, r := range decoded {
		out[i] = Result{Success: r.Success, ReturnData: r.ReturnData}
	}
	return out, nil
}
