package dex

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"vaultPricer/internal/chain"
	"vaultPricer/internal/model"
)

// ResolveTokens reads decimals and symbol for every token that has no
// symbol yet, in one batch at block. Tokens whose calls fail keep their
// existing fields.
func ResolveTokens(ctx context.Context, reader chain.BatchReader, tokens []model.Token, block uint64, logger *zap.Logger) ([]model.Token, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	erc20, err := erc20ABIStringInstance()
	if err != nil {
		return nil, err
	}
	decimalsData, err := erc20.Pack("decimals")
	if err != nil {
		return nil, fmt.Errorf("pack decimals: %w", err)
	}
	symbolData, err := erc20.Pack("symbol")
	if err != nil {
		return nil, fmt.Errorf("pack symbol: %w", err)
	}

	out := append([]model.Token(nil), tokens...)
	var (
		calls   []chain.Call
		pending []int
	)
	for i, t := range out {
		if t.Symbol != "" || !common.IsHexAddress(t.Address) {
			continue
		}
		target := common.HexToAddress(t.Address)
		calls = append(calls,
			chain.Call{Target: target, Data: decimalsData},
			chain.Call{Target: target, Data: symbolData},
		)
		pending = append(pending, i)
	}
	if len(calls) == 0 {
		return out, nil
	}

	results, err := reader.BatchRead(ctx, calls, block)
	if err != nil {
		return nil, fmt.Errorf("read token metadata: %w", err)
	}
	if len(results) != len(calls) {
		return nil, fmt.Errorf("token metadata batch returned %d results for %d calls", len(results), len(calls))
	}

	for n, i := range pending {
		dec, sym := results[2*n], results[2*n+1]
		if dec.Success {
			if decimals, err := unpackDecimals(dec.ReturnData); err == nil {
				out[i].Decimals = decimals
			} else {
				logger.Debug("decode token decimals failed", zap.String("token", out[i].Address), zap.Error(err))
			}
		}
		if sym.Success {
			if symbol, err := unpackSymbol(sym.ReturnData); err == nil {
				out[i].Symbol = symbol
			} else {
				logger.Debug("decode token symbol failed", zap.String("token", out[i].Address), zap.Error(err))
			}
		}
	}
	return out, nil
}

func unpackDecimals(data []byte) (uint8, error) {
	erc20, err := erc20ABIStringInstance()
	if err != nil {
		return 0, err
	}
	values, err := erc20.Unpack("decimals", data)
	if err != nil || len(values) != 1 {
		return 0, fmt.Errorf("unpack decimals: %v", err)
	}
	return asUint8(values[0])
}

// unpackSymbol accepts both string and bytes32 encodings.
func unpackSymbol(data []byte) (string, error) {
	erc20, err := erc20ABIStringInstance()
	if err != nil {
		return "", err
	}
	if values, err := erc20.Unpack("symbol", data); err == nil && len(values) == 1 {
		if s, ok := values[0].(string); ok {
			return strings.TrimSpace(s), nil
		}
	}
	erc20b, err := erc20ABIBytes32Instance()
	if err != nil {
		return "", err
	}
	values, err := erc20b.Unpack("symbol", data)
	if err != nil || len(values) != 1 {
		return "", fmt.Errorf("unpack symbol: %v", err)
	}
	s, ok := bytes32ToString(values[0])
	if !ok {
		return "", fmt.Errorf("unsupported symbol type %T", values[0])
	}
	return s, nil
}
