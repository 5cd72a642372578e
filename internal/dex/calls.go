package dex

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Pool getter names read during a state refresh.
const (
	MethodGetPoolTokens     = "getPoolTokens"
	MethodSwapFee           = "getSwapFeePercentage"
	MethodNormalizedWeights = "getNormalizedWeights"
	MethodAmplification     = "getAmplificationParameter"
	MethodScalingFactors    = "getScalingFactors"
	MethodTargets           = "getTargets"
	MethodMainIndex         = "getMainIndex"
	MethodWrappedIndex      = "getWrappedIndex"
	MethodBptIndex          = "getBptIndex"
)

// PackGetPoolTokens encodes Vault.getPoolTokens(poolId).
func PackGetPoolTokens(poolID [32]byte) ([]byte, error) {
	parsed, err := VaultABI()
	if err != nil {
		return nil, err
	}
	return parsed.Pack(MethodGetPoolTokens, poolID)
}

// UnpackPoolTokens decodes getPoolTokens return data.
func UnpackPoolTokens(data []byte) ([]common.Address, []*big.Int, error) {
	parsed, err := VaultABI()
	if err != nil {
		return nil, nil, err
	}
	values, err := parsed.Unpack(MethodGetPoolTokens, data)
	if err != nil {
		return nil, nil, fmt.Errorf("unpack %s: %w", MethodGetPoolTokens, err)
	}
	if len(values) != 3 {
		return nil, nil, fmt.Errorf("unexpected %s values: %d", MethodGetPoolTokens, len(values))
	}
	tokens, err := asAddresses(values[0])
	if err != nil {
		return nil, nil, err
	}
	balances, err := asBigInts(values[1])
	if err != nil {
		return nil, nil, err
	}
	if len(tokens) != len(balances) {
		return nil, nil, fmt.Errorf("%s returned %d tokens and %d balances", MethodGetPoolTokens, len(tokens), len(balances))
	}
	return tokens, balances, nil
}

// PackPoolCall encodes an argument-less pool getter.
func PackPoolCall(method string) ([]byte, error) {
	parsed, err := PoolABI()
	if err != nil {
		return nil, err
	}
	return parsed.Pack(method)
}

func unpackPool(method string, data []byte, want int) ([]interface{}, error) {
	parsed, err := PoolABI()
	if err != nil {
		return nil, err
	}
	values, err := parsed.Unpack(method, data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) != want {
		return nil, fmt.Errorf("unexpected %s values: %d", method, len(values))
	}
	return values, nil
}

// UnpackUint decodes a getter returning one uint256.
func UnpackUint(method string, data []byte) (*big.Int, error) {
	values, err := unpackPool(method, data, 1)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

// UnpackUints decodes a getter returning uint256[].
func UnpackUints(method string, data []byte) ([]*big.Int, error) {
	values, err := unpackPool(method, data, 1)
	if err != nil {
		return nil, err
	}
	return asBigInts(values[0])
}

// UnpackAmplification decodes getAmplificationParameter.
func UnpackAmplification(data []byte) (value *big.Int, updating bool, precision *big.Int, err error) {
	values, err := unpackPool(MethodAmplification, data, 3)
	if err != nil {
		return nil, false, nil, err
	}
	if value, err = asBigInt(values[0]); err != nil {
		return nil, false, nil, err
	}
	if updating, err = asBool(values[1]); err != nil {
		return nil, false, nil, err
	}
	if precision, err = asBigInt(values[2]); err != nil {
		return nil, false, nil, err
	}
	return value, updating, precision, nil
}

// UnpackTargets decodes getTargets.
func UnpackTargets(data []byte) (lower, upper *big.Int, err error) {
	values, err := unpackPool(MethodTargets, data, 2)
	if err != nil {
		return nil, nil, err
	}
	if lower, err = asBigInt(values[0]); err != nil {
		return nil, nil, err
	}
	if upper, err = asBigInt(values[1]); err != nil {
		return nil, nil, err
	}
	return lower, upper, nil
}
