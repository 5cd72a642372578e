package dex

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const vaultABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "bytes32", "name": "poolId", "type": "bytes32"},
      {"indexed": true, "internalType": "contract IERC20", "name": "tokenIn", "type": "address"},
      {"indexed": true, "internalType": "contract IERC20", "name": "tokenOut", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amountIn", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "amountOut", "type": "uint256"}
    ],
    "name": "Swap",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "bytes32", "name": "poolId", "type": "bytes32"},
      {"indexed": true, "internalType": "address", "name": "liquidityProvider", "type": "address"},
      {"indexed": false, "internalType": "contract IERC20[]", "name": "tokens", "type": "address[]"},
      {"indexed": false, "internalType": "int256[]", "name": "deltas", "type": "int256[]"},
      {"indexed": false, "internalType": "uint256[]", "name": "protocolFeeAmounts", "type": "uint256[]"}
    ],
    "name": "PoolBalanceChanged",
    "type": "event"
  },
  {
    "inputs": [{"internalType": "bytes32", "name": "poolId", "type": "bytes32"}],
    "name": "getPoolTokens",
    "outputs": [
      {"internalType": "contract IERC20[]", "name": "tokens", "type": "address[]"},
      {"internalType": "uint256[]", "name": "balances", "type": "uint256[]"},
      {"internalType": "uint256", "name": "lastChangeBlock", "type": "uint256"}
    ],
    "stateMutability": "view",
    "type": "function"
  }
]`

const poolABIJSON = `[
  {
    "inputs": [],
    "name": "getSwapFeePercentage",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "getNormalizedWeights",
    "outputs": [{"internalType": "uint256[]", "name": "", "type": "uint256[]"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "getAmplificationParameter",
    "outputs": [
      {"internalType": "uint256", "name": "value", "type": "uint256"},
      {"internalType": "bool", "name": "isUpdating", "type": "bool"},
      {"internalType": "uint256", "name": "precision", "type": "uint256"}
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "getScalingFactors",
    "outputs": [{"internalType": "uint256[]", "name": "", "type": "uint256[]"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "getTargets",
    "outputs": [
      {"internalType": "uint256", "name": "lowerTarget", "type": "uint256"},
      {"internalType": "uint256", "name": "upperTarget", "type": "uint256"}
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "getMainIndex",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "getWrappedIndex",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "getBptIndex",
    "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  }
]`

var (
	vaultABI     abi.ABI
	vaultABIOnce sync.Once
	vaultABIErr  error

	poolABI     abi.ABI
	poolABIOnce sync.Once
	poolABIErr  error
)

// VaultABI returns the parsed vault ABI: the two balance-moving events and
// getPoolTokens.
func VaultABI() (abi.ABI, error) {
	vaultABIOnce.Do(func() {
		vaultABI, vaultABIErr = abi.JSON(strings.NewReader(vaultABIJSON))
	})
	return vaultABI, vaultABIErr
}

// PoolABI returns the parsed ABI of the pool getters read during a refresh.
func PoolABI() (abi.ABI, error) {
	poolABIOnce.Do(func() {
		poolABI, poolABIErr = abi.JSON(strings.NewReader(poolABIJSON))
	})
	return poolABI, poolABIErr
}
