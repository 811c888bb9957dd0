package registry

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// The five view-only ABIs discovery and snapshot bootstrap need: factory
// lookups (v2's getPair, v3's getPool), per-pool state reads (v2's
// getReserves, v3's slot0/liquidity) and ERC-20 token metadata. Each is parsed once at startup and
// reused across every pool/factory address of that kind, the same
// parse-once-bind-many-addresses pattern internal/executor/contract.go
// uses for the arbitrage contract's ABI.

const v2FactoryABIJSON = `[{
	"name": "getPair",
	"type": "function",
	"stateMutability": "view",
	"inputs": [
		{"name": "tokenA", "type": "address"},
		{"name": "tokenB", "type": "address"}
	],
	"outputs": [{"name": "pair", "type": "address"}]
}]`

const v3FactoryABIJSON = `[{
	"name": "getPool",
	"type": "function",
	"stateMutability": "view",
	"inputs": [
		{"name": "tokenA", "type": "address"},
		{"name": "tokenB", "type": "address"},
		{"name": "fee", "type": "uint24"}
	],
	"outputs": [{"name": "pool", "type": "address"}]
}]`

const v2PairABIJSON = `[{
	"name": "getReserves",
	"type": "function",
	"stateMutability": "view",
	"inputs": [],
	"outputs": [
		{"name": "reserve0", "type": "uint112"},
		{"name": "reserve1", "type": "uint112"},
		{"name": "blockTimestampLast", "type": "uint32"}
	]
}]`

const v3PoolABIJSON = `[{
	"name": "slot0",
	"type": "function",
	"stateMutability": "view",
	"inputs": [],
	"outputs": [
		{"name": "sqrtPriceX96", "type": "uint160"},
		{"name": "tick", "type": "int24"},
		{"name": "observationIndex", "type": "uint16"},
		{"name": "observationCardinality", "type": "uint16"},
		{"name": "observationCardinalityNext", "type": "uint16"},
		{"name": "feeProtocol", "type": "uint8"},
		{"name": "unlocked", "type": "bool"}
	]
}, {
	"name": "liquidity",
	"type": "function",
	"stateMutability": "view",
	"inputs": [],
	"outputs": [{"name": "", "type": "uint128"}]
}]`

const erc20ABIJSON = `[{
	"name": "balanceOf",
	"type": "function",
	"stateMutability": "view",
	"inputs": [{"name": "owner", "type": "address"}],
	"outputs": [{"name": "", "type": "uint256"}]
}, {
	"name": "decimals",
	"type": "function",
	"stateMutability": "view",
	"inputs": [],
	"outputs": [{"name": "", "type": "uint8"}]
}, {
	"name": "symbol",
	"type": "function",
	"stateMutability": "view",
	"inputs": [],
	"outputs": [{"name": "", "type": "string"}]
}]`

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("registry: invalid embedded ABI: %v", err))
	}
	return parsed
}

// V2FactoryABI, V3FactoryABI, V2PairABI, V3PoolABI and ERC20ABI are parsed once at
// package init and bound to a new contractclient.Client per address by
// callers (cmd/evmarbd/main.go).
var (
	V2FactoryABI = mustParseABI(v2FactoryABIJSON)
	V3FactoryABI = mustParseABI(v3FactoryABIJSON)
	V2PairABI    = mustParseABI(v2PairABIJSON)
	V3PoolABI    = mustParseABI(v3PoolABIJSON)
	ERC20ABI     = mustParseABI(erc20ABIJSON)
)
