package registry

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// V2SyncTopic and V3SwapTopic are the event-signature hashes registered
// as the log filter for each dex family: reserve syncs for v2 pairs,
// swaps for v3 pools.
var (
	V2SyncTopic = crypto.Keccak256Hash([]byte("Sync(uint112,uint112)"))
	V3SwapTopic = crypto.Keccak256Hash([]byte("Swap(address,address,int256,int256,uint160,uint128,int24)"))
)

const v2SyncEventABIJSON = `[{
	"anonymous": false,
	"name": "Sync",
	"type": "event",
	"inputs": [
		{"name": "reserve0", "type": "uint112", "indexed": false},
		{"name": "reserve1", "type": "uint112", "indexed": false}
	]
}]`

const v3SwapEventABIJSON = `[{
	"anonymous": false,
	"name": "Swap",
	"type": "event",
	"inputs": [
		{"name": "sender", "type": "address", "indexed": true},
		{"name": "recipient", "type": "address", "indexed": true},
		{"name": "amount0", "type": "int256", "indexed": false},
		{"name": "amount1", "type": "int256", "indexed": false},
		{"name": "sqrtPriceX96", "type": "uint160", "indexed": false},
		{"name": "liquidity", "type": "uint128", "indexed": false},
		{"name": "tick", "type": "int24", "indexed": false}
	]
}]`

var (
	v2SyncEventABI = mustParseEventABI(v2SyncEventABIJSON)
	v3SwapEventABI = mustParseEventABI(v3SwapEventABIJSON)
)

func mustParseEventABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("registry: invalid embedded event ABI: %v", err))
	}
	return parsed
}

// DecodeV2Sync unpacks a v2-family Sync event's reserve payload; the
// reserves are taken verbatim, no derivation.
func DecodeV2Sync(log types.Log) (reserve0, reserve1 *big.Int, err error) {
	values, err := v2SyncEventABI.Events["Sync"].Inputs.Unpack(log.Data)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode Sync event for %s: %w", log.Address, err)
	}
	r0, ok0 := values[0].(*big.Int)
	r1, ok1 := values[1].(*big.Int)
	if !ok0 || !ok1 {
		return nil, nil, fmt.Errorf("unexpected Sync event payload shape for %s", log.Address)
	}
	return r0, r1, nil
}

// DecodeV3Swap unpacks a v3-family Swap event's sqrtPriceX96 and
// liquidity fields, taken verbatim from the payload.
func DecodeV3Swap(log types.Log) (sqrtPriceX96, liquidity *big.Int, err error) {
	values, err := v3SwapEventABI.Events["Swap"].Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode Swap event for %s: %w", log.Address, err)
	}
	sqrtPrice, ok0 := values[2].(*big.Int)
	liq, ok1 := values[3].(*big.Int)
	if !ok0 || !ok1 {
		return nil, nil, fmt.Errorf("unexpected Swap event payload shape for %s", log.Address)
	}
	return sqrtPrice, liq, nil
}
