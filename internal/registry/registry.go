// Package registry enumerates pools for a curated token set on startup:
// v2-family pairs via factory.getPair, v3-family pools via
// factory.getPool across the canonical fee tiers. Non-existent pools are
// silently skipped. A flat Pool slice is the canonical store, with an
// indexed read view layered on top rather than a shared map mutated in
// place.
package registry

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	evmarb "evmarb"
)

// CanonicalV3FeeTiersBps are the fee tiers (in basis points) probed for
// every token pair when discovering v3-family pools.
var CanonicalV3FeeTiersBps = []uint32{1, 5, 30, 100}

// Caller is the narrow view-call surface discovery and snapshot reads
// need from a bound contract, satisfied by *contractclient.Client.
type Caller interface {
	Call(ctx context.Context, from *common.Address, method string, args ...interface{}) ([]interface{}, error)
}

// DiscoverV2 queries factory.getPair(tokenA, tokenB) for every unordered
// pair drawn from tokens and returns one Pool per pair that exists
// on-chain (non-zero pair address).
func DiscoverV2(ctx context.Context, chainID evmarb.ChainID, factory Caller, router common.Address, tokens []common.Address, feeBps uint32) ([]evmarb.Pool, error) {
	var pools []evmarb.Pool
	for i := 0; i < len(tokens); i++ {
		for j := i + 1; j < len(tokens); j++ {
			tokenA, tokenB := tokens[i], tokens[j]
			result, err := factory.Call(ctx, nil, "getPair", tokenA, tokenB)
			if err != nil {
				return nil, fmt.Errorf("failed to query getPair(%s,%s) on chain %d: %w", tokenA, tokenB, chainID, err)
			}
			pairAddr, ok := result[0].(common.Address)
			if !ok || pairAddr == (common.Address{}) {
				continue
			}
			pools = append(pools, evmarb.Pool{
				ID:     evmarb.PoolID{ChainID: chainID, Address: pairAddr},
				DexID:  "v2",
				Family: evmarb.DexFamilyV2ConstantProduct,
				Token0: tokenA,
				Token1: tokenB,
				FeeBps: feeBps,
				Router: router,
			})
		}
	}
	return pools, nil
}

// DiscoverV3 queries factory.getPool(tokenA, tokenB, fee) for every
// unordered token pair across feeTiersBps and returns one Pool per
// (pair, fee tier) that exists on-chain.
func DiscoverV3(ctx context.Context, chainID evmarb.ChainID, factory Caller, router common.Address, tokens []common.Address, feeTiersBps []uint32) ([]evmarb.Pool, error) {
	var pools []evmarb.Pool
	for i := 0; i < len(tokens); i++ {
		for j := i + 1; j < len(tokens); j++ {
			tokenA, tokenB := tokens[i], tokens[j]
			for _, fee := range feeTiersBps {
				result, err := factory.Call(ctx, nil, "getPool", tokenA, tokenB, new(big.Int).SetUint64(uint64(fee)))
				if err != nil {
					return nil, fmt.Errorf("failed to query getPool(%s,%s,%d) on chain %d: %w", tokenA, tokenB, fee, chainID, err)
				}
				poolAddr, ok := result[0].(common.Address)
				if !ok || poolAddr == (common.Address{}) {
					continue
				}
				pools = append(pools, evmarb.Pool{
					ID:     evmarb.PoolID{ChainID: chainID, Address: poolAddr},
					DexID:  "v3",
					Family: evmarb.DexFamilyV3Concentrated,
					Token0: tokenA,
					Token1: tokenB,
					FeeBps: fee,
					Router: router,
				})
			}
		}
	}
	return pools, nil
}

// FetchInitialSnapshot reads a newly discovered pool's current reserves
// (v2) or sqrtPrice/liquidity (v3) so it has a usable snapshot before its
// first event arrives, via a client bound to the pool address.
func FetchInitialSnapshot(ctx context.Context, pool *evmarb.Pool, client Caller) error {
	switch pool.Family {
	case evmarb.DexFamilyV2ConstantProduct:
		result, err := client.Call(ctx, nil, "getReserves")
		if err != nil {
			return fmt.Errorf("failed to read getReserves for pool %s: %w", pool.ID.Address, err)
		}
		reserve0, ok0 := asBigInt(result, 0)
		reserve1, ok1 := asBigInt(result, 1)
		if !ok0 || !ok1 {
			return fmt.Errorf("unexpected getReserves result shape for pool %s", pool.ID.Address)
		}
		pool.V2 = &evmarb.V2Snapshot{Reserve0: reserve0, Reserve1: reserve1}
	case evmarb.DexFamilyV3Concentrated:
		slot0, err := client.Call(ctx, nil, "slot0")
		if err != nil {
			return fmt.Errorf("failed to read slot0 for pool %s: %w", pool.ID.Address, err)
		}
		sqrtPrice, ok := asBigInt(slot0, 0)
		if !ok {
			return fmt.Errorf("unexpected slot0 result shape for pool %s", pool.ID.Address)
		}
		liqResult, err := client.Call(ctx, nil, "liquidity")
		if err != nil {
			return fmt.Errorf("failed to read liquidity for pool %s: %w", pool.ID.Address, err)
		}
		liquidity, ok := asBigInt(liqResult, 0)
		if !ok {
			return fmt.Errorf("unexpected liquidity result shape for pool %s", pool.ID.Address)
		}
		pool.V3 = &evmarb.V3Snapshot{SqrtPriceX96: sqrtPrice, Liquidity: liquidity}
	}
	return nil
}

// FetchToken reads a token's decimals and symbol once at discovery time;
// both are immutable afterward. A failing symbol read is tolerated (some
// tokens return bytes32 or nothing), a failing decimals read is not.
func FetchToken(ctx context.Context, chainID evmarb.ChainID, addr common.Address, client Caller) (evmarb.Token, error) {
	token := evmarb.Token{ChainID: chainID, Address: addr}

	result, err := client.Call(ctx, nil, "decimals")
	if err != nil {
		return evmarb.Token{}, fmt.Errorf("failed to read decimals for token %s: %w", addr, err)
	}
	if len(result) == 0 {
		return evmarb.Token{}, fmt.Errorf("unexpected decimals result shape for token %s", addr)
	}
	decimals, ok := result[0].(uint8)
	if !ok {
		return evmarb.Token{}, fmt.Errorf("unexpected decimals result shape for token %s", addr)
	}
	token.Decimals = decimals

	if symResult, err := client.Call(ctx, nil, "symbol"); err == nil && len(symResult) > 0 {
		if sym, ok := symResult[0].(string); ok {
			token.Symbol = sym
		}
	}
	return token, nil
}

func asBigInt(values []interface{}, idx int) (*big.Int, bool) {
	if idx >= len(values) {
		return nil, false
	}
	v, ok := values[idx].(*big.Int)
	return v, ok
}
