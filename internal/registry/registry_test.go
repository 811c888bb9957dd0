package registry

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	evmarb "evmarb"
)

type fakeFactory struct {
	pairs map[string]common.Address
}

func key(method string, a, b common.Address, extra ...interface{}) string {
	s := method + a.Hex() + b.Hex()
	for _, e := range extra {
		s += fmtAny(e)
	}
	return s
}

func fmtAny(v interface{}) string {
	switch x := v.(type) {
	case *big.Int:
		return x.String()
	default:
		return ""
	}
}

func (f *fakeFactory) Call(ctx context.Context, from *common.Address, method string, args ...interface{}) ([]interface{}, error) {
	switch method {
	case "getPair":
		k := key(method, args[0].(common.Address), args[1].(common.Address))
		return []interface{}{f.pairs[k]}, nil
	case "getPool":
		k := key(method, args[0].(common.Address), args[1].(common.Address), args[2])
		return []interface{}{f.pairs[k]}, nil
	}
	return nil, nil
}

func TestDiscoverV2SkipsNonexistentPools(t *testing.T) {
	tokenA := common.HexToAddress("0xA")
	tokenB := common.HexToAddress("0xB")
	tokenC := common.HexToAddress("0xC")
	existingPair := common.HexToAddress("0xAB12")

	factory := &fakeFactory{pairs: map[string]common.Address{
		key("getPair", tokenA, tokenB): existingPair,
	}}

	pools, err := DiscoverV2(context.Background(), evmarb.ChainID(1), factory, common.HexToAddress("0xROUTER"), []common.Address{tokenA, tokenB, tokenC}, 30)
	require.NoError(t, err)
	require.Len(t, pools, 1)
	require.Equal(t, existingPair, pools[0].ID.Address)
	require.Equal(t, evmarb.DexFamilyV2ConstantProduct, pools[0].Family)
}

func TestDiscoverV3ProbesAllFeeTiers(t *testing.T) {
	tokenA := common.HexToAddress("0xA")
	tokenB := common.HexToAddress("0xB")
	pool30 := common.HexToAddress("0x3030")

	factory := &fakeFactory{pairs: map[string]common.Address{
		key("getPool", tokenA, tokenB, new(big.Int).SetUint64(30)): pool30,
	}}

	pools, err := DiscoverV3(context.Background(), evmarb.ChainID(1), factory, common.HexToAddress("0xROUTER"), []common.Address{tokenA, tokenB}, CanonicalV3FeeTiersBps)
	require.NoError(t, err)
	require.Len(t, pools, 1)
	require.Equal(t, uint32(30), pools[0].FeeBps)
}

func TestIndexGetByIDAndAll(t *testing.T) {
	pool := evmarb.Pool{ID: evmarb.PoolID{ChainID: 1, Address: common.HexToAddress("0x1")}}
	ix := Index([]evmarb.Pool{pool})

	got, ok := ix.GetByID(pool.ID)
	require.True(t, ok)
	require.Equal(t, pool.ID, got.ID)

	all := ix.All()
	require.Len(t, all, 1)
	all[0].DexID = "mutated"

	all2 := ix.All()
	require.Empty(t, all2[0].DexID, "All() must return a defensive copy")
}

type fakePoolClient struct {
	results map[string][]interface{}
	errs    map[string]error
}

func (f *fakePoolClient) Call(ctx context.Context, from *common.Address, method string, args ...interface{}) ([]interface{}, error) {
	if err := f.errs[method]; err != nil {
		return nil, err
	}
	return f.results[method], nil
}

func TestFetchInitialSnapshotV2ReadsReserves(t *testing.T) {
	pool := evmarb.Pool{
		ID:     evmarb.PoolID{ChainID: 1, Address: common.HexToAddress("0x1")},
		Family: evmarb.DexFamilyV2ConstantProduct,
	}
	client := &fakePoolClient{results: map[string][]interface{}{
		"getReserves": {big.NewInt(111), big.NewInt(222), uint32(0)},
	}}

	require.NoError(t, FetchInitialSnapshot(context.Background(), &pool, client))
	require.NotNil(t, pool.V2)
	require.Equal(t, int64(111), pool.V2.Reserve0.Int64())
	require.Equal(t, int64(222), pool.V2.Reserve1.Int64())
}

func TestFetchInitialSnapshotV3ReadsSlot0AndLiquidity(t *testing.T) {
	pool := evmarb.Pool{
		ID:     evmarb.PoolID{ChainID: 1, Address: common.HexToAddress("0x1")},
		Family: evmarb.DexFamilyV3Concentrated,
	}
	client := &fakePoolClient{results: map[string][]interface{}{
		"slot0":     {big.NewInt(12345), big.NewInt(0), uint16(0), uint16(0), uint16(0), uint8(0), true},
		"liquidity": {big.NewInt(999)},
	}}

	require.NoError(t, FetchInitialSnapshot(context.Background(), &pool, client))
	require.NotNil(t, pool.V3)
	require.Equal(t, int64(12345), pool.V3.SqrtPriceX96.Int64())
	require.Equal(t, int64(999), pool.V3.Liquidity.Int64())
}

func TestFetchTokenReadsDecimalsAndSymbol(t *testing.T) {
	client := &fakePoolClient{results: map[string][]interface{}{
		"decimals": {uint8(6)},
		"symbol":   {"USDC"},
	}}

	token, err := FetchToken(context.Background(), evmarb.ChainID(1), common.HexToAddress("0x1"), client)
	require.NoError(t, err)
	require.Equal(t, uint8(6), token.Decimals)
	require.Equal(t, "USDC", token.Symbol)
}

func TestFetchTokenToleratesSymbolFailure(t *testing.T) {
	client := &fakePoolClient{
		results: map[string][]interface{}{"decimals": {uint8(18)}},
		errs:    map[string]error{"symbol": context.DeadlineExceeded},
	}

	token, err := FetchToken(context.Background(), evmarb.ChainID(1), common.HexToAddress("0x1"), client)
	require.NoError(t, err)
	require.Equal(t, uint8(18), token.Decimals)
	require.Empty(t, token.Symbol)
}
