package pricing

import (
	"math"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	evmarb "evmarb"
)

func testGraphPool(reserve0, reserve1 int64) evmarb.Pool {
	return evmarb.Pool{
		ID:     evmarb.PoolID{ChainID: 1, Address: common.HexToAddress("0xPOOL")},
		Family: evmarb.DexFamilyV2ConstantProduct,
		Token0: common.HexToAddress("0xA"),
		Token1: common.HexToAddress("0xB"),
		FeeBps: 30,
		V2:     &evmarb.V2Snapshot{Reserve0: big.NewInt(reserve0), Reserve1: big.NewInt(reserve1)},
	}
}

func TestApplyPoolUpdateInsertsBothDirections(t *testing.T) {
	g := New(1)
	pool := testGraphPool(1_000_000, 3_000_000)

	err := g.ApplyPoolUpdate(pool.ID, pool)
	require.NoError(t, err)

	pair, ok := g.EdgePair(pool.ID)
	require.True(t, ok)
	assert.Equal(t, pool.Token0, pair[0].From)
	assert.Equal(t, pool.Token1, pair[0].To)
	assert.Equal(t, pool.Token1, pair[1].From)
	assert.Equal(t, pool.Token0, pair[1].To)

	forwardEdges := g.EdgesFrom(pool.Token0)
	require.Len(t, forwardEdges, 1)
	backwardEdges := g.EdgesFrom(pool.Token1)
	require.Len(t, backwardEdges, 1)
}

func TestApplyPoolUpdateReplacesOldEdgesAtomically(t *testing.T) {
	g := New(1)
	pool := testGraphPool(1_000_000, 3_000_000)
	require.NoError(t, g.ApplyPoolUpdate(pool.ID, pool))

	updated := testGraphPool(2_000_000, 3_000_000)
	updated.ID = pool.ID
	require.NoError(t, g.ApplyPoolUpdate(updated.ID, updated))

	// exactly one edge pair should exist for this pool, not a stale
	// leftover plus a fresh one.
	forwardEdges := g.EdgesFrom(pool.Token0)
	require.Len(t, forwardEdges, 1)
	assert.Equal(t, updated.V2.Reserve0.Int64(), forwardEdges[0].ReserveFrom.Int64())

	backwardEdges := g.EdgesFrom(pool.Token1)
	require.Len(t, backwardEdges, 1)
}

func TestApplyPoolUpdateZeroReservesProduceInfiniteWeightEdges(t *testing.T) {
	g := New(1)
	pool := testGraphPool(0, 0)

	require.NoError(t, g.ApplyPoolUpdate(pool.ID, pool))

	pair, ok := g.EdgePair(pool.ID)
	require.True(t, ok)
	assert.True(t, math.IsInf(pair[0].Weight, 1))
	assert.True(t, math.IsInf(pair[1].Weight, 1))
}

func TestApplyPoolUpdatePropagatesDeriveError(t *testing.T) {
	g := New(1)
	pool := evmarb.Pool{ID: evmarb.PoolID{ChainID: 1, Address: common.HexToAddress("0xBAD")}, Family: evmarb.DexFamilyV2ConstantProduct}

	err := g.ApplyPoolUpdate(pool.ID, pool)
	require.Error(t, err)

	_, ok := g.EdgePair(pool.ID)
	require.False(t, ok, "a failed derive must not leave a partial edge pair behind")
}

func TestVerticesUnionsEdgeEndpoints(t *testing.T) {
	g := New(1)
	poolAB := testGraphPool(1_000_000, 3_000_000)
	require.NoError(t, g.ApplyPoolUpdate(poolAB.ID, poolAB))

	poolBC := testGraphPool(1_000_000, 3_000_000)
	poolBC.ID.Address = common.HexToAddress("0x2")
	poolBC.Token0 = common.HexToAddress("0xB")
	poolBC.Token1 = common.HexToAddress("0xC")
	require.NoError(t, g.ApplyPoolUpdate(poolBC.ID, poolBC))

	vertices := g.Vertices()
	addrs := make(map[common.Address]bool)
	for _, v := range vertices {
		addrs[v] = true
	}
	assert.True(t, addrs[common.HexToAddress("0xA")])
	assert.True(t, addrs[common.HexToAddress("0xB")])
	assert.True(t, addrs[common.HexToAddress("0xC")])
}

func TestAllEdgesReturnsEveryDirectedEdge(t *testing.T) {
	g := New(1)
	pool := testGraphPool(1_000_000, 3_000_000)
	require.NoError(t, g.ApplyPoolUpdate(pool.ID, pool))

	edges := g.AllEdges()
	require.Len(t, edges, 2)
}

func TestEdgesFromReturnsDefensiveCopy(t *testing.T) {
	g := New(1)
	pool := testGraphPool(1_000_000, 3_000_000)
	require.NoError(t, g.ApplyPoolUpdate(pool.ID, pool))

	edges := g.EdgesFrom(pool.Token0)
	edges[0].Weight = -999

	fresh := g.EdgesFrom(pool.Token0)
	assert.NotEqual(t, float64(-999), fresh[0].Weight)
}
