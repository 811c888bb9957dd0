package evmarb

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequenceCompare(t *testing.T) {
	cases := []struct {
		name string
		a, b Sequence
		want int
	}{
		{"equal", Sequence{Block: 10, LogIndex: 2}, Sequence{Block: 10, LogIndex: 2}, 0},
		{"earlier block", Sequence{Block: 9, LogIndex: 5}, Sequence{Block: 10, LogIndex: 0}, -1},
		{"later block", Sequence{Block: 11, LogIndex: 0}, Sequence{Block: 10, LogIndex: 99}, 1},
		{"same block earlier log", Sequence{Block: 10, LogIndex: 1}, Sequence{Block: 10, LogIndex: 2}, -1},
		{"same block later log", Sequence{Block: 10, LogIndex: 3}, Sequence{Block: 10, LogIndex: 2}, 1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, c.a.Compare(c.b))
		})
	}
}

func TestDexFamilyString(t *testing.T) {
	assert.Equal(t, "v2-constant-product", DexFamilyV2ConstantProduct.String())
	assert.Equal(t, "v3-concentrated", DexFamilyV3Concentrated.String())
	assert.Equal(t, "stable-curve", DexFamilyStableCurve.String())
	assert.Equal(t, "route-list", DexFamilyRouteList.String())
	assert.Equal(t, uint8(1), DexFamilyV3Concentrated.SwapDexType())
}

func TestPoolClone(t *testing.T) {
	p := &Pool{
		ID:     PoolID{ChainID: 1, Address: common.HexToAddress("0xabc")},
		Family: DexFamilyV2ConstantProduct,
		V2: &V2Snapshot{
			Reserve0: big.NewInt(100),
			Reserve1: big.NewInt(200),
		},
	}

	clone := p.Clone()
	require.NotNil(t, clone.V2)
	assert.Equal(t, p.V2.Reserve0.String(), clone.V2.Reserve0.String())

	clone.V2.Reserve0.SetInt64(999)
	assert.Equal(t, int64(100), p.V2.Reserve0.Int64(), "clone must not share big.Int backing storage")
}

func TestPoolCloneNil(t *testing.T) {
	var p *Pool
	assert.Nil(t, p.Clone())
}

func TestOpportunityPoolSequence(t *testing.T) {
	pool1 := PoolID{ChainID: 1, Address: common.HexToAddress("0x1")}
	pool2 := PoolID{ChainID: 1, Address: common.HexToAddress("0x2")}

	o := &Opportunity{
		Edges: []Edge{
			{PoolID: pool1},
			{PoolID: pool2},
		},
	}

	assert.Equal(t, []PoolID{pool1, pool2}, o.PoolSequence())
}

func TestOpportunityExpired(t *testing.T) {
	now := time.Now()
	o := &Opportunity{ExpiresAt: now.Add(time.Second)}

	assert.False(t, o.Expired(now))
	assert.True(t, o.Expired(now.Add(2*time.Second)))
}

func TestDailyLossAccumulator(t *testing.T) {
	now := time.Now()
	d := &DailyLossAccumulator{}

	d.Rollover(now)
	require.NotNil(t, d.RunningLoss)
	assert.Equal(t, int64(0), d.RunningLoss.Int64())

	d.Add(big.NewInt(50))
	total := d.Add(big.NewInt(30))
	assert.Equal(t, int64(80), total.Int64())

	assert.False(t, d.Breached(big.NewInt(100)))
	assert.True(t, d.Breached(big.NewInt(80)))

	d.Rollover(now.Add(25 * time.Hour))
	assert.Equal(t, int64(0), d.RunningLoss.Int64())
}

func TestExecutionOutcomeString(t *testing.T) {
	assert.Equal(t, "success", ExecutionOutcomeSuccess.String())
	assert.Equal(t, "disqualified", ExecutionOutcomeDisqualified.String())
	assert.Equal(t, "reverted", ExecutionOutcomeReverted.String())
	assert.Equal(t, "submission_failed", ExecutionOutcomeSubmissionFailed.String())
	assert.Equal(t, "dry_run", ExecutionOutcomeDryRun.String())
}
