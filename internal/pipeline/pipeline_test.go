package pipeline

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	evmarb "evmarb"
	"evmarb/internal/oracle"
)

func testOpportunity(id string, pool common.Address, createdAt time.Time, validity time.Duration) evmarb.Opportunity {
	return evmarb.Opportunity{
		ID:             evmarb.ID(id),
		ChainID:        1,
		Edges:          []evmarb.Edge{{PoolID: evmarb.PoolID{ChainID: 1, Address: pool}}},
		InputToken:     common.HexToAddress("0xIN"),
		InputAmount:    big.NewInt(1000),
		ExpectedProfit: big.NewInt(10),
		CreatedAt:      createdAt,
		ExpiresAt:      createdAt.Add(validity),
	}
}

func TestEnqueueDedupsWithinWindow(t *testing.T) {
	p := New(DefaultConfig(), oracle.Noop{}, zap.NewNop())
	now := time.Now()
	pool := common.HexToAddress("0xPOOL")

	ok, err := p.Enqueue(testOpportunity("a", pool, now, time.Minute), now)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = p.Enqueue(testOpportunity("b", pool, now, time.Minute), now.Add(10*time.Millisecond))
	require.NoError(t, err)
	assert.False(t, ok, "a dup within the dedup window must be rejected")
	assert.Equal(t, 1, p.Len())
}

func TestEnqueueAllowsAfterDedupWindowElapses(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DedupWindow = 10 * time.Millisecond
	p := New(cfg, oracle.Noop{}, zap.NewNop())
	now := time.Now()
	pool := common.HexToAddress("0xPOOL")

	ok, _ := p.Enqueue(testOpportunity("a", pool, now, time.Minute), now)
	require.True(t, ok)

	ok, _ = p.Enqueue(testOpportunity("b", pool, now, time.Minute), now.Add(20*time.Millisecond))
	assert.True(t, ok)
	assert.Equal(t, 2, p.Len())
}

func TestEnqueueRejectsAtCapacity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Capacity = 1
	p := New(cfg, oracle.Noop{}, zap.NewNop())
	now := time.Now()

	ok, _ := p.Enqueue(testOpportunity("a", common.HexToAddress("0x1"), now, time.Minute), now)
	require.True(t, ok)

	ok, _ = p.Enqueue(testOpportunity("b", common.HexToAddress("0x2"), now.Add(time.Hour), time.Minute), now.Add(time.Hour))
	assert.False(t, ok)
}

func TestDequeueDropsExpiredEntries(t *testing.T) {
	p := New(DefaultConfig(), oracle.Noop{}, zap.NewNop())
	now := time.Now()

	_, _ = p.Enqueue(testOpportunity("a", common.HexToAddress("0x1"), now, time.Millisecond), now)

	opp, ok := p.Dequeue(context.Background(), now.Add(time.Second))
	assert.False(t, ok)
	assert.Equal(t, evmarb.ID(""), opp.ID)
}

func TestDequeueProceedsOnOracleFailure(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinProfitUSD = 100
	p := New(cfg, oracle.Noop{}, zap.NewNop())
	now := time.Now()

	_, _ = p.Enqueue(testOpportunity("a", common.HexToAddress("0x1"), now, time.Minute), now)

	opp, ok := p.Dequeue(context.Background(), now)
	require.True(t, ok, "an oracle failure must not block the opportunity, per native-unit fallback")
	assert.Equal(t, evmarb.ID("a"), opp.ID)
}

func TestSweepRemovesExpiredEntriesIndependentlyOfDequeue(t *testing.T) {
	p := New(DefaultConfig(), oracle.Noop{}, zap.NewNop())
	now := time.Now()
	_, _ = p.Enqueue(testOpportunity("a", common.HexToAddress("0x1"), now, time.Millisecond), now)

	p.sweep(now.Add(time.Second))
	assert.Equal(t, 0, p.Len())
}
