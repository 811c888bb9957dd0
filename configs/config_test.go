package configs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToCoreConfigTranslatesLossLimitsAndDiscovery(t *testing.T) {
	cfg := &Config{
		EnabledChains:     []uint64{1, 42161},
		DailyLossLimitWei: "1000000000000000000",
		PerTxLossLimitWei: "200000000000000000",
		MinLiquidityFloor: "5000000000000000000",
		PoolDiscovery: map[uint64]PoolDiscoveryYAML{
			1: {
				V2Factory: "0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f",
				V2Router:  "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D",
				V2FeeBps:  30,
				Tokens:    []string{"0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"},
			},
		},
	}

	core, err := cfg.ToCoreConfig()
	require.NoError(t, err)

	require.Len(t, core.EnabledChains, 2)
	require.NotNil(t, core.DailyLossLimitWei)
	assert.Equal(t, "1000000000000000000", core.DailyLossLimitWei.String())
	require.NotNil(t, core.PerTxLossLimitWei)
	assert.Equal(t, "200000000000000000", core.PerTxLossLimitWei.String())
	require.NotNil(t, core.MinLiquidityFloor)
	assert.Equal(t, "5000000000000000000", core.MinLiquidityFloor.String())

	disc, ok := core.PoolDiscovery[1]
	require.True(t, ok)
	assert.Len(t, disc.Tokens, 2)
	assert.Equal(t, uint32(30), disc.V2FeeBps)
}

func TestToCoreConfigLeavesLossLimitsNilWhenUnset(t *testing.T) {
	cfg := &Config{}

	core, err := cfg.ToCoreConfig()
	require.NoError(t, err)

	assert.Nil(t, core.DailyLossLimitWei)
	assert.Nil(t, core.PerTxLossLimitWei)
	assert.Nil(t, core.MinLiquidityFloor)
}

func TestToCoreConfigRejectsMalformedLossLimit(t *testing.T) {
	cfg := &Config{DailyLossLimitWei: "not-a-number"}

	_, err := cfg.ToCoreConfig()
	require.Error(t, err)
}

func TestResolveWalletKeyExpandsEnvReference(t *testing.T) {
	t.Setenv("TEST_WALLET_KEY", "0xdeadbeef")
	cfg := &Config{WalletKey: "${TEST_WALLET_KEY}"}

	key, err := cfg.ResolveWalletKey()
	require.NoError(t, err)
	assert.Equal(t, "0xdeadbeef", key)
}

func TestResolveWalletKeyPassesThroughLiteralValue(t *testing.T) {
	cfg := &Config{WalletKey: "0xdeadbeef"}

	key, err := cfg.ResolveWalletKey()
	require.NoError(t, err)
	assert.Equal(t, "0xdeadbeef", key)
}
