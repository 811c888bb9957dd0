package evmarb

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ChainEndpoints is the RPC/WS/private-submit endpoint triple for one chain.
type ChainEndpoints struct {
	RPC           string
	WS            string
	PrivateSubmit string // empty if no private mempool endpoint is configured
}

// PoolDiscovery is the per-chain factory/router/token-universe input
// internal/registry.DiscoverV2/DiscoverV3 need to enumerate pools at
// startup. A zero-value entry (no tokens) means discovery is skipped for
// that chain: no pools are seeded or subscribed, and events for pools the
// mirror does not hold are dropped, so the mirror stays empty.
type PoolDiscovery struct {
	V2Factory common.Address
	V2Router  common.Address
	V2FeeBps  uint32
	V3Factory common.Address
	V3Router  common.Address
	Tokens    []common.Address
}

// Config is the core's runtime configuration, translated from YAML by
// configs.Config.ToCoreConfig.
type Config struct {
	EnabledChains         []ChainID
	MinProfitUsd          float64
	MaxGasPriceGwei       float64
	MaxSlippageBps        int
	SimulateBeforeExecute bool
	DryRun                bool
	CooldownMs            int
	PrivateMempoolEnabled map[ChainID]bool
	PerChainEndpoints     map[ChainID]ChainEndpoints
	PoolDiscovery         map[ChainID]PoolDiscovery
	// ArbitrageContracts is the deployed executeArbitrage contract address
	// per chain; a chain with no entry cannot execute.
	ArbitrageContracts map[ChainID]common.Address
	WalletKey          string

	// ValidityWindowMs overrides the Detector's default 2s validity window
	// (the expiry stamped on each opportunity) when non-zero.
	ValidityWindowMs int
	// CycleMaxDepth overrides the Detector's default bounded-DFS depth (3)
	// when non-zero.
	CycleMaxDepth int
	MySQLDSN      string

	// DailyLossLimitWei pauses a chain once its rolling daily loss
	// accumulator crosses this; nil disables the check. The accumulator is
	// kept only through the MySQL recorder, so with no MySQLDSN the check
	// never fires.
	DailyLossLimitWei *big.Int
	// PerTxLossLimitWei hard-fails execution when a single reverted
	// transaction's gas loss alone crosses this; nil disables the check.
	PerTxLossLimitWei *big.Int
	// MinLiquidityFloor is the reserve/liquidity threshold below which an
	// edge counts as thin; each thin edge in a cycle lowers its confidence
	// score. No edge is removed from cycle detection.
	MinLiquidityFloor *big.Int
}

// PrivateSubmitURL returns the configured private-mempool submission
// endpoint for chain, or "" if none is configured or enabled.
func (c *Config) PrivateSubmitURL(chain ChainID) string {
	if !c.PrivateMempoolEnabled[chain] {
		return ""
	}
	return c.PerChainEndpoints[chain].PrivateSubmit
}
