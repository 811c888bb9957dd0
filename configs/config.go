// Package configs loads the YAML configuration file and translates it
// into the typed config structs the core's constructors expect.
package configs

import (
	"fmt"
	"math/big"
	"os"

	evmarb "evmarb"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// ChainEndpointYAML is one entry of perChainEndpoints.
type ChainEndpointYAML struct {
	RPC           string `yaml:"rpc"`
	WS            string `yaml:"ws"`
	PrivateSubmit string `yaml:"privateSubmit,omitempty"`
}

// PoolDiscoveryYAML is one entry of poolDiscovery: the factory/router
// addresses and token universe internal/registry.DiscoverV2/DiscoverV3
// probe at startup for one chain.
type PoolDiscoveryYAML struct {
	V2Factory string   `yaml:"v2Factory,omitempty"`
	V2Router  string   `yaml:"v2Router,omitempty"`
	V2FeeBps  uint32   `yaml:"v2FeeBps,omitempty"`
	V3Factory string   `yaml:"v3Factory,omitempty"`
	V3Router  string   `yaml:"v3Router,omitempty"`
	Tokens    []string `yaml:"tokens"`
}

// Config is the root YAML document shape for the arbitrage core.
type Config struct {
	EnabledChains         []uint64                     `yaml:"enabledChains"`
	MinProfitUsd          float64                      `yaml:"minProfitUsd"`
	MaxGasPriceGwei       float64                      `yaml:"maxGasPriceGwei"`
	MaxSlippageBps        int                           `yaml:"maxSlippageBps"`
	SimulateBeforeExecute *bool                         `yaml:"simulateBeforeExecute"`
	DryRun                bool                          `yaml:"dryRun"`
	CooldownMs            int                           `yaml:"cooldownMs"`
	PrivateMempoolEnabled map[uint64]bool               `yaml:"privateMempoolEnabled"`
	PerChainEndpoints     map[uint64]ChainEndpointYAML  `yaml:"perChainEndpoints"`
	PoolDiscovery         map[uint64]PoolDiscoveryYAML  `yaml:"poolDiscovery"`
	// ArbitrageContracts maps chain ID to the deployed executeArbitrage
	// contract address for that chain.
	ArbitrageContracts map[uint64]string `yaml:"arbitrageContracts"`
	// WalletKey holds an ${ENV_VAR} reference so the signing key stays out
	// of files on disk; a value not in that form is used as written.
	WalletKey string `yaml:"walletKey"`

	DailyLossLimitWei string `yaml:"dailyLossLimitWei"`
	PerTxLossLimitWei string `yaml:"perTxLossLimitWei"`
	ValidityWindowMs  int    `yaml:"validityWindowMs"`
	MinLiquidityFloor string `yaml:"minLiquidityFloorWei"`
	CycleMaxDepth     int    `yaml:"cycleMaxDepth"`
	MySQLDSN          string `yaml:"mysqlDsn"`
}

// LoadConfig reads and parses a YAML config document into a Config struct.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	return &config, nil
}

// ResolveWalletKey expands a "${VAR}" reference in WalletKey by reading the
// named environment variable, so the private key material need not live in
// the YAML file on disk. A value not in "${VAR}" form is returned unchanged.
func (c *Config) ResolveWalletKey() (string, error) {
	name, ok := envRefName(c.WalletKey)
	if !ok {
		return c.WalletKey, nil
	}
	v := os.Getenv(name)
	if v == "" {
		return "", fmt.Errorf("environment variable %s referenced by walletKey is not set", name)
	}
	return v, nil
}

func envRefName(raw string) (string, bool) {
	if len(raw) < 4 || raw[0] != '$' || raw[1] != '{' || raw[len(raw)-1] != '}' {
		return "", false
	}
	return raw[2 : len(raw)-1], true
}

// ToCoreConfig translates the YAML document into evmarb.Config, the shape
// the core's constructors consume.
func (c *Config) ToCoreConfig() (*evmarb.Config, error) {
	walletKey, err := c.ResolveWalletKey()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve wallet key: %w", err)
	}

	simulate := true
	if c.SimulateBeforeExecute != nil {
		simulate = *c.SimulateBeforeExecute
	}

	chains := make([]evmarb.ChainID, len(c.EnabledChains))
	for i, id := range c.EnabledChains {
		chains[i] = evmarb.ChainID(id)
	}

	endpoints := make(map[evmarb.ChainID]evmarb.ChainEndpoints, len(c.PerChainEndpoints))
	for id, ep := range c.PerChainEndpoints {
		endpoints[evmarb.ChainID(id)] = evmarb.ChainEndpoints{
			RPC:           ep.RPC,
			WS:            ep.WS,
			PrivateSubmit: ep.PrivateSubmit,
		}
	}

	privateMempool := make(map[evmarb.ChainID]bool, len(c.PrivateMempoolEnabled))
	for id, v := range c.PrivateMempoolEnabled {
		privateMempool[evmarb.ChainID(id)] = v
	}

	discovery := make(map[evmarb.ChainID]evmarb.PoolDiscovery, len(c.PoolDiscovery))
	for id, d := range c.PoolDiscovery {
		tokens := make([]common.Address, len(d.Tokens))
		for i, addr := range d.Tokens {
			tokens[i] = common.HexToAddress(addr)
		}
		discovery[evmarb.ChainID(id)] = evmarb.PoolDiscovery{
			V2Factory: common.HexToAddress(d.V2Factory),
			V2Router:  common.HexToAddress(d.V2Router),
			V2FeeBps:  d.V2FeeBps,
			V3Factory: common.HexToAddress(d.V3Factory),
			V3Router:  common.HexToAddress(d.V3Router),
			Tokens:    tokens,
		}
	}

	contracts := make(map[evmarb.ChainID]common.Address, len(c.ArbitrageContracts))
	for id, addr := range c.ArbitrageContracts {
		contracts[evmarb.ChainID(id)] = common.HexToAddress(addr)
	}

	dailyLossLimit, err := parseWeiString(c.DailyLossLimitWei)
	if err != nil {
		return nil, fmt.Errorf("failed to parse dailyLossLimitWei: %w", err)
	}
	perTxLossLimit, err := parseWeiString(c.PerTxLossLimitWei)
	if err != nil {
		return nil, fmt.Errorf("failed to parse perTxLossLimitWei: %w", err)
	}
	minLiquidityFloor, err := parseWeiString(c.MinLiquidityFloor)
	if err != nil {
		return nil, fmt.Errorf("failed to parse minLiquidityFloorWei: %w", err)
	}

	return &evmarb.Config{
		EnabledChains:         chains,
		MinProfitUsd:          c.MinProfitUsd,
		MaxGasPriceGwei:       c.MaxGasPriceGwei,
		MaxSlippageBps:        c.MaxSlippageBps,
		SimulateBeforeExecute: simulate,
		DryRun:                c.DryRun,
		CooldownMs:            c.CooldownMs,
		PrivateMempoolEnabled: privateMempool,
		PerChainEndpoints:     endpoints,
		PoolDiscovery:         discovery,
		ArbitrageContracts:    contracts,
		WalletKey:             walletKey,
		ValidityWindowMs:      c.ValidityWindowMs,
		CycleMaxDepth:         c.CycleMaxDepth,
		MySQLDSN:              c.MySQLDSN,
		DailyLossLimitWei:     dailyLossLimit,
		PerTxLossLimitWei:     perTxLossLimit,
		MinLiquidityFloor:     minLiquidityFloor,
	}, nil
}

// parseWeiString parses a decimal wei amount, returning nil (meaning "no
// limit") for an empty string.
func parseWeiString(raw string) (*big.Int, error) {
	if raw == "" {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("invalid decimal wei value %q", raw)
	}
	return v, nil
}
