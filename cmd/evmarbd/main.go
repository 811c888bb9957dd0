// Command evmarbd runs the arbitrage core as a standalone process: one
// ChainRuntime per enabled chain, each wired from mirror through executor
// and registered with a shared Controller. It loads the YAML config,
// resolves the wallet key from the environment, constructs the
// collaborator chain, then blocks until the process is signaled to stop.
package main

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	evmarb "evmarb"
	"evmarb/configs"
	"evmarb/internal/chainclient"
	"evmarb/internal/contractclient"
	"evmarb/internal/core"
	"evmarb/internal/db"
	"evmarb/internal/detector"
	"evmarb/internal/executor"
	"evmarb/internal/mirror"
	"evmarb/internal/oracle"
	"evmarb/internal/pipeline"
	"evmarb/internal/pricing"
	"evmarb/internal/registry"
	"evmarb/pkg/txlistener"
)

const historyCapacity = 256

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := run(logger); err != nil {
		logger.Fatal("evmarbd exited with error", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	conf, err := configs.LoadConfig(configPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	coreConf, err := conf.ToCoreConfig()
	if err != nil {
		return fmt.Errorf("failed to translate config: %w", err)
	}

	pk, err := parsePrivateKey(coreConf.WalletKey)
	if err != nil {
		return fmt.Errorf("failed to parse wallet key: %w", err)
	}
	from := crypto.PubkeyToAddress(pk.PublicKey)

	arbitrageABI, err := executor.ParseArbitrageABI()
	if err != nil {
		return fmt.Errorf("failed to parse arbitrage contract ABI: %w", err)
	}

	var recorder executor.Recorder
	if coreConf.MySQLDSN != "" {
		mysqlRecorder, err := db.NewMySQLRecorder(coreConf.MySQLDSN)
		if err != nil {
			return fmt.Errorf("failed to connect execution recorder: %w", err)
		}
		recorder = mysqlRecorder
		defer mysqlRecorder.Close()
	}

	controller := core.NewController(logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, chainID := range coreConf.EnabledChains {
		if err := wireChain(ctx, chainID, coreConf, arbitrageABI, pk, from, recorder, controller, logger); err != nil {
			return fmt.Errorf("failed to wire chain %d: %w", chainID, err)
		}
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		controller.Run(ctx)
		close(done)
	}()

	<-stop
	logger.Info("shutdown signal received, draining in-flight executions")
	cancel()
	<-done
	return nil
}

func wireChain(
	ctx context.Context,
	chainID evmarb.ChainID,
	coreConf *evmarb.Config,
	arbitrageABI abi.ABI,
	pk *ecdsa.PrivateKey,
	from common.Address,
	recorder executor.Recorder,
	controller *core.Controller,
	logger *zap.Logger,
) error {
	endpoints := coreConf.PerChainEndpoints[chainID]
	client, err := chainclient.Dial(ctx, chainID, endpoints.RPC, endpoints.WS, logger)
	if err != nil {
		return fmt.Errorf("failed to dial chain client: %w", err)
	}
	if err := client.InitNonce(ctx, from); err != nil {
		return fmt.Errorf("failed to init nonce: %w", err)
	}

	graph := pricing.New(chainID)

	// det is assigned after the mirror because the detector needs the
	// graph and mirror first; the closure only fires once events flow.
	var det *detector.Detector
	mir := mirror.New(logger, func(id evmarb.PoolID, pool evmarb.Pool) {
		if err := graph.ApplyPoolUpdate(id, pool); err != nil {
			logger.Warn("failed to apply pool update to pricing graph", zap.String("pool", id.Address.Hex()), zap.Error(err))
			return
		}
		if det != nil {
			go det.Trigger(ctx)
		}
	})

	pools, err := discoverAndSeedPools(ctx, chainID, coreConf, client, mir, logger)
	if err != nil {
		return fmt.Errorf("failed pool discovery: %w", err)
	}

	sourceToken := designatedSourceToken(coreConf, chainID)
	detectorCfg := detector.DefaultConfig(sourceToken)
	if coreConf.MinLiquidityFloor != nil {
		detectorCfg.LiquidityFloor = coreConf.MinLiquidityFloor
	}
	if coreConf.CycleMaxDepth > 0 {
		detectorCfg.MaxCycleDepth = coreConf.CycleMaxDepth
	}
	if coreConf.ValidityWindowMs > 0 {
		detectorCfg.ValidityWindow = time.Duration(coreConf.ValidityWindowMs) * time.Millisecond
	}
	det = detector.New(chainID, graph, mir.Get, detectorCfg, logger)

	// Subscriptions start only now that det is set: the mirror callback
	// reads it from the subscription goroutines.
	go subscribePoolEvents(ctx, chainID, client, pools, mir, logger)

	pipelineCfg := pipeline.DefaultConfig()
	pipelineCfg.MinProfitUSD = coreConf.MinProfitUsd
	pipe := pipeline.New(pipelineCfg, oracle.Noop{}, logger)
	go pipe.Run(ctx)

	contractAddr, ok := coreConf.ArbitrageContracts[chainID]
	if !ok {
		return fmt.Errorf("no arbitrageContracts entry configured for chain %d", chainID)
	}
	contract := contractclient.New(client.HTTP(), contractAddr, arbitrageABI)

	var privateContract executor.Contract
	if privateURL := coreConf.PrivateSubmitURL(chainID); privateURL != "" {
		privateClient, err := chainclient.Dial(ctx, chainID, privateURL, "", logger)
		if err != nil {
			return fmt.Errorf("failed to dial private submission endpoint: %w", err)
		}
		privateContract = contractclient.New(privateClient.HTTP(), contractAddr, arbitrageABI)
	}

	listener := txlistener.NewTxListener(client.HTTP())

	execCfg := executor.DefaultConfig()
	execCfg.MaxSlippageBps = coreConf.MaxSlippageBps
	execCfg.SimulateBeforeExecute = coreConf.SimulateBeforeExecute
	execCfg.DryRun = coreConf.DryRun
	execCfg.DailyLossLimitWei = coreConf.DailyLossLimitWei
	execCfg.PerTxLossLimitWei = coreConf.PerTxLossLimitWei
	execCfg.ResyncNonce = func(ctx context.Context) (uint64, error) {
		return client.HTTP().PendingNonceAt(ctx, from)
	}
	if coreConf.MaxGasPriceGwei > 0 {
		execCfg.MaxGasPriceWei = gweiToWei(coreConf.MaxGasPriceGwei)
	}

	var runtime *core.ChainRuntime
	pauseFn := func(pausedChain evmarb.ChainID, reason string) {
		logger.Warn("auto-pausing chain", zap.Uint64("chainId", uint64(pausedChain)), zap.String("reason", reason))
		if runtime != nil {
			runtime.Pause()
		}
	}

	exec := executor.New(chainID, contract, privateContract, client, listener, client.Nonces(), recorder, pk, from, execCfg, pauseFn, logger)
	runtime = core.NewChainRuntime(chainID, det, pipe, exec, mir, historyCapacity, logger)
	runtime.Cooldown = time.Duration(coreConf.CooldownMs) * time.Millisecond
	controller.Register(runtime)

	go det.Trigger(ctx)
	logger.Info("chain wired", zap.Uint64("chainId", uint64(chainID)), zap.Int("discoveredPools", len(pools)))
	return nil
}

// discoverAndSeedPools runs startup discovery for chainID if a
// poolDiscovery entry is configured and seeds the Mirror with each
// discovered pool's initial snapshot. The caller starts the log
// subscriptions that keep those snapshots current.
func discoverAndSeedPools(ctx context.Context, chainID evmarb.ChainID, coreConf *evmarb.Config, client *chainclient.Client, mir *mirror.Mirror, logger *zap.Logger) ([]evmarb.Pool, error) {
	disc, ok := coreConf.PoolDiscovery[chainID]
	if !ok || len(disc.Tokens) == 0 {
		return nil, nil
	}

	for _, tokenAddr := range disc.Tokens {
		tokenClient := contractclient.New(client.HTTP(), tokenAddr, registry.ERC20ABI)
		token, err := registry.FetchToken(ctx, chainID, tokenAddr, tokenClient)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve token %s: %w", tokenAddr, err)
		}
		logger.Info("token resolved", zap.Uint64("chainId", uint64(chainID)),
			zap.String("token", tokenAddr.Hex()), zap.String("symbol", token.Symbol), zap.Uint8("decimals", token.Decimals))
	}

	var pools []evmarb.Pool
	if disc.V2Factory != (common.Address{}) {
		v2Factory := contractclient.New(client.HTTP(), disc.V2Factory, registry.V2FactoryABI)
		v2Pools, err := registry.DiscoverV2(ctx, chainID, v2Factory, disc.V2Router, disc.Tokens, disc.V2FeeBps)
		if err != nil {
			return nil, fmt.Errorf("v2 discovery failed: %w", err)
		}
		pools = append(pools, v2Pools...)
	}
	if disc.V3Factory != (common.Address{}) {
		v3Factory := contractclient.New(client.HTTP(), disc.V3Factory, registry.V3FactoryABI)
		v3Pools, err := registry.DiscoverV3(ctx, chainID, v3Factory, disc.V3Router, disc.Tokens, registry.CanonicalV3FeeTiersBps)
		if err != nil {
			return nil, fmt.Errorf("v3 discovery failed: %w", err)
		}
		pools = append(pools, v3Pools...)
	}

	for i := range pools {
		pool := &pools[i]
		poolABI := registry.V2PairABI
		if pool.Family == evmarb.DexFamilyV3Concentrated {
			poolABI = registry.V3PoolABI
		}
		poolClient := contractclient.New(client.HTTP(), pool.ID.Address, poolABI)
		if err := registry.FetchInitialSnapshot(ctx, pool, poolClient); err != nil {
			return nil, fmt.Errorf("failed to fetch initial snapshot for %s: %w", pool.ID.Address, err)
		}
		mir.Seed(*pool)
	}

	if ix := registry.Index(pools); len(ix.All()) != len(pools) {
		logger.Warn("discovery returned duplicate pool identities", zap.Int("discovered", len(pools)), zap.Int("unique", len(ix.All())))
	}

	return pools, nil
}

// subscribePoolEvents keeps every discovered pool's mirrored snapshot
// current by subscribing to its family's event topic (v2 Sync, v3 Swap)
// and applying the decoded payload. The refresh callback re-reads every
// watched pool's state on (re)connect, so the mirror never serves
// snapshots that went stale during an outage.
func subscribePoolEvents(ctx context.Context, chainID evmarb.ChainID, client *chainclient.Client, pools []evmarb.Pool, mir *mirror.Mirror, logger *zap.Logger) {
	var v2Addrs, v3Addrs []common.Address
	for _, p := range pools {
		if p.Family == evmarb.DexFamilyV3Concentrated {
			v3Addrs = append(v3Addrs, p.ID.Address)
		} else {
			v2Addrs = append(v2Addrs, p.ID.Address)
		}
	}

	refresh := func(ctx context.Context) error {
		return refreshWatchedPools(ctx, chainID, client, pools, mir)
	}

	if len(v2Addrs) > 0 {
		query := ethereum.FilterQuery{Addresses: v2Addrs, Topics: [][]common.Hash{{registry.V2SyncTopic}}}
		go func() {
			err := client.Subscribe(ctx, query, refresh, func(log types.Log) {
				applyV2Sync(chainID, log, mir, logger)
			})
			if err != nil && ctx.Err() == nil {
				logger.Warn("v2 sync subscription ended", zap.Error(err))
			}
		}()
	}
	if len(v3Addrs) > 0 {
		query := ethereum.FilterQuery{Addresses: v3Addrs, Topics: [][]common.Hash{{registry.V3SwapTopic}}}
		go func() {
			err := client.Subscribe(ctx, query, refresh, func(log types.Log) {
				applyV3Swap(chainID, log, mir, logger)
			})
			if err != nil && ctx.Err() == nil {
				logger.Warn("v3 swap subscription ended", zap.Error(err))
			}
		}()
	}
}

// refreshWatchedPools re-reads the current on-chain state of every
// watched pool and re-seeds the mirror, stamping each snapshot with the
// current head block so any event that raced the refresh still wins the
// sequence check.
func refreshWatchedPools(ctx context.Context, chainID evmarb.ChainID, client *chainclient.Client, pools []evmarb.Pool, mir *mirror.Mirror) error {
	head, err := client.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("failed to read head block for refresh: %w", err)
	}
	for _, p := range pools {
		pool, ok := mir.Get(p.ID)
		if !ok {
			pool = p
		}
		poolABI := registry.V2PairABI
		if pool.Family == evmarb.DexFamilyV3Concentrated {
			poolABI = registry.V3PoolABI
		}
		poolClient := contractclient.New(client.HTTP(), pool.ID.Address, poolABI)
		if err := registry.FetchInitialSnapshot(ctx, &pool, poolClient); err != nil {
			return fmt.Errorf("failed to refresh pool %s: %w", pool.ID.Address, err)
		}
		pool.Sequence = evmarb.Sequence{Block: head}
		if _, err := mir.Apply(pool); err != nil {
			return err
		}
	}
	return nil
}

func applyV2Sync(chainID evmarb.ChainID, log types.Log, mir *mirror.Mirror, logger *zap.Logger) {
	base, ok := mir.Get(evmarb.PoolID{ChainID: chainID, Address: log.Address})
	if !ok {
		return
	}
	reserve0, reserve1, err := registry.DecodeV2Sync(log)
	if err != nil {
		logger.Debug("dropped undecodable sync event", zap.String("pool", log.Address.Hex()), zap.Error(err))
		return
	}
	updated := *base.Clone()
	updated.V2 = &evmarb.V2Snapshot{Reserve0: reserve0, Reserve1: reserve1}
	updated.Sequence = evmarb.Sequence{Block: log.BlockNumber, LogIndex: uint32(log.Index)}
	if _, err := mir.Apply(updated); err != nil {
		logger.Debug("discarded pool update", zap.String("pool", log.Address.Hex()), zap.Error(err))
	}
}

func applyV3Swap(chainID evmarb.ChainID, log types.Log, mir *mirror.Mirror, logger *zap.Logger) {
	base, ok := mir.Get(evmarb.PoolID{ChainID: chainID, Address: log.Address})
	if !ok {
		return
	}
	sqrtPrice, liquidity, err := registry.DecodeV3Swap(log)
	if err != nil {
		logger.Debug("dropped undecodable swap event", zap.String("pool", log.Address.Hex()), zap.Error(err))
		return
	}
	updated := *base.Clone()
	updated.V3 = &evmarb.V3Snapshot{SqrtPriceX96: sqrtPrice, Liquidity: liquidity}
	updated.Sequence = evmarb.Sequence{Block: log.BlockNumber, LogIndex: uint32(log.Index)}
	if _, err := mir.Apply(updated); err != nil {
		logger.Debug("discarded pool update", zap.String("pool", log.Address.Hex()), zap.Error(err))
	}
}

// designatedSourceToken picks the Detector's Bellman-Ford source token,
// conventionally the wrapped-native token, using the first configured
// discovery token as the designation.
func designatedSourceToken(coreConf *evmarb.Config, chainID evmarb.ChainID) common.Address {
	disc, ok := coreConf.PoolDiscovery[chainID]
	if !ok || len(disc.Tokens) == 0 {
		return common.Address{}
	}
	return disc.Tokens[0]
}

func parsePrivateKey(raw string) (*ecdsa.PrivateKey, error) {
	raw = strings.TrimPrefix(raw, "0x")
	return crypto.HexToECDSA(raw)
}

func gweiToWei(gwei float64) *big.Int {
	wei := new(big.Float).Mul(big.NewFloat(gwei), big.NewFloat(1e9))
	result, _ := wei.Int(nil)
	return result
}

func configPath() string {
	if path := os.Getenv("EVMARB_CONFIG"); path != "" {
		return path
	}
	return "configs/config.yml"
}
