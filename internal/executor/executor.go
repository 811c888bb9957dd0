package executor

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	evmarb "evmarb"
	"evmarb/errs"
)

// dryRunSentinelHash stands in for a transaction hash when DryRun is set,
// so downstream code never confuses a synthesized success with a real
// submission.
var dryRunSentinelHash = common.HexToHash("0xd5d5d5d5d5d5d5d5d5d5d5d5d5d5d5d5d5d5d5d5d5d5d5d5d5d5d5d5d5d5d5d5")

// ErrDailyLossLimitBreached is returned after the chain has been paused
// because the daily loss ceiling was reached. It wraps errs.ErrLimitBreach
// so callers can classify it without importing this package.
var ErrDailyLossLimitBreached = fmt.Errorf("executor: daily loss limit breached, chain paused: %w", errs.ErrLimitBreach)

// ErrPerTxLossLimitBreached is a hard failure: a single execution lost
// more than the configured per-transaction ceiling.
var ErrPerTxLossLimitBreached = fmt.Errorf("executor: per-transaction loss limit breached: %w", errs.ErrLimitBreach)

// Contract is the narrow surface the Executor needs against the deployed
// arbitrage contract, satisfied by *internal/contractclient.Client bound
// with the ABI from ParseArbitrageABI.
type Contract interface {
	Call(ctx context.Context, from *common.Address, method string, args ...interface{}) ([]interface{}, error)
	EstimateGas(ctx context.Context, from common.Address, method string, args ...interface{}) (uint64, error)
	Send(ctx context.Context, pk *ecdsa.PrivateKey, nonce uint64, gasPrice *big.Int, gasLimit uint64, method string, args ...interface{}) (*types.Transaction, error)
}

// GasPricer reports the chain's current suggested gas price, satisfied by
// *internal/chainclient.Client.
type GasPricer interface {
	GasPrice(ctx context.Context) (*big.Int, error)
}

// Confirmer awaits a submitted transaction's receipt, satisfied by
// *pkg/txlistener.TxListener.
type Confirmer interface {
	WaitForTransaction(txHash common.Hash) (*types.Receipt, error)
}

// Nonces is the single-writer nonce counter, satisfied by
// *internal/chainclient.NonceManager.
type Nonces interface {
	Reserve() uint64
	Rollback(nonce uint64)
	Resync(observed uint64)
}

// Recorder persists execution outcomes and the daily-loss accumulator,
// satisfied by *internal/db.MySQLRecorder.
type Recorder interface {
	RecordExecution(rec evmarb.ExecutionRecord) error
	LoadDailyLoss(chainID evmarb.ChainID, now time.Time) (evmarb.DailyLossAccumulator, error)
	SaveDailyLoss(chainID evmarb.ChainID, acc evmarb.DailyLossAccumulator) error
}

// PauseFunc halts further dequeuing on a chain once the daily loss
// ceiling is breached.
type PauseFunc func(chainID evmarb.ChainID, reason string)

// Config tunes one chain's Executor.
type Config struct {
	MaxGasPriceWei        *big.Int // disqualify if current gas price exceeds this
	GasCostProfitRatio    float64  // disqualify if estimated gas cost exceeds profit by more than this fraction
	MaxSlippageBps        int
	SimulateBeforeExecute bool
	DryRun                bool
	PerTxLossLimitWei     *big.Int // nil disables the per-tx hard-fail check
	// DailyLossLimitWei is the daily auto-pause ceiling; nil disables the
	// check. The running loss is kept only through the Recorder, so with
	// no Recorder no daily loss is accumulated and the check never fires.
	DailyLossLimitWei     *big.Int

	// ResyncNonce reads the wallet's current pending nonce from the chain.
	// Set, it enables the one-shot resync-and-retry on a nonce-conflict
	// submission failure; nil means a conflict is surfaced immediately.
	ResyncNonce func(ctx context.Context) (uint64, error)
}

// DefaultConfig returns the stock tuning: simulation on, a 50%
// gas-cost-vs-profit disqualify margin, no loss ceilings.
func DefaultConfig() Config {
	return Config{
		GasCostProfitRatio:    0.5,
		MaxSlippageBps:        50,
		SimulateBeforeExecute: true,
	}
}

// Executor runs the sequential simulate, gas-gate, submit, confirm,
// post-conditions pipeline for one chain. Callers must guarantee only one
// goroutine calls Execute for a given chain at a time; the chain runtime
// keeps at most one transaction in flight.
type Executor struct {
	chainID evmarb.ChainID

	contract        Contract
	privateContract Contract // optional, used for Send only when configured
	gas             GasPricer
	confirmer       Confirmer
	nonces          Nonces
	recorder        Recorder

	pk   *ecdsa.PrivateKey
	from common.Address

	cfg     Config
	pauseFn PauseFunc
	logger  *zap.Logger
}

// New constructs an Executor for one chain. privateContract may be nil,
// in which case submissions always go through contract.
func New(
	chainID evmarb.ChainID,
	contract Contract,
	privateContract Contract,
	gas GasPricer,
	confirmer Confirmer,
	nonces Nonces,
	recorder Recorder,
	pk *ecdsa.PrivateKey,
	from common.Address,
	cfg Config,
	pauseFn PauseFunc,
	logger *zap.Logger,
) *Executor {
	return &Executor{
		chainID:         chainID,
		contract:        contract,
		privateContract: privateContract,
		gas:             gas,
		confirmer:       confirmer,
		nonces:          nonces,
		recorder:        recorder,
		pk:              pk,
		from:            from,
		cfg:             cfg,
		pauseFn:         pauseFn,
		logger:          logger.Named("executor"),
	}
}

// Execute consumes one Opportunity through simulate, gas-gate, submit,
// confirm and post-conditions. The returned error is set only for
// loss-limit hard failures; disqualification and submission failures are
// reported through the returned ExecutionRecord's Outcome.
func (e *Executor) Execute(ctx context.Context, opp evmarb.Opportunity) (evmarb.ExecutionRecord, error) {
	now := time.Now()
	rec := evmarb.ExecutionRecord{
		OpportunityID: opp.ID,
		ChainID:       e.chainID,
		SubmittedAt:   now,
	}

	minProfit := minProfitAfterSlippage(opp.ExpectedProfit, e.cfg.MaxSlippageBps)
	params := executeArbitrageParams{
		FlashToken:  opp.InputToken,
		FlashAmount: opp.InputAmount,
		Swaps:       toSwapTuples(opp.Steps),
		MinProfit:   minProfit,
	}

	if e.cfg.SimulateBeforeExecute {
		if _, err := e.contract.Call(ctx, &e.from, "executeArbitrage", params); err != nil {
			e.logger.Debug("simulation reverted, disqualifying", zap.String("opportunity", string(opp.ID)), zap.Error(err))
			rec.Outcome = evmarb.ExecutionOutcomeDisqualified
			rec.ErrorKind = "simulation_revert"
			e.record(rec)
			return rec, nil
		}
	}

	gasEstimate, err := e.contract.EstimateGas(ctx, e.from, "executeArbitrage", params)
	if err != nil {
		rec.Outcome = evmarb.ExecutionOutcomeDisqualified
		rec.ErrorKind = "gas_estimate_failed"
		e.record(rec)
		return rec, nil
	}
	rec.GasUsed = gasEstimate

	gasPrice, err := e.gas.GasPrice(ctx)
	if err != nil {
		rec.Outcome = evmarb.ExecutionOutcomeDisqualified
		rec.ErrorKind = "gas_price_unavailable"
		e.record(rec)
		return rec, nil
	}

	gasCost := new(big.Int).Mul(new(big.Int).SetUint64(gasEstimate), gasPrice)
	if exceedsProfitRatio(gasCost, opp.ExpectedProfit, e.cfg.GasCostProfitRatio) {
		e.logger.Debug("gas cost exceeds profit threshold, disqualifying",
			zap.String("opportunity", string(opp.ID)), zap.String("gasCost", gasCost.String()))
		rec.Outcome = evmarb.ExecutionOutcomeDisqualified
		rec.ErrorKind = "gas_cost_exceeds_profit"
		e.record(rec)
		return rec, nil
	}

	if e.cfg.MaxGasPriceWei != nil && gasPrice.Cmp(e.cfg.MaxGasPriceWei) > 0 {
		rec.Outcome = evmarb.ExecutionOutcomeDisqualified
		rec.ErrorKind = "gas_price_ceiling"
		e.record(rec)
		return rec, nil
	}

	if e.cfg.DryRun {
		rec.Outcome = evmarb.ExecutionOutcomeDryRun
		rec.TxHash = dryRunSentinelHash
		rec.ActualProfit = opp.ExpectedProfit
		rec.ConfirmedAt = time.Now()
		e.record(rec)
		return rec, nil
	}

	sendTarget := e.contract
	if e.privateContract != nil {
		sendTarget = e.privateContract
	}

	nonce := e.nonces.Reserve()
	tx, err := sendTarget.Send(ctx, e.pk, nonce, gasPrice, gasEstimate, "executeArbitrage", params)
	if err != nil && isNonceConflict(err) && e.cfg.ResyncNonce != nil {
		// One retry after resyncing from the chain; a second conflict is a
		// trade failure like any other.
		observed, resyncErr := e.cfg.ResyncNonce(ctx)
		if resyncErr != nil {
			e.logger.Warn("nonce resync failed", zap.Error(resyncErr))
		} else {
			e.nonces.Resync(observed)
			nonce = e.nonces.Reserve()
			tx, err = sendTarget.Send(ctx, e.pk, nonce, gasPrice, gasEstimate, "executeArbitrage", params)
		}
	}
	if err != nil {
		e.nonces.Rollback(nonce)
		e.logger.Warn("submission failed", zap.String("opportunity", string(opp.ID)), zap.Error(err))
		rec.Outcome = evmarb.ExecutionOutcomeSubmissionFailed
		rec.ErrorKind = "submission_failed"
		e.record(rec)
		return rec, nil
	}
	rec.TxHash = tx.Hash()

	receipt, err := e.confirmer.WaitForTransaction(tx.Hash())
	if err != nil {
		rec.Outcome = evmarb.ExecutionOutcomeSubmissionFailed
		rec.ErrorKind = "confirmation_timeout"
		e.record(rec)
		return rec, nil
	}
	rec.ConfirmedAt = time.Now()
	rec.BlockNumber = receipt.BlockNumber.Uint64()
	rec.GasUsed = receipt.GasUsed

	if receipt.Status != types.ReceiptStatusSuccessful {
		return e.handlePostSubmitRevert(ctx, rec, receipt, gasPrice)
	}

	rec.Outcome = evmarb.ExecutionOutcomeSuccess
	rec.ActualProfit = opp.ExpectedProfit
	e.record(rec)
	return rec, nil
}

// handlePostSubmitRevert charges the gas spent on a reverted submission
// as a realized loss against the per-tx and daily ceilings. The loss is
// added to the daily accumulator before either ceiling is checked; a
// per-tx breach is reported ahead of a daily one.
func (e *Executor) handlePostSubmitRevert(ctx context.Context, rec evmarb.ExecutionRecord, receipt *types.Receipt, gasPrice *big.Int) (evmarb.ExecutionRecord, error) {
	rec.Outcome = evmarb.ExecutionOutcomeReverted
	rec.ErrorKind = "post_submit_revert"

	loss := new(big.Int).Mul(new(big.Int).SetUint64(receipt.GasUsed), gasPrice)
	rec.ActualProfit = new(big.Int).Neg(loss)
	e.record(rec)

	var perTxErr error
	if e.cfg.PerTxLossLimitWei != nil && loss.Cmp(e.cfg.PerTxLossLimitWei) >= 0 {
		perTxErr = fmt.Errorf("%w: lost %s wei on opportunity %s", ErrPerTxLossLimitBreached, loss.String(), rec.OpportunityID)
	}

	if e.recorder == nil {
		return rec, perTxErr
	}

	now := time.Now()
	acc, err := e.recorder.LoadDailyLoss(e.chainID, now)
	if err != nil {
		e.logger.Warn("failed to load daily loss accumulator", zap.Error(err))
		return rec, perTxErr
	}
	acc.Rollover(now)
	acc.Add(loss)
	if err := e.recorder.SaveDailyLoss(e.chainID, acc); err != nil {
		e.logger.Warn("failed to persist daily loss accumulator", zap.Error(err))
	}

	if perTxErr != nil {
		return rec, perTxErr
	}
	if e.cfg.DailyLossLimitWei != nil && acc.Breached(e.cfg.DailyLossLimitWei) {
		if e.pauseFn != nil {
			e.pauseFn(e.chainID, "daily loss limit breached")
		}
		return rec, fmt.Errorf("%w: running loss %s wei", ErrDailyLossLimitBreached, acc.RunningLoss.String())
	}

	return rec, nil
}

func (e *Executor) record(rec evmarb.ExecutionRecord) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.RecordExecution(rec); err != nil {
		e.logger.Warn("failed to persist execution record", zap.String("opportunity", string(rec.OpportunityID)), zap.Error(err))
	}
}

// minProfitAfterSlippage computes expected_profit * (1 - slippageBps/10000),
// the minProfit floor the contract enforces on-chain.
func minProfitAfterSlippage(expectedProfit *big.Int, slippageBps int) *big.Int {
	if expectedProfit == nil {
		return big.NewInt(0)
	}
	factor := big.NewInt(int64(10000 - slippageBps))
	out := new(big.Int).Mul(expectedProfit, factor)
	return out.Div(out, big.NewInt(10000))
}

// exceedsProfitRatio reports whether gasCost exceeds profit by more than
// ratio (e.g. ratio 0.5 disqualifies once gasCost > 1.5x profit).
func exceedsProfitRatio(gasCost, profit *big.Int, ratio float64) bool {
	if profit == nil || profit.Sign() <= 0 {
		return true
	}
	thresholdF := new(big.Float).Mul(new(big.Float).SetInt(profit), big.NewFloat(1+ratio))
	threshold, _ := thresholdF.Int(nil)
	return gasCost.Cmp(threshold) > 0
}

// isNonceConflict classifies a submission error as a nonce conflict, the
// one submission failure worth a resync-and-retry. Matching on the error
// text is unavoidable: the RPC surface carries no structured code for it.
func isNonceConflict(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "nonce too low") ||
		strings.Contains(msg, "nonce too high") ||
		strings.Contains(msg, "invalid nonce") ||
		strings.Contains(msg, "replacement transaction underpriced")
}

func toSwapTuples(steps []evmarb.SwapStep) []swapStepTuple {
	out := make([]swapStepTuple, len(steps))
	for i, s := range steps {
		out[i] = swapStepTuple{
			Router:   s.Router,
			TokenIn:  s.TokenIn,
			TokenOut: s.TokenOut,
			AmountIn: s.AmountIn,
			Data:     s.Data,
			DexType:  s.DexType,
		}
	}
	return out
}
