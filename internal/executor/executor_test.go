package executor

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	evmarb "evmarb"
)

type fakeContract struct {
	callErr      error
	callCount    int
	estimateGas  uint64
	estimateErr  error
	sendErr      error
	sendErrQueue []error
	sendCalled   bool
	sendCount    int
	lastNonce    uint64
	calledMethod string
}

func (f *fakeContract) Call(ctx context.Context, from *common.Address, method string, args ...interface{}) ([]interface{}, error) {
	f.callCount++
	return nil, f.callErr
}

func (f *fakeContract) EstimateGas(ctx context.Context, from common.Address, method string, args ...interface{}) (uint64, error) {
	return f.estimateGas, f.estimateErr
}

func (f *fakeContract) Send(ctx context.Context, pk *ecdsa.PrivateKey, nonce uint64, gasPrice *big.Int, gasLimit uint64, method string, args ...interface{}) (*types.Transaction, error) {
	f.sendCalled = true
	f.sendCount++
	f.lastNonce = nonce
	f.calledMethod = method
	if len(f.sendErrQueue) > 0 {
		err := f.sendErrQueue[0]
		f.sendErrQueue = f.sendErrQueue[1:]
		if err != nil {
			return nil, err
		}
	} else if f.sendErr != nil {
		return nil, f.sendErr
	}
	tx := types.NewTx(&types.LegacyTx{Nonce: nonce, Gas: gasLimit, GasPrice: gasPrice})
	return tx, nil
}

type fakeGasPricer struct {
	price *big.Int
	err   error
}

func (f *fakeGasPricer) GasPrice(ctx context.Context) (*big.Int, error) { return f.price, f.err }

type fakeConfirmer struct {
	receipt *types.Receipt
	err     error
}

func (f *fakeConfirmer) WaitForTransaction(txHash common.Hash) (*types.Receipt, error) {
	return f.receipt, f.err
}

type fakeNonces struct {
	next       uint64
	rolledBack []uint64
}

func (f *fakeNonces) Reserve() uint64 {
	v := f.next
	f.next++
	return v
}
func (f *fakeNonces) Rollback(nonce uint64) { f.rolledBack = append(f.rolledBack, nonce) }
func (f *fakeNonces) Resync(observed uint64) { f.next = observed }

type fakeRecorder struct {
	records []evmarb.ExecutionRecord
	acc     evmarb.DailyLossAccumulator
}

func (f *fakeRecorder) RecordExecution(rec evmarb.ExecutionRecord) error {
	f.records = append(f.records, rec)
	return nil
}
func (f *fakeRecorder) LoadDailyLoss(chainID evmarb.ChainID, now time.Time) (evmarb.DailyLossAccumulator, error) {
	return f.acc, nil
}
func (f *fakeRecorder) SaveDailyLoss(chainID evmarb.ChainID, acc evmarb.DailyLossAccumulator) error {
	f.acc = acc
	return nil
}

func testOpportunity() evmarb.Opportunity {
	return evmarb.Opportunity{
		ID:             "opp-1",
		ChainID:        1,
		InputToken:     common.HexToAddress("0xIN"),
		InputAmount:    big.NewInt(1_000_000),
		ExpectedProfit: big.NewInt(10_000),
		Steps: []evmarb.SwapStep{
			{Router: common.HexToAddress("0xR1"), TokenIn: common.HexToAddress("0xIN"), TokenOut: common.HexToAddress("0xOUT"), AmountIn: big.NewInt(1_000_000), DexType: 0},
		},
	}
}

func newTestExecutor(t *testing.T, contract *fakeContract, gas *fakeGasPricer, confirmer *fakeConfirmer, recorder *fakeRecorder, cfg Config) (*Executor, *fakeNonces) {
	pk, err := crypto.GenerateKey()
	require.NoError(t, err)
	nonces := &fakeNonces{}
	var paused []string
	pauseFn := func(chainID evmarb.ChainID, reason string) { paused = append(paused, reason) }
	return New(1, contract, nil, gas, confirmer, nonces, recorder, pk, crypto.PubkeyToAddress(pk.PublicKey), cfg, pauseFn, zap.NewNop()), nonces
}

func TestExecuteDisqualifiesOnSimulationRevert(t *testing.T) {
	contract := &fakeContract{callErr: errors.New("execution reverted")}
	e, _ := newTestExecutor(t, contract, &fakeGasPricer{price: big.NewInt(1)}, &fakeConfirmer{}, &fakeRecorder{}, DefaultConfig())

	rec, err := e.Execute(context.Background(), testOpportunity())
	require.NoError(t, err)
	assert.Equal(t, evmarb.ExecutionOutcomeDisqualified, rec.Outcome)
	assert.Equal(t, "simulation_revert", rec.ErrorKind)
	assert.False(t, contract.sendCalled)
}

func TestExecuteDisqualifiesWhenGasCostExceedsProfitRatio(t *testing.T) {
	contract := &fakeContract{estimateGas: 1_000_000}
	e, _ := newTestExecutor(t, contract, &fakeGasPricer{price: big.NewInt(1_000_000)}, &fakeConfirmer{}, &fakeRecorder{}, DefaultConfig())

	rec, err := e.Execute(context.Background(), testOpportunity())
	require.NoError(t, err)
	assert.Equal(t, evmarb.ExecutionOutcomeDisqualified, rec.Outcome)
	assert.Equal(t, "gas_cost_exceeds_profit", rec.ErrorKind)
	assert.False(t, contract.sendCalled)
}

func TestExecuteDisqualifiesAboveMaxGasPrice(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxGasPriceWei = big.NewInt(100)
	contract := &fakeContract{estimateGas: 1}
	e, _ := newTestExecutor(t, contract, &fakeGasPricer{price: big.NewInt(1000)}, &fakeConfirmer{}, &fakeRecorder{}, cfg)

	rec, err := e.Execute(context.Background(), testOpportunity())
	require.NoError(t, err)
	assert.Equal(t, evmarb.ExecutionOutcomeDisqualified, rec.Outcome)
	assert.Equal(t, "gas_price_ceiling", rec.ErrorKind)
}

func TestExecuteDryRunSynthesizesSuccessWithoutSubmitting(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DryRun = true
	contract := &fakeContract{estimateGas: 1}
	e, _ := newTestExecutor(t, contract, &fakeGasPricer{price: big.NewInt(1)}, &fakeConfirmer{}, &fakeRecorder{}, cfg)

	rec, err := e.Execute(context.Background(), testOpportunity())
	require.NoError(t, err)
	assert.Equal(t, evmarb.ExecutionOutcomeDryRun, rec.Outcome)
	assert.Equal(t, dryRunSentinelHash, rec.TxHash)
	assert.False(t, contract.sendCalled)
}

func TestExecuteSuccessPathSubmitsAndConfirms(t *testing.T) {
	contract := &fakeContract{estimateGas: 1}
	confirmer := &fakeConfirmer{receipt: &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(100), GasUsed: 1}}
	recorder := &fakeRecorder{}
	e, nonces := newTestExecutor(t, contract, &fakeGasPricer{price: big.NewInt(1)}, confirmer, recorder, DefaultConfig())

	rec, err := e.Execute(context.Background(), testOpportunity())
	require.NoError(t, err)
	assert.Equal(t, evmarb.ExecutionOutcomeSuccess, rec.Outcome)
	assert.True(t, contract.sendCalled)
	assert.Equal(t, uint64(1), nonces.next)
	require.Len(t, recorder.records, 1)
	assert.Equal(t, evmarb.ExecutionOutcomeSuccess, recorder.records[0].Outcome)
}

func TestExecutePostSubmitRevertAccumulatesDailyLossAndPausesOnBreach(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DailyLossLimitWei = big.NewInt(5)
	contract := &fakeContract{estimateGas: 1}
	confirmer := &fakeConfirmer{receipt: &types.Receipt{Status: types.ReceiptStatusFailed, BlockNumber: big.NewInt(100), GasUsed: 10}}
	recorder := &fakeRecorder{}
	e, _ := newTestExecutor(t, contract, &fakeGasPricer{price: big.NewInt(1)}, confirmer, recorder, cfg)

	rec, err := e.Execute(context.Background(), testOpportunity())
	require.ErrorIs(t, err, ErrDailyLossLimitBreached)
	assert.Equal(t, evmarb.ExecutionOutcomeReverted, rec.Outcome)
	assert.True(t, recorder.acc.RunningLoss.Sign() > 0)
}

func TestExecutePostSubmitRevertHardFailsOnPerTxLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PerTxLossLimitWei = big.NewInt(5)
	contract := &fakeContract{estimateGas: 1}
	confirmer := &fakeConfirmer{receipt: &types.Receipt{Status: types.ReceiptStatusFailed, BlockNumber: big.NewInt(100), GasUsed: 10}}
	e, _ := newTestExecutor(t, contract, &fakeGasPricer{price: big.NewInt(1)}, confirmer, &fakeRecorder{}, cfg)

	_, err := e.Execute(context.Background(), testOpportunity())
	require.ErrorIs(t, err, ErrPerTxLossLimitBreached)
}

func TestExecuteSkipsSimulationWhenDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SimulateBeforeExecute = false
	contract := &fakeContract{callErr: errors.New("execution reverted"), estimateGas: 1}
	confirmer := &fakeConfirmer{receipt: &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(100), GasUsed: 1}}
	e, _ := newTestExecutor(t, contract, &fakeGasPricer{price: big.NewInt(1)}, confirmer, &fakeRecorder{}, cfg)

	rec, err := e.Execute(context.Background(), testOpportunity())
	require.NoError(t, err)
	assert.Equal(t, evmarb.ExecutionOutcomeSuccess, rec.Outcome)
	assert.Zero(t, contract.callCount, "simulation must not run when disabled")
	assert.True(t, contract.sendCalled)
}

func TestExecuteResyncsAndRetriesOnceOnNonceConflict(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ResyncNonce = func(ctx context.Context) (uint64, error) { return 7, nil }
	contract := &fakeContract{estimateGas: 1, sendErrQueue: []error{errors.New("nonce too low"), nil}}
	confirmer := &fakeConfirmer{receipt: &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(100), GasUsed: 1}}
	e, nonces := newTestExecutor(t, contract, &fakeGasPricer{price: big.NewInt(1)}, confirmer, &fakeRecorder{}, cfg)

	rec, err := e.Execute(context.Background(), testOpportunity())
	require.NoError(t, err)
	assert.Equal(t, evmarb.ExecutionOutcomeSuccess, rec.Outcome)
	assert.Equal(t, 2, contract.sendCount)
	assert.Equal(t, uint64(7), contract.lastNonce, "retry must use the resynced chain nonce")
	assert.Equal(t, uint64(8), nonces.next)
}

func TestExecuteSurfacesSecondNonceConflictAsTradeFailure(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ResyncNonce = func(ctx context.Context) (uint64, error) { return 7, nil }
	contract := &fakeContract{estimateGas: 1, sendErr: errors.New("nonce too low")}
	e, _ := newTestExecutor(t, contract, &fakeGasPricer{price: big.NewInt(1)}, &fakeConfirmer{}, &fakeRecorder{}, cfg)

	rec, err := e.Execute(context.Background(), testOpportunity())
	require.NoError(t, err)
	assert.Equal(t, evmarb.ExecutionOutcomeSubmissionFailed, rec.Outcome)
	assert.Equal(t, 2, contract.sendCount, "exactly one retry, never more")
}

func TestIsNonceConflict(t *testing.T) {
	assert.True(t, isNonceConflict(errors.New("nonce too low")))
	assert.True(t, isNonceConflict(errors.New("replacement transaction underpriced")))
	assert.False(t, isNonceConflict(errors.New("insufficient funds for gas * price + value")))
}

func TestMinProfitAfterSlippage(t *testing.T) {
	got := minProfitAfterSlippage(big.NewInt(10000), 100) // 1% slippage
	assert.Equal(t, big.NewInt(9900), got)
}

func TestExceedsProfitRatio(t *testing.T) {
	assert.True(t, exceedsProfitRatio(big.NewInt(151), big.NewInt(100), 0.5))
	assert.False(t, exceedsProfitRatio(big.NewInt(150), big.NewInt(100), 0.5))
}
