// Package executor runs the per-chain simulate-then-send state machine
// that consumes Opportunities dequeued from the Opportunity Pipeline and
// submits them to the deployed arbitrage contract: simulate via eth_call,
// gate on gas price, submit, await the receipt, then apply the loss
// ceilings to anything that reverted on-chain.
package executor

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// arbitrageContractABI is the deployed contract's fixed interface: a
// single entry point taking (flashToken, flashAmount, swaps[], minProfit)
// as one tuple argument, each swap a (router, tokenIn, tokenOut,
// amountIn, data, dexType) tuple. The contract flashloans flashToken,
// executes the swaps in order, and reverts unless it ends up at least
// minProfit ahead.
const arbitrageContractABI = `[{
	"name": "executeArbitrage",
	"type": "function",
	"stateMutability": "nonpayable",
	"inputs": [{
		"name": "params",
		"type": "tuple",
		"components": [
			{"name": "flashToken", "type": "address"},
			{"name": "flashAmount", "type": "uint256"},
			{"name": "swaps", "type": "tuple[]", "components": [
				{"name": "router", "type": "address"},
				{"name": "tokenIn", "type": "address"},
				{"name": "tokenOut", "type": "address"},
				{"name": "amountIn", "type": "uint256"},
				{"name": "data", "type": "bytes"},
				{"name": "dexType", "type": "uint8"}
			]},
			{"name": "minProfit", "type": "uint256"}
		]
	}],
	"outputs": []
}]`

// ParseArbitrageABI parses the fixed arbitrage-contract interface. Callers
// wire the result into internal/contractclient.New when constructing the
// Contract this package's Executor submits through.
func ParseArbitrageABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(arbitrageContractABI))
}

// swapStepTuple mirrors the contract's swap tuple. Field names are
// exported so go-ethereum's abi.Arguments.Pack can match them against the
// ABI component names (flashToken -> FlashToken, and so on).
type swapStepTuple struct {
	Router   common.Address
	TokenIn  common.Address
	TokenOut common.Address
	AmountIn *big.Int
	Data     []byte
	DexType  uint8
}

// executeArbitrageParams mirrors the contract's single tuple argument.
type executeArbitrageParams struct {
	FlashToken  common.Address
	FlashAmount *big.Int
	Swaps       []swapStepTuple
	MinProfit   *big.Int
}
