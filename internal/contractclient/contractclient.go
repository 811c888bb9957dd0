// Package contractclient wraps a single deployed contract behind the
// narrow Call/Send surface the rest of the core depends on: pack the
// method arguments against the parsed ABI, run the view call or sign and
// submit the transaction, unpack the result.
package contractclient

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Backend is the subset of *ethclient.Client this package needs,
// narrowed so tests can stub the transport.
type Backend interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// Client is a thin, ABI-aware wrapper over one contract address.
type Client struct {
	backend Backend
	address common.Address
	abi     abi.ABI
}

// New constructs a Client bound to address using the parsed abi.
func New(backend Backend, address common.Address, parsedABI abi.ABI) *Client {
	return &Client{backend: backend, address: address, abi: parsedABI}
}

// Abi returns the parsed ABI backing this client.
func (c *Client) Abi() abi.ABI {
	return c.abi
}

// ContractAddress returns the bound contract address.
func (c *Client) ContractAddress() common.Address {
	return c.address
}

// Call performs a read-only view call and unpacks the result into Go
// values. from may be nil for calls whose result does not depend on the
// caller.
func (c *Client) Call(ctx context.Context, from *common.Address, method string, args ...interface{}) ([]interface{}, error) {
	input, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack call %s: %w", method, err)
	}

	msg := ethereum.CallMsg{To: &c.address, Data: input}
	if from != nil {
		msg.From = *from
	}

	output, err := c.backend.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s on %s: %w", method, c.address, err)
	}

	values, err := c.abi.Unpack(method, output)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack call result for %s: %w", method, err)
	}
	return values, nil
}

// Send signs and submits a transaction invoking method. Gas price and
// nonce are explicit arguments so the single-writer-per-chain executor
// controls submission ordering.
func (c *Client) Send(ctx context.Context, pk *ecdsa.PrivateKey, nonce uint64, gasPrice *big.Int, gasLimit uint64, method string, args ...interface{}) (*types.Transaction, error) {
	input, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack send %s: %w", method, err)
	}

	chainID, err := c.backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read chain id: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &c.address,
		Value:    big.NewInt(0),
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     input,
	})

	signer := types.LatestSignerForChainID(chainID)
	signedTx, err := types.SignTx(tx, signer, pk)
	if err != nil {
		return nil, fmt.Errorf("failed to sign %s transaction: %w", method, err)
	}

	if err := c.backend.SendTransaction(ctx, signedTx); err != nil {
		return nil, fmt.Errorf("failed to submit %s transaction: %w", method, err)
	}
	return signedTx, nil
}

// EstimateGas estimates gas for method the way the executor's gas gate
// does before submission.
func (c *Client) EstimateGas(ctx context.Context, from common.Address, method string, args ...interface{}) (uint64, error) {
	input, err := c.abi.Pack(method, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to pack estimate %s: %w", method, err)
	}
	return c.backend.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &c.address, Data: input})
}

// AddressFromPrivateKey recovers the wallet's own address from its
// signing key.
func AddressFromPrivateKey(pk *ecdsa.PrivateKey) common.Address {
	return crypto.PubkeyToAddress(pk.PublicKey)
}
