// Package chainclient is the per-chain RPC + event-subscription
// abstraction: an HTTP client for view calls and submission, a WS client
// for log subscriptions, and a reconnect loop with capped exponential
// backoff that refreshes watched state before declaring itself healthy
// again.
package chainclient

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"evmarb"
)

const (
	initialReconnectDelay = time.Second
	maxReconnectDelay     = 30 * time.Second
)

// LogHandler receives one event delivery. The client does not decode
// ABI-specific payloads itself; it forwards raw logs plus block/log-index
// positioning, and the registry/mirror layer decodes them.
type LogHandler func(log types.Log)

// RefreshFunc performs the one-shot state refresh run after a reconnect,
// before the subscription is declared healthy again, so the Mirror cannot
// act on snapshots made stale during the outage.
type RefreshFunc func(ctx context.Context) error

// Client wraps one chain's HTTP and WS endpoints.
type Client struct {
	chainID evmarb.ChainID
	http    *ethclient.Client
	ws      *ethclient.Client
	logger  *zap.Logger
	nonces  *NonceManager
}

// Dial connects the HTTP and WS endpoints for chainID. Either may be left
// empty if that transport is not needed by the caller, but subscriptions
// require ws.
func Dial(ctx context.Context, chainID evmarb.ChainID, rpcURL, wsURL string, logger *zap.Logger) (*Client, error) {
	httpClient, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial rpc endpoint for chain %d: %w", chainID, err)
	}

	var wsClient *ethclient.Client
	if wsURL != "" {
		wsClient, err = ethclient.DialContext(ctx, wsURL)
		if err != nil {
			return nil, fmt.Errorf("failed to dial ws endpoint for chain %d: %w", chainID, err)
		}
	}

	return &Client{chainID: chainID, http: httpClient, ws: wsClient, logger: logger}, nil
}

// InitNonce seeds the single-writer nonce counter from the chain's current
// pending nonce for account.
func (c *Client) InitNonce(ctx context.Context, account common.Address) error {
	seed, err := c.http.PendingNonceAt(ctx, account)
	if err != nil {
		return fmt.Errorf("failed to read initial nonce for chain %d: %w", c.chainID, err)
	}
	c.nonces = NewNonceManager(seed)
	return nil
}

// Nonces returns the chain's single-writer nonce counter.
func (c *Client) Nonces() *NonceManager {
	return c.nonces
}

// HTTP exposes the underlying HTTP-transport client for view calls and
// transaction submission.
func (c *Client) HTTP() *ethclient.Client {
	return c.http
}

// GasPrice reports the chain's current suggested gas price.
func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	price, err := c.http.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read gas price for chain %d: %w", c.chainID, err)
	}
	return price, nil
}

// BlockNumber reports the chain's current head block.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	n, err := c.http.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read block number for chain %d: %w", c.chainID, err)
	}
	return n, nil
}

// Subscribe runs query against the WS endpoint, delivering each matched
// log to handler, and auto-reconnects with capped exponential backoff on
// drop. After each connect, the first included, it calls refresh before
// declaring the subscription healthy, so watched state is never stale
// after an outage. Subscribe blocks until ctx is canceled.
func (c *Client) Subscribe(ctx context.Context, query ethereum.FilterQuery, refresh RefreshFunc, handler LogHandler) error {
	if c.ws == nil {
		return errors.New("chainclient: no ws endpoint configured for subscriptions")
	}

	delay := initialReconnectDelay
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := c.subscribeOnce(ctx, query, refresh, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			c.logger.Warn("subscription dropped, reconnecting",
				zap.Uint64("chainId", uint64(c.chainID)), zap.Error(err), zap.Duration("delay", delay))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

func (c *Client) subscribeOnce(ctx context.Context, query ethereum.FilterQuery, refresh RefreshFunc, handler LogHandler) error {
	logsCh := make(chan types.Log, 256)
	sub, err := c.ws.SubscribeFilterLogs(ctx, query, logsCh)
	if err != nil {
		return fmt.Errorf("failed to subscribe on chain %d: %w", c.chainID, err)
	}
	defer sub.Unsubscribe()

	if refresh != nil {
		if err := refresh(ctx); err != nil {
			return fmt.Errorf("post-(re)connect refresh failed on chain %d: %w", c.chainID, err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-sub.Err():
			return err
		case l := <-logsCh:
			handler(l)
		}
	}
}
