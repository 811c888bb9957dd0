// Package oracle defines the side price-oracle collaborator: an optional
// external price source the Opportunity Pipeline uses for USD profit
// filtering, falling back to native-token units if the oracle is
// unavailable.
package oracle

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"

	evmarb "evmarb"
)

// ErrUnavailable is returned by a PriceOracle that cannot currently
// price a token; callers fall back to native-token units rather than
// treating this as fatal.
var ErrUnavailable = errors.New("oracle: price unavailable")

// PriceOracle reports the USD value of one unit (10^decimals base units)
// of token on chainID.
type PriceOracle interface {
	USDPrice(ctx context.Context, chainID evmarb.ChainID, token common.Address) (float64, error)
}

// Noop always reports ErrUnavailable, the default when no external price
// feed is configured; the pipeline treats this the same as any other
// oracle failure.
type Noop struct{}

func (Noop) USDPrice(ctx context.Context, chainID evmarb.ChainID, token common.Address) (float64, error) {
	return 0, ErrUnavailable
}
