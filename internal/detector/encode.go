package detector

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"

	evmarb "evmarb"
)

var (
	uint24Type, _ = abi.NewType("uint24", "", nil)
	int128Type, _ = abi.NewType("int128", "", nil)
	boolType, _   = abi.NewType("bool", "", nil)
)

// encodeSwapData builds the swap-step data blob the arbitrage contract
// expects per pool family: empty for v2, the uint24 fee tier for v3, the
// (int128,int128) coin indices for stable-curve, the bool stable flag for
// route-list.
func encodeSwapData(pool evmarb.Pool) ([]byte, error) {
	switch pool.Family {
	case evmarb.DexFamilyV2ConstantProduct:
		return nil, nil
	case evmarb.DexFamilyV3Concentrated:
		// uint24 has no native Go width, so go-ethereum packs it from a
		// *big.Int rather than a uint32.
		args := abi.Arguments{{Type: uint24Type}}
		return args.Pack(new(big.Int).SetUint64(uint64(pool.FeeBps)))
	case evmarb.DexFamilyStableCurve:
		var idx0, idx1 int8
		if pool.Stable != nil {
			idx0, idx1 = pool.Stable.CoinIndex0, pool.Stable.CoinIndex1
		}
		args := abi.Arguments{{Type: int128Type}, {Type: int128Type}}
		return args.Pack(big.NewInt(int64(idx0)), big.NewInt(int64(idx1)))
	case evmarb.DexFamilyRouteList:
		stable := pool.Route != nil && pool.Route.IsStablePair
		args := abi.Arguments{{Type: boolType}}
		return args.Pack(stable)
	default:
		return nil, errUnknownFamilyForEncoding(pool.Family)
	}
}

func errUnknownFamilyForEncoding(f evmarb.DexFamily) error {
	return unknownFamilyError{family: f}
}

type unknownFamilyError struct{ family evmarb.DexFamily }

func (e unknownFamilyError) Error() string {
	return "detector: cannot encode swap data for unknown dex family " + e.family.String()
}
