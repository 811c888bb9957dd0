package registry

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeV2SyncUnpacksReserves(t *testing.T) {
	data, err := v2SyncEventABI.Events["Sync"].Inputs.Pack(big.NewInt(100), big.NewInt(200))
	require.NoError(t, err)

	log := types.Log{Address: common.HexToAddress("0xPAIR"), Topics: []common.Hash{V2SyncTopic}, Data: data}

	r0, r1, err := DecodeV2Sync(log)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100), r0)
	assert.Equal(t, big.NewInt(200), r1)
}

func TestDecodeV3SwapUnpacksSqrtPriceAndLiquidity(t *testing.T) {
	nonIndexed := v3SwapEventABI.Events["Swap"].Inputs.NonIndexed()
	data, err := nonIndexed.Pack(big.NewInt(-1000), big.NewInt(900), big.NewInt(123456789), big.NewInt(55), big.NewInt(-200))
	require.NoError(t, err)

	log := types.Log{Address: common.HexToAddress("0xPOOL"), Topics: []common.Hash{V3SwapTopic}, Data: data}

	sqrtPrice, liquidity, err := DecodeV3Swap(log)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(123456789), sqrtPrice)
	assert.Equal(t, big.NewInt(55), liquidity)
}

func TestDecodeV2SyncRejectsMalformedPayload(t *testing.T) {
	log := types.Log{Address: common.HexToAddress("0xPAIR"), Data: []byte{0x01, 0x02}}

	_, _, err := DecodeV2Sync(log)
	assert.Error(t, err)
}
