package evmexact

import (
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAuth() Authorization {
	return Authorization{
		From:        "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
		To:          "0x742d35Cc6634C0532925a3b844Bc9e7595f00bEb",
		Value:       "10000",
		ValidAfter:  "1700000000",
		ValidBefore: "1700000300",
		Nonce:       "0xab" + strings.Repeat("00", 31),
	}
}

func TestHashAuthorizationIsDeterministic(t *testing.T) {
	auth := testAuth()
	chainID := big.NewInt(8453)

	first, err := HashAuthorization(auth, chainID, "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", "USD Coin", "2")
	require.NoError(t, err)
	second, err := HashAuthorization(auth, chainID, "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", "USD Coin", "2")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, 32)
}

func TestHashAuthorizationChangesWithChainID(t *testing.T) {
	auth := testAuth()
	auth.From = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

	onBase, err := HashAuthorization(auth, big.NewInt(8453), "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", "USD Coin", "2")
	require.NoError(t, err)
	onMainnet, err := HashAuthorization(auth, big.NewInt(1), "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", "USD Coin", "2")
	require.NoError(t, err)

	assert.NotEqual(t, onBase, onMainnet)
}

func TestHashAuthorizationRejectsInvalidValue(t *testing.T) {
	auth := testAuth()
	auth.From = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	auth.Value = "not-a-number"

	_, err := HashAuthorization(auth, big.NewInt(8453), "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", "USD Coin", "2")
	require.Error(t, err)
}
