package eth

import (
	"crypto/ecdsa"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cura-labs/cura/core"
)

func signText(t *testing.T, key *ecdsa.PrivateKey, message string) string {
	t.Helper()
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	require.NoError(t, err)
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig)
}

func TestVerifier_Verify(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()

	other, err := crypto.GenerateKey()
	require.NoError(t, err)

	message := "Sign in to Cura"
	v := NewVerifier()

	t.Run("valid checksum address", func(t *testing.T) {
		assert.NoError(t, v.Verify(message, signText(t, key, message), address))
	})

	t.Run("valid lowercase address", func(t *testing.T) {
		assert.NoError(t, v.Verify(message, signText(t, key, message), strings.ToLower(address)))
	})

	t.Run("different message", func(t *testing.T) {
		err := v.Verify("something else", signText(t, key, message), address)
		assert.ErrorIs(t, err, core.ErrInvalidSignature)
	})

	t.Run("different signer", func(t *testing.T) {
		err := v.Verify(message, signText(t, other, message), address)
		assert.ErrorIs(t, err, core.ErrInvalidSignature)
	})

	t.Run("not hex", func(t *testing.T) {
		assert.ErrorIs(t, v.Verify(message, "zz", address), core.ErrInvalidSignature)
	})

	t.Run("short signature", func(t *testing.T) {
		assert.ErrorIs(t, v.Verify(message, "0x1234", address), core.ErrInvalidSignature)
	})

	t.Run("bad address", func(t *testing.T) {
		assert.ErrorIs(t, v.Verify(message, signText(t, key, message), "0x1234"), core.ErrInvalidAddress)
	})
}

func TestIsAddress(t *testing.T) {
	assert.True(t, IsAddress("0xAbC0000000000000000000000000000000000001"))
	assert.False(t, IsAddress("AbC0000000000000000000000000000000000001"))
	assert.False(t, IsAddress("0x123"))
	assert.False(t, IsAddress("0xZZC0000000000000000000000000000000000001"))
}
