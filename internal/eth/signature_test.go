package eth

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecoverAddress_RoundTrip(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	want := crypto.PubkeyToAddress(key.PublicKey)

	sig, err := SignText(key, "hello")
	require.NoError(t, err)
	assert.True(t, sig[64] == 27 || sig[64] == 28)

	got, err := RecoverAddress("hello", sig)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestVerifyPersonalSignature(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	addr := crypto.PubkeyToAddress(key.PublicKey).Hex()

	sig, err := SignText(key, "sign me")
	require.NoError(t, err)
	sigHex := hexutil.Encode(sig)

	t.Run("lower-cased claim", func(t *testing.T) {
		_, err := VerifyPersonalSignature("sign me", sigHex, strings.ToLower(addr))
		assert.NoError(t, err)
	})

	t.Run("different message", func(t *testing.T) {
		_, err := VerifyPersonalSignature("sign me too", sigHex, addr)
		assert.Error(t, err)
	})

	t.Run("not hex", func(t *testing.T) {
		_, err := VerifyPersonalSignature("sign me", "zz", addr)
		assert.ErrorIs(t, err, ErrMalformedSignature)
	})

	t.Run("short signature", func(t *testing.T) {
		_, err := VerifyPersonalSignature("sign me", hexutil.Encode(sig[:64]), addr)
		assert.ErrorIs(t, err, ErrMalformedSignature)
	})
}

func TestParseAddress(t *testing.T) {
	_, ok := ParseAddress("0x0000000000000000000000000000000000000001")
	assert.True(t, ok)

	_, ok = ParseAddress("not-an-address")
	assert.False(t, ok)
}
