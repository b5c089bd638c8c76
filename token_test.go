package warden

import (
	"testing"
	"time"

	"github.com/layer-3/warden/adapters/tokenizer"
	"github.com/layer-3/warden/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSessionToken(t *testing.T) {
	key, err := tokenizer.LoadOrGenerateKey("")
	require.NoError(t, err)

	raw, err := tokenizer.NewJWTTokenizer(key).SessionToToken(&core.Session{ID: "cred-1", AccountID: "acct-1", IssuedAt: time.Now()})
	require.NoError(t, err)

	token, err := ParseToken(raw)
	require.NoError(t, err)
	assert.Equal(t, TokenKindSession, token.Kind())
	assert.Equal(t, "acct-1", token.AccountID())
	assert.Equal(t, "cred-1", token.SessionID())
	assert.Equal(t, core.HashToken(raw), token.Hash())
	assert.False(t, token.IssuedAt().IsZero())
}

func TestParseAPIKey(t *testing.T) {
	token, err := ParseToken(core.APIKeyPrefix + "abc")
	require.NoError(t, err)
	assert.Equal(t, TokenKindAPIKey, token.Kind())
	assert.Empty(t, token.AccountID())
	assert.True(t, token.IssuedAt().IsZero())
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	_, err := ParseToken("not-a-token")
	assert.ErrorIs(t, err, ErrMalformedToken)
}
