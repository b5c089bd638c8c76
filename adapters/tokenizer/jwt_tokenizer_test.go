package tokenizer

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/warden/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRoundTrip(t *testing.T) {
	key, err := LoadOrGenerateKey("")
	require.NoError(t, err)
	tok := NewJWTTokenizer(key)

	issued := time.Now().Truncate(time.Second)
	raw, err := tok.SessionToToken(&core.Session{ID: "cred-1", AccountID: "acct-1", IssuedAt: issued})
	require.NoError(t, err)

	session, err := tok.TokenToSession(raw)
	require.NoError(t, err)
	assert.Equal(t, "cred-1", session.ID)
	assert.Equal(t, "acct-1", session.AccountID)
	assert.True(t, issued.Equal(session.IssuedAt))
}

func TestTokenToSessionRejectsForeignKey(t *testing.T) {
	key, err := LoadOrGenerateKey("")
	require.NoError(t, err)
	other, err := LoadOrGenerateKey("")
	require.NoError(t, err)

	raw, err := NewJWTTokenizer(other).SessionToToken(&core.Session{ID: "c", AccountID: "a", IssuedAt: time.Now()})
	require.NoError(t, err)

	_, err = NewJWTTokenizer(key).TokenToSession(raw)
	assert.ErrorIs(t, err, core.ErrInvalidToken)
}

func TestTokenToSessionRejectsWrongAudience(t *testing.T) {
	key, err := LoadOrGenerateKey("")
	require.NoError(t, err)

	raw, err := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.RegisteredClaims{
		Subject:  "a",
		ID:       "c",
		Audience: jwt.ClaimStrings{"refresh"},
	}).SignedString(key)
	require.NoError(t, err)

	_, err = NewJWTTokenizer(key).TokenToSession(raw)
	assert.ErrorIs(t, err, core.ErrInvalidToken)
}

func TestLoadOrGenerateKeyFromFile(t *testing.T) {
	dir := t.TempDir()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	path := filepath.Join(dir, "signing.pem")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}), 0o600))

	loaded, err := LoadOrGenerateKey(path)
	require.NoError(t, err)
	assert.True(t, key.Equal(loaded))

	p384, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	require.NoError(t, err)
	der, err = x509.MarshalECPrivateKey(p384)
	require.NoError(t, err)
	badPath := filepath.Join(dir, "p384.pem")
	require.NoError(t, os.WriteFile(badPath, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der}), 0o600))

	_, err = LoadOrGenerateKey(badPath)
	assert.Error(t, err)

	_, err = LoadOrGenerateKey(filepath.Join(dir, "missing.pem"))
	assert.Error(t, err)
}
