package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/internal/eth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestRegisterAlice(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	require.NoError(t, env.auth.CreateInvite(ctx, "INV1"))

	cred, err := env.auth.Register(ctx, RegisterRequest{
		Username:        "alice",
		Password:        "abcd1234",
		ConfirmPassword: "abcd1234",
		InviteCode:      "INV1",
	})
	require.NoError(t, err)
	assert.True(t, cred.IsSession)
	assert.Nil(t, cred.ExpiresAt)
	assert.NotEmpty(t, cred.Token)

	invite, err := env.accounts.GetInvite(ctx, "INV1")
	require.NoError(t, err)
	assert.True(t, invite.Consumed)
	assert.Equal(t, cred.AccountID, invite.AccountID)

	account, err := env.accounts.GetAccount(ctx, cred.AccountID)
	require.NoError(t, err)
	assert.Equal(t, "alice", account.Username)
	assert.NotEqual(t, "abcd1234", account.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte("abcd1234")))

	authed, err := env.auth.Authenticate(ctx, cred.Token)
	require.NoError(t, err)
	assert.Equal(t, cred.ID, authed.ID)

	assert.Equal(t, []string{"registered", "login"}, env.events.kinds())
}

func TestInviteUsedOnce(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	require.NoError(t, env.auth.CreateInvite(ctx, "INV1"))

	_, err := env.auth.Register(ctx, RegisterRequest{Username: "alice", Password: "abcd1234", ConfirmPassword: "abcd1234", InviteCode: "INV1"})
	require.NoError(t, err)

	_, err = env.auth.Register(ctx, RegisterRequest{Username: "bob", Password: "abcd1234", ConfirmPassword: "abcd1234", InviteCode: "INV1"})
	assert.ErrorIs(t, err, core.ErrInvalidInvite)

	_, err = env.auth.RegisterWithAddress(ctx, walletAddress, "INV1")
	assert.ErrorIs(t, err, core.ErrInvalidInvite)
}

func TestConcurrentRegistrationsShareOneInvite(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	require.NoError(t, env.auth.CreateInvite(ctx, "INV1"))

	names := []string{"alice", "bob", "carol", "dave"}
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			_, err := env.auth.Register(ctx, RegisterRequest{Username: name, Password: "abcd1234", ConfirmPassword: "abcd1234", InviteCode: "INV1"})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}(name)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
}

func TestRegisterValidationStopsBeforeStore(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	require.NoError(t, env.auth.CreateInvite(ctx, "INV1"))

	_, err := env.auth.Register(ctx, RegisterRequest{Username: "alice", Password: "short1", ConfirmPassword: "short1", InviteCode: "INV1"})
	assert.True(t, core.IsValidationError(err))

	invite, err := env.accounts.GetInvite(ctx, "INV1")
	require.NoError(t, err)
	assert.False(t, invite.Consumed)
}

func TestPasswordLogin(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	require.NoError(t, env.auth.CreateInvite(ctx, "INV1"))
	_, err := env.auth.Register(ctx, RegisterRequest{Username: "Alice", Password: "abcd1234", ConfirmPassword: "abcd1234", InviteCode: "INV1"})
	require.NoError(t, err)

	cred, err := env.auth.LoginWithPassword(ctx, "ALICE", "abcd1234")
	require.NoError(t, err)
	assert.True(t, cred.IsSession)

	_, err = env.auth.LoginWithPassword(ctx, "alice", "abcd12345")
	assert.ErrorIs(t, err, core.ErrInvalidCredentials)

	_, err = env.auth.LoginWithPassword(ctx, "mallory", "abcd1234")
	assert.ErrorIs(t, err, core.ErrInvalidCredentials)
}

func signMessage(t *testing.T, message string) (address, signature string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	sig, err := eth.SignText(key, message)
	require.NoError(t, err)
	return crypto.PubkeyToAddress(key.PublicKey).Hex(), hexutil.Encode(sig)
}

func TestWalletLogin(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	require.NoError(t, env.auth.CreateInvite(ctx, "INV1"))

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()

	account, err := env.auth.RegisterWithAddress(ctx, address, "INV1")
	require.NoError(t, err)
	assert.True(t, account.HasWallet())

	req := nonceRequest()
	req.Address = address
	nonce, err := env.auth.GenerateNonce(ctx, req)
	require.NoError(t, err)

	sig, err := eth.SignText(key, nonce.Message)
	require.NoError(t, err)

	cred, err := env.auth.LoginWithSignature(ctx, address, hexutil.Encode(sig), "")
	require.NoError(t, err)
	assert.True(t, cred.IsSession)
	assert.Equal(t, account.ID, cred.AccountID)

	_, err = env.auth.LoginWithSignature(ctx, address, hexutil.Encode(sig), nonce.Message)
	assert.ErrorIs(t, err, core.ErrNonceAlreadyConsumed)
}

func TestWalletLoginBadSignatureKeepsNonce(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	require.NoError(t, env.auth.CreateInvite(ctx, "INV1"))

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()
	_, err = env.auth.RegisterWithAddress(ctx, address, "INV1")
	require.NoError(t, err)

	req := nonceRequest()
	req.Address = address
	nonce, err := env.auth.GenerateNonce(ctx, req)
	require.NoError(t, err)

	_, forged := signMessage(t, nonce.Message)
	_, err = env.auth.LoginWithSignature(ctx, address, forged, nonce.Message)
	assert.ErrorIs(t, err, core.ErrInvalidSignature)

	sig, err := eth.SignText(key, nonce.Message)
	require.NoError(t, err)
	_, err = env.auth.LoginWithSignature(ctx, address, hexutil.Encode(sig), nonce.Message)
	assert.NoError(t, err)
}

func TestWalletLoginUnknownAccount(t *testing.T) {
	env := newTestEnv(t)
	address, sig := signMessage(t, "hello")

	_, err := env.auth.LoginWithSignature(context.Background(), address, sig, "hello")
	assert.ErrorIs(t, err, core.ErrAccountNotFound)
}

func TestLogoutRevokesSession(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	require.NoError(t, env.auth.CreateInvite(ctx, "INV1"))

	cred, err := env.auth.Register(ctx, RegisterRequest{Username: "alice", Password: "abcd1234", ConfirmPassword: "abcd1234", InviteCode: "INV1"})
	require.NoError(t, err)

	require.NoError(t, env.auth.Logout(ctx, cred.Token))

	_, err = env.auth.Authenticate(ctx, cred.Token)
	assert.ErrorIs(t, err, core.ErrCredentialNotFound)
	assert.Contains(t, env.events.kinds(), "logout")
}

func TestAuthenticateRejectsExpiredKey(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	past := time.Now().Add(-time.Minute)
	token := core.APIKeyPrefix + "expired"
	require.NoError(t, env.credentials.SaveCredential(ctx, &core.Credential{
		ID:        "k1",
		TokenHash: core.HashToken(token),
		AccountID: "acct",
		CreatedAt: past.Add(-time.Hour),
		ExpiresAt: &past,
	}))

	_, err := env.auth.Authenticate(ctx, token)
	assert.ErrorIs(t, err, core.ErrCredentialExpired)

	_, err = env.auth.Authenticate(ctx, "")
	assert.ErrorIs(t, err, core.ErrInvalidToken)
}

func TestAuthenticateRejectsSessionOfOtherRecord(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	require.NoError(t, env.auth.CreateInvite(ctx, "INV1"))

	cred, err := env.auth.Register(ctx, RegisterRequest{Username: "alice", Password: "abcd1234", ConfirmPassword: "abcd1234", InviteCode: "INV1"})
	require.NoError(t, err)

	stored, err := env.credentials.GetCredential(ctx, cred.TokenHash)
	require.NoError(t, err)
	stored.AccountID = "someone-else"
	require.NoError(t, env.credentials.SaveCredential(ctx, stored))

	_, err = env.auth.Authenticate(ctx, cred.Token)
	assert.ErrorIs(t, err, core.ErrInvalidToken)
}

func TestCreateInviteTwice(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	require.NoError(t, env.auth.CreateInvite(ctx, "INV1"))
	assert.ErrorIs(t, env.auth.CreateInvite(ctx, "INV1"), core.ErrInvalidInvite)
	assert.True(t, core.IsValidationError(env.auth.CreateInvite(ctx, "")))
}

func TestLogoutRefusesAPIKey(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	require.NoError(t, env.auth.CreateInvite(ctx, "INV1"))

	session, err := env.auth.Register(ctx, RegisterRequest{Username: "alice", Password: "abcd1234", ConfirmPassword: "abcd1234", InviteCode: "INV1"})
	require.NoError(t, err)
	key, err := env.auth.CreateKey(ctx, session.AccountID, "deploy", core.ExpiryPermanent)
	require.NoError(t, err)

	err = env.auth.Logout(ctx, key.Token)
	assert.ErrorIs(t, err, core.ErrInvalidToken)

	_, err = env.credentials.GetCredential(ctx, key.TokenHash)
	assert.NoError(t, err)
	_, err = env.auth.Authenticate(ctx, session.Token)
	assert.NoError(t, err)
	assert.NotContains(t, env.events.kinds(), "logout")
}
