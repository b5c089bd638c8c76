package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/layer-3/warden/adapters/store"
	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/ports"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const accountID = "acct-1"

// flakyStore fails deletes of the listed hashes
type flakyStore struct {
	ports.CredentialStore
	failing map[string]bool
}

func (s *flakyStore) DeleteCredential(ctx context.Context, accountID, tokenHash string) (bool, error) {
	if s.failing[tokenHash] {
		return false, errors.New("storage unavailable")
	}
	return s.CredentialStore.DeleteCredential(ctx, accountID, tokenHash)
}

func newManager(credentials ports.CredentialStore, events *recordingPublisher) *APIKeyManager {
	return NewAPIKeyManager(credentials, events, newMetrics(), zerolog.Nop(), time.Hour)
}

func saveExpired(t *testing.T, credentials ports.CredentialStore, token string, isSession bool) *core.Credential {
	t.Helper()
	expired := time.Now().Add(-time.Minute)
	cred := &core.Credential{
		ID:        token,
		TokenHash: core.HashToken(token),
		AccountID: accountID,
		Label:     token,
		CreatedAt: expired.Add(-time.Hour),
		ExpiresAt: &expired,
		IsSession: isSession,
	}
	require.NoError(t, credentials.SaveCredential(context.Background(), cred))
	return cred
}

func TestCreateKey(t *testing.T) {
	ctx := context.Background()
	credentials := store.NewMemoryCredentialStore()
	m := newManager(credentials, &recordingPublisher{})

	ephemeral, err := m.Create(ctx, accountID, "ci", core.ExpiryEphemeral)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ephemeral.Token, core.APIKeyPrefix))
	assert.Len(t, ephemeral.Token, len(core.APIKeyPrefix)+43)
	assert.Equal(t, core.HashToken(ephemeral.Token), ephemeral.TokenHash)
	require.NotNil(t, ephemeral.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(time.Hour), *ephemeral.ExpiresAt, time.Minute)
	assert.False(t, ephemeral.IsSession)

	permanent, err := m.Create(ctx, accountID, "deploy", core.ExpiryPermanent)
	require.NoError(t, err)
	assert.Nil(t, permanent.ExpiresAt)
	assert.NotEqual(t, ephemeral.Token, permanent.Token)

	stored, err := credentials.GetCredential(ctx, permanent.TokenHash)
	require.NoError(t, err)
	assert.Empty(t, stored.Token)
	assert.Equal(t, "deploy", stored.Label)
}

func TestCreateKeyRejectsBadInput(t *testing.T) {
	m := newManager(store.NewMemoryCredentialStore(), &recordingPublisher{})

	_, err := m.Create(context.Background(), accountID, strings.Repeat("x", maxLabelLength+1), core.ExpiryPermanent)
	assert.True(t, core.IsValidationError(err))

	_, err = m.Create(context.Background(), accountID, "ci", core.ExpiryPolicy("forever"))
	assert.True(t, core.IsValidationError(err))
}

func TestListKeys(t *testing.T) {
	ctx := context.Background()
	credentials := store.NewMemoryCredentialStore()
	m := newManager(credentials, &recordingPublisher{})

	session := &core.Credential{ID: "s", TokenHash: core.HashToken("session"), AccountID: accountID, CreatedAt: time.Now(), IsSession: true}
	require.NoError(t, credentials.SaveCredential(ctx, session))
	first, err := m.Create(ctx, accountID, "first", core.ExpiryPermanent)
	require.NoError(t, err)
	second, err := m.Create(ctx, accountID, "second", core.ExpiryEphemeral)
	require.NoError(t, err)

	all, err := m.List(ctx, accountID, true)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{session.TokenHash, first.TokenHash, second.TokenHash}, hashes(all))

	keys, err := m.List(ctx, accountID, false)
	require.NoError(t, err)
	assert.Equal(t, []string{first.TokenHash, second.TokenHash}, hashes(keys))

	none, err := m.List(ctx, "nobody", true)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func hashes(creds []*core.Credential) []string {
	out := make([]string, len(creds))
	for i, cred := range creds {
		out[i] = cred.TokenHash
	}
	return out
}

func TestRevokeKey(t *testing.T) {
	ctx := context.Background()
	events := &recordingPublisher{}
	m := newManager(store.NewMemoryCredentialStore(), events)

	byToken, err := m.Create(ctx, accountID, "a", core.ExpiryPermanent)
	require.NoError(t, err)
	byHash, err := m.Create(ctx, accountID, "b", core.ExpiryPermanent)
	require.NoError(t, err)

	removed, err := m.Revoke(ctx, "intruder", byToken.Token)
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = m.Revoke(ctx, accountID, byToken.Token)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = m.Revoke(ctx, accountID, byHash.TokenHash)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = m.Revoke(ctx, accountID, byHash.TokenHash)
	require.NoError(t, err)
	assert.False(t, removed)

	assert.Equal(t, []string{"key_revoked", "key_revoked"}, events.kinds())
}

func TestSweepSparesActiveSession(t *testing.T) {
	ctx := context.Background()
	credentials := store.NewMemoryCredentialStore()
	m := newManager(credentials, &recordingPublisher{})

	permanent, err := m.Create(ctx, accountID, "permanent", core.ExpiryPermanent)
	require.NoError(t, err)
	saveExpired(t, credentials, "wdn_stale", false)
	active := saveExpired(t, credentials, "current-session", true)

	result, err := m.SweepExpired(ctx, accountID, "current-session")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Removed)
	assert.Empty(t, result.Failures)

	left, err := m.List(ctx, accountID, true)
	require.NoError(t, err)
	assert.Equal(t, []string{permanent.TokenHash, active.TokenHash}, hashes(left))
}

func TestSweepKeepsUnexpired(t *testing.T) {
	ctx := context.Background()
	m := newManager(store.NewMemoryCredentialStore(), &recordingPublisher{})

	_, err := m.Create(ctx, accountID, "fresh", core.ExpiryEphemeral)
	require.NoError(t, err)

	result, err := m.SweepExpired(ctx, accountID, "")
	require.NoError(t, err)
	assert.Zero(t, result.Removed)

	m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	result, err = m.SweepExpired(ctx, accountID, "")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Removed)
}

func TestSweepContinuesPastFailures(t *testing.T) {
	ctx := context.Background()
	memory := store.NewMemoryCredentialStore()
	broken := saveExpired(t, memory, "wdn_broken", false)
	saveExpired(t, memory, "wdn_one", false)
	saveExpired(t, memory, "wdn_two", false)

	credentials := &flakyStore{CredentialStore: memory, failing: map[string]bool{broken.TokenHash: true}}
	m := newManager(credentials, &recordingPublisher{})

	result, err := m.SweepExpired(ctx, accountID, "")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Removed)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, broken.TokenHash, result.Failures[0].TokenHash)
	assert.EqualError(t, result.Failures[0].Err, "storage unavailable")

	left, err := memory.ListCredentials(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, []string{broken.TokenHash}, hashes(left))
}

func TestConcurrentSweepAndRevokeCountOnce(t *testing.T) {
	ctx := context.Background()
	credentials := store.NewMemoryCredentialStore()
	m := newManager(credentials, &recordingPublisher{})
	stale := saveExpired(t, credentials, "wdn_stale", false)

	var (
		wg      sync.WaitGroup
		revoked bool
		swept   core.SweepResult
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		revoked, _ = m.Revoke(ctx, accountID, stale.TokenHash)
	}()
	go func() {
		defer wg.Done()
		swept, _ = m.SweepExpired(ctx, accountID, "")
	}()
	wg.Wait()

	removals := swept.Removed
	if revoked {
		removals++
	}
	assert.Equal(t, 1, removals)
}

func TestSweepStopsOnCancelledContext(t *testing.T) {
	credentials := store.NewMemoryCredentialStore()
	m := newManager(credentials, &recordingPublisher{})
	saveExpired(t, credentials, "wdn_stale", false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.SweepExpired(ctx, accountID, "")
	assert.ErrorIs(t, err, context.Canceled)
}
