package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/layer-3/warden/adapters/store"
	"github.com/layer-3/warden/adapters/tokenizer"
	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testChainID = 1

type recordedEvent struct {
	kind      string
	accountID string
	detail    string
}

// recordingPublisher captures published events
type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
	err    error
}

func (p *recordingPublisher) record(kind, accountID, detail string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{kind, accountID, detail})
	return p.err
}

func (p *recordingPublisher) PublishRegistered(ctx context.Context, accountID, method string) error {
	return p.record("registered", accountID, method)
}

func (p *recordingPublisher) PublishLogin(ctx context.Context, accountID, method string) error {
	return p.record("login", accountID, method)
}

func (p *recordingPublisher) PublishLogout(ctx context.Context, accountID, tokenID string) error {
	return p.record("logout", accountID, tokenID)
}

func (p *recordingPublisher) PublishKeyRevoked(ctx context.Context, accountID, tokenHash string) error {
	return p.record("key_revoked", accountID, tokenHash)
}

func (p *recordingPublisher) kinds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	kinds := make([]string, len(p.events))
	for i, e := range p.events {
		kinds[i] = e.kind
	}
	return kinds
}

type testEnv struct {
	auth        *AuthService
	accounts    *store.MemoryAccountStore
	nonces      *store.MemoryNonceStore
	credentials *store.MemoryCredentialStore
	events      *recordingPublisher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	key, err := tokenizer.LoadOrGenerateKey("")
	require.NoError(t, err)

	env := &testEnv{
		accounts:    store.NewMemoryAccountStore(),
		nonces:      store.NewMemoryNonceStore(),
		credentials: store.NewMemoryCredentialStore(),
		events:      &recordingPublisher{},
	}
	env.auth = NewAuthService(
		env.accounts,
		env.nonces,
		env.credentials,
		tokenizer.NewJWTTokenizer(key),
		env.events,
		newMetrics(),
		zerolog.Nop(),
		Config{
			Chain:      core.Chain{ID: testChainID, Name: "Ethereum Mainnet"},
			NonceTTL:   5 * time.Minute,
			APIKeyTTL:  time.Hour,
			BcryptCost: bcrypt.MinCost,
		},
	)
	return env
}

func newMetrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry())
}
