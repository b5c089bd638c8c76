package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/ports"
)

// nonceRetention keeps expired or consumed nonces around long enough to report
// why a login was refused instead of a bare not-found
const nonceRetention = time.Minute

// MemoryNonceStore is an in-memory implementation of ports.NonceStore
type MemoryNonceStore struct {
	nonces map[string]core.Nonce
	mu     sync.Mutex
}

// NewMemoryNonceStore creates a new in-memory nonce store
func NewMemoryNonceStore() *MemoryNonceStore {
	return &MemoryNonceStore{
		nonces: make(map[string]core.Nonce),
	}
}

var _ ports.NonceStore = (*MemoryNonceStore)(nil)

// PutNonce stores a nonce, replacing any previous one for the same address
func (s *MemoryNonceStore) PutNonce(ctx context.Context, nonce *core.Nonce) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nonces[core.NormalizeAddress(nonce.Address)] = *nonce
	return nil
}

// GetNonce returns a copy of the stored nonce
func (s *MemoryNonceStore) GetNonce(ctx context.Context, address string) (*core.Nonce, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nonce, ok := s.nonces[core.NormalizeAddress(address)]
	if !ok {
		return nil, core.ErrNonceNotFound
	}
	return &nonce, nil
}

// ConsumeNonce validates and marks the nonce under a single lock
func (s *MemoryNonceStore) ConsumeNonce(ctx context.Context, address, message string, now time.Time) (*core.Nonce, error) {
	key := core.NormalizeAddress(address)

	s.mu.Lock()
	defer s.mu.Unlock()

	nonce, ok := s.nonces[key]
	if !ok {
		return nil, core.ErrNonceNotFound
	}
	if nonce.Expired(now) {
		return nil, core.ErrNonceExpired
	}
	if nonce.Consumed {
		return nil, core.ErrNonceAlreadyConsumed
	}
	if nonce.Message != message {
		return nil, core.ErrNonceMismatch
	}

	nonce.Consumed = true
	s.nonces[key] = nonce
	return &nonce, nil
}

// Evict drops nonces whose retention window has passed and returns how many were removed
func (s *MemoryNonceStore) Evict(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, nonce := range s.nonces {
		if now.After(nonce.ExpiresAt.Add(nonceRetention)) {
			delete(s.nonces, key)
			removed++
		}
	}
	return removed
}

// Run evicts stale nonces every interval until ctx is done
func (s *MemoryNonceStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Evict(now)
		}
	}
}

// MemoryCredentialStore is an in-memory implementation of ports.CredentialStore
type MemoryCredentialStore struct {
	credentials map[string]core.Credential
	byAccount   map[string][]string
	mu          sync.RWMutex
}

// NewMemoryCredentialStore creates a new in-memory credential store
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{
		credentials: make(map[string]core.Credential),
		byAccount:   make(map[string][]string),
	}
}

var _ ports.CredentialStore = (*MemoryCredentialStore)(nil)

// SaveCredential stores a credential without its plaintext token
func (s *MemoryCredentialStore) SaveCredential(ctx context.Context, cred *core.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *cred
	stored.Token = ""
	if _, exists := s.credentials[stored.TokenHash]; !exists {
		s.byAccount[stored.AccountID] = append(s.byAccount[stored.AccountID], stored.TokenHash)
	}
	s.credentials[stored.TokenHash] = stored
	return nil
}

// GetCredential looks a credential up by token hash
func (s *MemoryCredentialStore) GetCredential(ctx context.Context, tokenHash string) (*core.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, ok := s.credentials[tokenHash]
	if !ok {
		return nil, core.ErrCredentialNotFound
	}
	return &cred, nil
}

// ListCredentials returns the account's credentials in the order they were saved
func (s *MemoryCredentialStore) ListCredentials(ctx context.Context, accountID string) ([]*core.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hashes := s.byAccount[accountID]
	creds := make([]*core.Credential, 0, len(hashes))
	for _, hash := range hashes {
		cred := s.credentials[hash]
		creds = append(creds, &cred)
	}
	return creds, nil
}

// DeleteCredential removes a credential if it exists and belongs to accountID
func (s *MemoryCredentialStore) DeleteCredential(ctx context.Context, accountID, tokenHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, ok := s.credentials[tokenHash]
	if !ok || cred.AccountID != accountID {
		return false, nil
	}
	delete(s.credentials, tokenHash)

	hashes := s.byAccount[accountID]
	for i, hash := range hashes {
		if hash == tokenHash {
			s.byAccount[accountID] = append(hashes[:i:i], hashes[i+1:]...)
			break
		}
	}
	if len(s.byAccount[accountID]) == 0 {
		delete(s.byAccount, accountID)
	}
	return true, nil
}

// MemoryAccountStore is an in-memory implementation of ports.AccountStore
type MemoryAccountStore struct {
	accounts map[string]core.Account
	invites  map[string]core.InviteCode
	mu       sync.RWMutex
}

// NewMemoryAccountStore creates a new in-memory account store
func NewMemoryAccountStore() *MemoryAccountStore {
	return &MemoryAccountStore{
		accounts: make(map[string]core.Account),
		invites:  make(map[string]core.InviteCode),
	}
}

var _ ports.AccountStore = (*MemoryAccountStore)(nil)

// CreateAccountWithInvite consumes the invite and stores the account under one lock
func (s *MemoryAccountStore) CreateAccountWithInvite(ctx context.Context, account *core.Account, inviteCode string) error {
	if err := account.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	invite, ok := s.invites[inviteCode]
	if !ok || invite.Consumed {
		return core.ErrInvalidInvite
	}

	for _, existing := range s.accounts {
		if account.Username != "" && existing.Username == account.Username {
			return core.ErrAccountExists
		}
		if account.WalletAddress != "" && existing.WalletAddress == account.WalletAddress {
			return core.ErrAccountExists
		}
	}

	now := account.CreatedAt
	invite.Consumed = true
	invite.AccountID = account.ID
	invite.ConsumedAt = &now
	s.invites[inviteCode] = invite
	s.accounts[account.ID] = *account
	return nil
}

// GetAccount returns an account by ID
func (s *MemoryAccountStore) GetAccount(ctx context.Context, id string) (*core.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[id]
	if !ok {
		return nil, core.ErrAccountNotFound
	}
	return &account, nil
}

// GetAccountByUsername returns the account registered under username
func (s *MemoryAccountStore) GetAccountByUsername(ctx context.Context, username string) (*core.Account, error) {
	return s.find(func(a core.Account) bool { return a.Username != "" && a.Username == username })
}

// GetAccountByAddress returns the account bound to a wallet address
func (s *MemoryAccountStore) GetAccountByAddress(ctx context.Context, address string) (*core.Account, error) {
	address = core.NormalizeAddress(address)
	return s.find(func(a core.Account) bool { return a.WalletAddress != "" && a.WalletAddress == address })
}

func (s *MemoryAccountStore) find(match func(core.Account) bool) (*core.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, account := range s.accounts {
		if match(account) {
			return &account, nil
		}
	}
	return nil, core.ErrAccountNotFound
}

// CreateInvite stores a new unconsumed invite code
func (s *MemoryAccountStore) CreateInvite(ctx context.Context, invite *core.InviteCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.invites[invite.Code]; exists {
		return core.ErrInvalidInvite
	}
	s.invites[invite.Code] = *invite
	return nil
}

// GetInvite returns an invite code
func (s *MemoryAccountStore) GetInvite(ctx context.Context, code string) (*core.InviteCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	invite, ok := s.invites[code]
	if !ok {
		return nil, core.ErrInvalidInvite
	}
	return &invite, nil
}
