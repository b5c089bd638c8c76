package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/internal/eth"
	"github.com/layer-3/warden/internal/metrics"
	"github.com/layer-3/warden/ports"
	"github.com/rs/zerolog"
)

// Login and registration methods reported in events and metrics
const (
	MethodPassword = "password"
	MethodWallet   = "wallet"
)

// Config holds the tunables of the auth service
type Config struct {
	Chain      core.Chain
	NonceTTL   time.Duration
	APIKeyTTL  time.Duration
	BcryptCost int
}

// AuthService handles authentication business logic
type AuthService struct {
	accounts    ports.AccountStore
	credentials ports.CredentialStore
	tokenizer   ports.Tokenizer
	eventPub    ports.EventPublisher
	metrics     *metrics.Metrics
	logger      zerolog.Logger
	chain       core.Chain

	nonces    *NonceBroker
	verifier  SignatureVerifier
	passwords *PasswordStore
	sessions  *SessionIssuer
	keys      *APIKeyManager
}

// NewAuthService creates a new authentication service
func NewAuthService(
	accounts ports.AccountStore,
	nonces ports.NonceStore,
	credentials ports.CredentialStore,
	tokenizer ports.Tokenizer,
	eventPub ports.EventPublisher,
	m *metrics.Metrics,
	logger zerolog.Logger,
	cfg Config,
) *AuthService {
	logger = logger.With().Str("component", "auth").Logger()

	return &AuthService{
		accounts:    accounts,
		credentials: credentials,
		tokenizer:   tokenizer,
		eventPub:    eventPub,
		metrics:     m,
		logger:      logger,
		chain:       cfg.Chain,
		nonces:      NewNonceBroker(nonces, cfg.Chain.ID, cfg.NonceTTL, m),
		passwords:   NewPasswordStore(accounts, cfg.BcryptCost),
		sessions:    NewSessionIssuer(tokenizer),
		keys:        NewAPIKeyManager(credentials, eventPub, m, logger, cfg.APIKeyTTL),
	}
}

// Register creates a password account and signs it in
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*core.Credential, error) {
	account, err := s.passwords.Register(ctx, req)
	if err != nil {
		return nil, err
	}

	s.registered(ctx, account, MethodPassword)
	return s.startSession(ctx, account, MethodPassword)
}

// LoginWithPassword signs a password account in
func (s *AuthService) LoginWithPassword(ctx context.Context, username, password string) (*core.Credential, error) {
	account, err := s.passwords.Authenticate(ctx, username, password)
	if err != nil {
		s.metrics.Logins.WithLabelValues(MethodPassword, "failure").Inc()
		return nil, err
	}
	return s.startSession(ctx, account, MethodPassword)
}

// RegisterWithAddress creates an account bound to a wallet address
func (s *AuthService) RegisterWithAddress(ctx context.Context, address, inviteCode string) (*core.Account, error) {
	addr, ok := eth.ParseAddress(address)
	if !ok {
		return nil, core.ErrInvalidAddress
	}
	if inviteCode == "" {
		return nil, &core.ValidationError{Field: "inviteCode", Message: core.MsgInviteRequired}
	}

	account := &core.Account{
		ID:            uuid.New().String(),
		WalletAddress: core.NormalizeAddress(addr.Hex()),
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.accounts.CreateAccountWithInvite(ctx, account, inviteCode); err != nil {
		return nil, err
	}

	s.registered(ctx, account, MethodWallet)
	return account, nil
}

// Chain returns the network wallets must sign in on
func (s *AuthService) Chain() core.Chain {
	return s.chain
}

// GenerateNonce issues a sign-in challenge for a wallet address
func (s *AuthService) GenerateNonce(ctx context.Context, req NonceRequest) (*core.Nonce, error) {
	return s.nonces.RequestNonce(ctx, req)
}

// LoginWithSignature verifies a signed challenge and signs the wallet's account in.
// When message is empty the outstanding challenge for the address is assumed.
func (s *AuthService) LoginWithSignature(ctx context.Context, address, signature, message string) (*core.Credential, error) {
	cred, err := s.loginWithSignature(ctx, address, signature, message)
	if err != nil {
		s.metrics.Logins.WithLabelValues(MethodWallet, "failure").Inc()
		s.logger.Debug().Err(err).Str("address", address).Msg("wallet login refused")
		return nil, err
	}
	return cred, nil
}

func (s *AuthService) loginWithSignature(ctx context.Context, address, signature, message string) (*core.Credential, error) {
	if _, ok := eth.ParseAddress(address); !ok {
		return nil, core.ErrInvalidAddress
	}

	account, err := s.accounts.GetAccountByAddress(ctx, address)
	if err != nil {
		return nil, err
	}

	if message == "" {
		nonce, err := s.nonces.Lookup(ctx, address)
		if err != nil {
			return nil, err
		}
		message = nonce.Message
	}

	if _, err := s.verifier.Verify(message, signature, address); err != nil {
		return nil, err
	}

	if _, err := s.nonces.Consume(ctx, address, message); err != nil {
		return nil, err
	}

	return s.startSession(ctx, account, MethodWallet)
}

// Authenticate resolves a bearer token to its credential
func (s *AuthService) Authenticate(ctx context.Context, token string) (*core.Credential, error) {
	if token == "" {
		return nil, core.ErrInvalidToken
	}

	cred, err := s.credentials.GetCredential(ctx, core.HashToken(token))
	if err != nil {
		return nil, err
	}
	if cred.Expired(time.Now()) {
		return nil, core.ErrCredentialExpired
	}

	if cred.IsSession {
		session, err := s.tokenizer.TokenToSession(token)
		if err != nil {
			return nil, err
		}
		if session.ID != cred.ID || session.AccountID != cred.AccountID {
			return nil, core.ErrInvalidToken
		}
	}
	return cred, nil
}

// Logout revokes the session credential behind token. API keys are refused;
// they are removed through RevokeKey.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	cred, err := s.Authenticate(ctx, token)
	if err != nil {
		return err
	}
	if !cred.IsSession {
		return fmt.Errorf("%w: logout requires a session token", core.ErrInvalidToken)
	}

	if _, err := s.credentials.DeleteCredential(ctx, cred.AccountID, cred.TokenHash); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	s.metrics.CredentialsRemoved.WithLabelValues("logout").Inc()

	if err := s.eventPub.PublishLogout(ctx, cred.AccountID, cred.ID); err != nil {
		// Log the error but don't fail the logout operation
		s.logger.Warn().Err(err).Str("account_id", cred.AccountID).Msg("failed to publish logout event")
	}
	return nil
}

// CreateKey mints an API key for the account
func (s *AuthService) CreateKey(ctx context.Context, accountID, label string, policy core.ExpiryPolicy) (*core.Credential, error) {
	return s.keys.Create(ctx, accountID, label, policy)
}

// ListKeys lists the account's credentials
func (s *AuthService) ListKeys(ctx context.Context, accountID string, includeSession bool) ([]*core.Credential, error) {
	return s.keys.List(ctx, accountID, includeSession)
}

// RevokeKey removes one of the account's credentials
func (s *AuthService) RevokeKey(ctx context.Context, accountID, tokenOrHash string) (bool, error) {
	return s.keys.Revoke(ctx, accountID, tokenOrHash)
}

// SweepExpiredKeys removes the account's expired credentials, sparing the caller's session
func (s *AuthService) SweepExpiredKeys(ctx context.Context, accountID, activeSessionToken string) (core.SweepResult, error) {
	return s.keys.SweepExpired(ctx, accountID, activeSessionToken)
}

// CreateInvite registers an unconsumed invite code
func (s *AuthService) CreateInvite(ctx context.Context, code string) error {
	if code == "" {
		return &core.ValidationError{Field: "inviteCode", Message: core.MsgInviteRequired}
	}
	err := s.accounts.CreateInvite(ctx, &core.InviteCode{Code: code, CreatedAt: time.Now().UTC()})
	if errors.Is(err, core.ErrInvalidInvite) {
		return fmt.Errorf("invite %q already exists: %w", code, err)
	}
	return err
}

// startSession issues and stores a session credential; the returned credential
// still carries the plaintext token
func (s *AuthService) startSession(ctx context.Context, account *core.Account, method string) (*core.Credential, error) {
	cred, err := s.sessions.Issue(account)
	if err != nil {
		return nil, err
	}
	if err := s.credentials.SaveCredential(ctx, cred); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	s.metrics.Logins.WithLabelValues(method, "success").Inc()
	s.metrics.CredentialsCreated.WithLabelValues("session").Inc()

	if err := s.eventPub.PublishLogin(ctx, account.ID, method); err != nil {
		s.logger.Warn().Err(err).Str("account_id", account.ID).Msg("failed to publish login event")
	}
	return cred, nil
}

func (s *AuthService) registered(ctx context.Context, account *core.Account, method string) {
	s.metrics.Registrations.WithLabelValues(method).Inc()
	s.logger.Info().Str("account_id", account.ID).Str("method", method).Msg("account registered")

	if err := s.eventPub.PublishRegistered(ctx, account.ID, method); err != nil {
		s.logger.Warn().Err(err).Str("account_id", account.ID).Msg("failed to publish registration event")
	}
}
