package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/ports"
	"golang.org/x/crypto/bcrypt"
)

// RegisterRequest is the input of a password registration
type RegisterRequest struct {
	Username        string
	Password        string
	ConfirmPassword string
	InviteCode      string
}

// PasswordStore registers and authenticates password accounts
type PasswordStore struct {
	accounts ports.AccountStore
	cost     int
	now      func() time.Time
}

// NewPasswordStore creates a password store hashing with the given bcrypt cost
func NewPasswordStore(accounts ports.AccountStore, cost int) *PasswordStore {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &PasswordStore{
		accounts: accounts,
		cost:     cost,
		now:      time.Now,
	}
}

// Register validates the request, hashes the password with a per-account salt
// and creates the account while consuming the invite
func (s *PasswordStore) Register(ctx context.Context, req RegisterRequest) (*core.Account, error) {
	if err := core.ValidateRegistration(req.Username, req.Password, req.ConfirmPassword, req.InviteCode); err != nil {
		return nil, err
	}

	// bcrypt draws a fresh random salt for every hash
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account := &core.Account{
		ID:           uuid.New().String(),
		Username:     strings.ToLower(req.Username),
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}

	if err := s.accounts.CreateAccountWithInvite(ctx, account, req.InviteCode); err != nil {
		return nil, err
	}
	return account, nil
}

// Authenticate checks a username/password pair
func (s *PasswordStore) Authenticate(ctx context.Context, username, password string) (*core.Account, error) {
	if username == "" || password == "" {
		return nil, core.ErrInvalidCredentials
	}

	account, err := s.accounts.GetAccountByUsername(ctx, strings.ToLower(username))
	if errors.Is(err, core.ErrAccountNotFound) {
		return nil, core.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if !account.HasPassword() {
		return nil, core.ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		return nil, core.ErrInvalidCredentials
	}
	return account, nil
}
