package core

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Account is an identity bound to a username/password pair, a wallet address, or both
type Account struct {
	ID            string    // Unique account identifier
	Username      string    // Lower-cased login name, empty for wallet-only accounts
	PasswordHash  string    // bcrypt hash of the password
	WalletAddress string    // Lower-cased hex address, empty for password-only accounts
	CreatedAt     time.Time // When the account was registered
}

// HasPassword reports whether the account can sign in with a password
func (a *Account) HasPassword() bool {
	return a.Username != "" && a.PasswordHash != ""
}

// HasWallet reports whether the account can sign in with a wallet signature
func (a *Account) HasWallet() bool {
	return a.WalletAddress != ""
}

// Validate checks that at least one authentication method is bound
func (a *Account) Validate() error {
	if !a.HasPassword() && !a.HasWallet() {
		return ErrNoAuthMethod
	}
	return nil
}

// InviteCode authorizes exactly one registration
type InviteCode struct {
	Code       string
	Consumed   bool
	AccountID  string // Account created with this code, empty until consumed
	CreatedAt  time.Time
	ConsumedAt *time.Time
}

// Nonce is a one-time sign-in challenge issued for an address
type Nonce struct {
	Address   string    // Lower-cased address the challenge was issued for
	Value     string    // Random nonce embedded in Message
	Message   string    // Full message the signer is asked to sign
	IssuedAt  time.Time // When the challenge was created
	ExpiresAt time.Time // When the challenge stops being accepted
	Consumed  bool      // Set once a login used the challenge
}

// Expired reports whether the nonce is past its TTL at the given instant
func (n *Nonce) Expired(now time.Time) bool {
	return !now.Before(n.ExpiresAt)
}

// ExpiryPolicy selects the lifetime of a new API key
type ExpiryPolicy string

const (
	// ExpiryEphemeral keys expire after the configured key TTL
	ExpiryEphemeral ExpiryPolicy = "ephemeral"

	// ExpiryPermanent keys never expire
	ExpiryPermanent ExpiryPolicy = "permanent"
)

// Credential is a bearer credential: a browser session token or an API key
type Credential struct {
	ID        string
	Token     string // Plaintext token, only populated when the credential is created
	TokenHash string // SHA-256 of the token, the storage key
	AccountID string
	Label     string
	CreatedAt time.Time
	ExpiresAt *time.Time // nil means permanent
	IsSession bool
}

// Expired reports whether the credential has a finite expiry that is already past
func (c *Credential) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && c.ExpiresAt.Before(now)
}

// Session is the decoded form of a session token
type Session struct {
	ID        string    // Credential ID backing the session
	AccountID string    // Owner of the session
	IssuedAt  time.Time // When the session was minted
}

// SweepFailure records one credential a sweep could not remove
type SweepFailure struct {
	TokenHash string
	Err       error
}

// SweepResult aggregates the outcome of removing expired credentials
type SweepResult struct {
	Removed  int
	Failures []SweepFailure
}

// APIKeyPrefix marks plaintext API keys
const APIKeyPrefix = "wdn_"

// SessionAudience is the audience claim of session tokens
const SessionAudience = "session"

// HashToken returns the storage key for a bearer token
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// IsTokenHash reports whether ref already looks like a value produced by HashToken
func IsTokenHash(ref string) bool {
	if len(ref) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(ref)
	return err == nil
}

// TokenRef resolves a token-or-hash reference to a token hash
func TokenRef(ref string) string {
	if IsTokenHash(ref) {
		return strings.ToLower(ref)
	}
	return HashToken(ref)
}

// NormalizeAddress lower-cases a hex address so lookups are case-insensitive
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
