package warden

import (
	"context"
	"time"

	"github.com/layer-3/warden/core"
)

// Client is the subset of the auth API the wallet handshake drives
type Client interface {
	// RegisterWithAddress creates an account bound to address, consuming inviteCode
	RegisterWithAddress(ctx context.Context, address, inviteCode string) error

	// GenerateNonce requests a sign-in challenge and returns the message to sign
	GenerateNonce(ctx context.Context, req NonceRequest) (string, error)

	// LoginWithSignature exchanges a signed challenge for a session token
	LoginWithSignature(ctx context.Context, address, message, signature string) (string, error)
}

// NonceRequest carries the parameters of a challenge request
type NonceRequest struct {
	Host     string    `json:"host"`
	Address  string    `json:"address"`
	IssuedAt time.Time `json:"issuedAt"`
	ChainID  uint64    `json:"chainId"`
	Version  string    `json:"version"`
}

// Signer is a wallet capable of approving account access, switching chains and
// signing messages. Every call may block until the user answers a prompt.
type Signer interface {
	// Accounts requests access to the wallet's accounts
	Accounts(ctx context.Context) ([]string, error)

	// ChainID returns the wallet's active chain
	ChainID(ctx context.Context) (uint64, error)

	// SwitchChain asks the wallet to make chainID active.
	// Returns ErrUnrecognizedChain when the wallet does not know the chain.
	SwitchChain(ctx context.Context, chainID uint64) error

	// AddChain asks the wallet to learn a chain
	AddChain(ctx context.Context, chain core.Chain) error

	// SignPersonal signs message as an EIP-191 personal message of address
	SignPersonal(ctx context.Context, message, address string) (string, error)
}

// SessionStorage holds the bearer token of the signed-in account
type SessionStorage interface {
	// SaveToken replaces the stored token
	SaveToken(ctx context.Context, token string) error

	// LoadToken returns the stored token or ErrNoSession
	LoadToken(ctx context.Context) (string, error)

	// ClearToken forgets the stored token
	ClearToken(ctx context.Context) error
}
