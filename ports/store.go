package ports

import (
	"context"
	"time"

	"github.com/layer-3/warden/core"
)

// NonceStore holds at most one challenge per address
type NonceStore interface {
	// PutNonce stores the nonce under its address, replacing any previous one
	PutNonce(ctx context.Context, nonce *core.Nonce) error

	// GetNonce returns the stored nonce for an address or core.ErrNonceNotFound
	GetNonce(ctx context.Context, address string) (*core.Nonce, error)

	// ConsumeNonce checks the stored nonce against message and marks it consumed
	// in a single atomic step
	ConsumeNonce(ctx context.Context, address, message string, now time.Time) (*core.Nonce, error)
}

// CredentialStore holds session tokens and API keys keyed by token hash
type CredentialStore interface {
	SaveCredential(ctx context.Context, cred *core.Credential) error
	GetCredential(ctx context.Context, tokenHash string) (*core.Credential, error)

	// ListCredentials returns the account's credentials in creation order
	ListCredentials(ctx context.Context, accountID string) ([]*core.Credential, error)

	// DeleteCredential removes a credential owned by accountID. It reports false,
	// not an error, when nothing was removed.
	DeleteCredential(ctx context.Context, accountID, tokenHash string) (bool, error)
}

// AccountStore persists accounts and the invite codes that gate their creation
type AccountStore interface {
	// CreateAccountWithInvite consumes the invite and creates the account atomically
	CreateAccountWithInvite(ctx context.Context, account *core.Account, inviteCode string) error

	GetAccount(ctx context.Context, id string) (*core.Account, error)
	GetAccountByUsername(ctx context.Context, username string) (*core.Account, error)
	GetAccountByAddress(ctx context.Context, address string) (*core.Account, error)

	CreateInvite(ctx context.Context, invite *core.InviteCode) error
	GetInvite(ctx context.Context, code string) (*core.InviteCode, error)
}
