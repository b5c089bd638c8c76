package service

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/ports"
)

const sessionLabel = "session"

// SessionIssuer mints browser session credentials
type SessionIssuer struct {
	tokenizer ports.Tokenizer
	now       func() time.Time
}

// NewSessionIssuer creates a new session issuer
func NewSessionIssuer(tokenizer ports.Tokenizer) *SessionIssuer {
	return &SessionIssuer{
		tokenizer: tokenizer,
		now:       time.Now,
	}
}

// Issue returns a session credential for the account. The credential has no
// expiry; persisting it and handing the token to the browser is up to the caller.
func (i *SessionIssuer) Issue(account *core.Account) (*core.Credential, error) {
	now := i.now().UTC()
	session := &core.Session{
		ID:        uuid.New().String(),
		AccountID: account.ID,
		IssuedAt:  now,
	}

	token, err := i.tokenizer.SessionToToken(session)
	if err != nil {
		return nil, fmt.Errorf("failed to create session token: %w", err)
	}

	return &core.Credential{
		ID:        session.ID,
		Token:     token,
		TokenHash: core.HashToken(token),
		AccountID: account.ID,
		Label:     sessionLabel,
		CreatedAt: now,
		IsSession: true,
	}, nil
}
