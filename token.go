package warden

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/warden/core"
)

// TokenKind tells session tokens from API keys
type TokenKind string

const (
	TokenKindSession TokenKind = "session"
	TokenKindAPIKey  TokenKind = "api_key"
)

// ErrMalformedToken is returned for strings that are neither a session token nor an API key
var ErrMalformedToken = errors.New("malformed token")

// Token is a bearer token as seen by a client. Session claims are read
// without verification; only the server can vouch for a token.
type Token struct {
	raw    string
	kind   TokenKind
	claims *jwt.RegisteredClaims
}

// ParseToken inspects a bearer token
func ParseToken(raw string) (Token, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, core.APIKeyPrefix) {
		return Token{raw: raw, kind: TokenKindAPIKey}, nil
	}

	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return Token{}, ErrMalformedToken
	}
	if !slices.Contains([]string(claims.Audience), core.SessionAudience) {
		return Token{}, ErrMalformedToken
	}
	return Token{raw: raw, kind: TokenKindSession, claims: claims}, nil
}

// String returns the bearer value
func (t Token) String() string {
	return t.raw
}

// Kind returns whether t is a session or an API key
func (t Token) Kind() TokenKind {
	return t.kind
}

// Hash returns the reference the key endpoints accept in place of the token
func (t Token) Hash() string {
	return core.HashToken(t.raw)
}

// AccountID returns the owner of a session token
func (t Token) AccountID() string {
	if t.claims == nil {
		return ""
	}
	return t.claims.Subject
}

// SessionID returns the credential id of a session token
func (t Token) SessionID() string {
	if t.claims == nil {
		return ""
	}
	return t.claims.ID
}

// IssuedAt returns when a session token was minted
func (t Token) IssuedAt() time.Time {
	if t.claims == nil || t.claims.IssuedAt == nil {
		return time.Time{}
	}
	return t.claims.IssuedAt.Time
}
