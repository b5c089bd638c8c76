package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/internal/eth"
	"github.com/layer-3/warden/internal/metrics"
	"github.com/layer-3/warden/ports"
)

// MessageVersion is the only challenge message version issued
const MessageVersion = "1"

const defaultStatement = "Sign in with your wallet. This request will not trigger a blockchain transaction or cost any gas fees."

// NonceRequest carries the parameters of a challenge request
type NonceRequest struct {
	Address  string
	Host     string
	IssuedAt time.Time
	ChainID  uint64
	Version  string
}

// NonceBroker issues and consumes one-time sign-in challenges
type NonceBroker struct {
	store     ports.NonceStore
	chainID   uint64
	ttl       time.Duration
	statement string
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewNonceBroker creates a broker for challenges on chainID that expire after ttl
func NewNonceBroker(store ports.NonceStore, chainID uint64, ttl time.Duration, m *metrics.Metrics) *NonceBroker {
	return &NonceBroker{
		store:     store,
		chainID:   chainID,
		ttl:       ttl,
		statement: defaultStatement,
		metrics:   m,
		now:       time.Now,
	}
}

// RequestNonce builds a fresh challenge for the address, replacing any outstanding one
func (b *NonceBroker) RequestNonce(ctx context.Context, req NonceRequest) (*core.Nonce, error) {
	addr, ok := eth.ParseAddress(req.Address)
	if !ok {
		return nil, core.ErrInvalidAddress
	}
	if req.ChainID != b.chainID {
		return nil, fmt.Errorf("%w: %d", core.ErrUnsupportedChain, req.ChainID)
	}
	if req.Version != "" && req.Version != MessageVersion {
		return nil, &core.ValidationError{Field: "version", Message: "Unsupported message version."}
	}
	if strings.TrimSpace(req.Host) == "" {
		return nil, &core.ValidationError{Field: "host", Message: "Please provide the requesting host."}
	}

	value, err := generateNonce(16)
	if err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	now := b.now()
	issuedAt := req.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = now
	}

	nonce := &core.Nonce{
		Address:   core.NormalizeAddress(addr.Hex()),
		Value:     value,
		IssuedAt:  issuedAt,
		ExpiresAt: now.Add(b.ttl),
	}
	nonce.Message = b.message(req.Host, addr.Hex(), nonce)

	if err := b.store.PutNonce(ctx, nonce); err != nil {
		return nil, err
	}

	b.metrics.NoncesIssued.Inc()
	return nonce, nil
}

// Consume checks candidateMessage against the outstanding challenge and marks
// it used. The store performs the check and the mark atomically.
func (b *NonceBroker) Consume(ctx context.Context, address, candidateMessage string) (*core.Nonce, error) {
	if _, ok := eth.ParseAddress(address); !ok {
		return nil, core.ErrInvalidAddress
	}

	nonce, err := b.store.ConsumeNonce(ctx, address, candidateMessage, b.now())
	if err != nil {
		if core.IsNonceError(err) {
			b.metrics.NonceRejections.WithLabelValues(rejectionReason(err)).Inc()
		}
		return nil, err
	}
	return nonce, nil
}

// Lookup returns the outstanding challenge for an address without consuming it
func (b *NonceBroker) Lookup(ctx context.Context, address string) (*core.Nonce, error) {
	return b.store.GetNonce(ctx, address)
}

func (b *NonceBroker) message(host, checksumAddress string, nonce *core.Nonce) string {
	scheme := "https"
	if strings.HasPrefix(host, "localhost") || strings.HasPrefix(host, "127.0.0.1") {
		scheme = "http"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s wants you to sign in with your Ethereum account:\n", host)
	fmt.Fprintf(&sb, "%s\n\n", checksumAddress)
	fmt.Fprintf(&sb, "%s\n\n", b.statement)
	fmt.Fprintf(&sb, "URI: %s://%s\n", scheme, host)
	fmt.Fprintf(&sb, "Version: %s\n", MessageVersion)
	fmt.Fprintf(&sb, "Chain ID: %d\n", b.chainID)
	fmt.Fprintf(&sb, "Nonce: %s\n", nonce.Value)
	fmt.Fprintf(&sb, "Issued At: %s\n", nonce.IssuedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&sb, "Expiration Time: %s", nonce.ExpiresAt.UTC().Format(time.RFC3339))
	return sb.String()
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, core.ErrNonceNotFound):
		return "not_found"
	case errors.Is(err, core.ErrNonceExpired):
		return "expired"
	case errors.Is(err, core.ErrNonceAlreadyConsumed):
		return "consumed"
	case errors.Is(err, core.ErrNonceMismatch):
		return "mismatch"
	default:
		return "other"
	}
}

// generateNonce returns length random bytes hex encoded
func generateNonce(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
