package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/internal/metrics"
	"github.com/layer-3/warden/ports"
	"github.com/rs/zerolog"
)

const maxLabelLength = 128

// APIKeyManager creates, lists, revokes and sweeps credentials of an account
type APIKeyManager struct {
	store    ports.CredentialStore
	eventPub ports.EventPublisher
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	ttl      time.Duration
	now      func() time.Time
}

// NewAPIKeyManager creates a manager whose ephemeral keys live for ttl
func NewAPIKeyManager(store ports.CredentialStore, eventPub ports.EventPublisher, m *metrics.Metrics, logger zerolog.Logger, ttl time.Duration) *APIKeyManager {
	return &APIKeyManager{
		store:    store,
		eventPub: eventPub,
		metrics:  m,
		logger:   logger.With().Str("component", "apikeys").Logger(),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create mints an API key. The returned credential is the only place the
// plaintext token is available; the store keeps its hash.
func (m *APIKeyManager) Create(ctx context.Context, accountID, label string, policy core.ExpiryPolicy) (*core.Credential, error) {
	if len(label) > maxLabelLength {
		return nil, &core.ValidationError{Field: "label", Message: fmt.Sprintf("Labels can be at most %d characters.", maxLabelLength)}
	}

	now := m.now().UTC()
	var expiresAt *time.Time
	switch policy {
	case core.ExpiryEphemeral:
		t := now.Add(m.ttl)
		expiresAt = &t
	case core.ExpiryPermanent:
	default:
		return nil, &core.ValidationError{Field: "expiry", Message: "Unknown key expiry policy."}
	}

	token, err := generateAPIKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate api key: %w", err)
	}

	cred := &core.Credential{
		ID:        uuid.New().String(),
		Token:     token,
		TokenHash: core.HashToken(token),
		AccountID: accountID,
		Label:     label,
		CreatedAt: now,
		ExpiresAt: expiresAt,
	}

	if err := m.store.SaveCredential(ctx, cred); err != nil {
		return nil, err
	}

	m.metrics.CredentialsCreated.WithLabelValues(string(policy)).Inc()
	return cred, nil
}

// List returns the account's credentials in creation order
func (m *APIKeyManager) List(ctx context.Context, accountID string, includeSession bool) ([]*core.Credential, error) {
	creds, err := m.store.ListCredentials(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if includeSession {
		return creds, nil
	}

	keys := creds[:0]
	for _, cred := range creds {
		if !cred.IsSession {
			keys = append(keys, cred)
		}
	}
	return keys, nil
}

// Revoke removes a credential by token or token hash. A missing credential is
// reported as false, not as an error.
func (m *APIKeyManager) Revoke(ctx context.Context, accountID, tokenOrHash string) (bool, error) {
	return m.remove(ctx, accountID, core.TokenRef(tokenOrHash), "revoke")
}

// SweepExpired removes every expired credential of the account except the one
// matching activeSessionToken. Failures are collected and do not stop the sweep.
// The returned error is set only when the credentials could not be listed or ctx ended.
func (m *APIKeyManager) SweepExpired(ctx context.Context, accountID, activeSessionToken string) (core.SweepResult, error) {
	var result core.SweepResult

	creds, err := m.store.ListCredentials(ctx, accountID)
	if err != nil {
		return result, err
	}

	activeHash := ""
	if activeSessionToken != "" {
		activeHash = core.HashToken(activeSessionToken)
	}

	now := m.now()
	for _, cred := range creds {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if cred.TokenHash == activeHash {
			continue
		}
		if !cred.Expired(now) {
			continue
		}

		removed, err := m.remove(ctx, accountID, cred.TokenHash, "sweep")
		if err != nil {
			m.metrics.SweepFailures.Inc()
			m.logger.Warn().Err(err).Str("account_id", accountID).Str("token_hash", cred.TokenHash).Msg("failed to remove expired credential")
			result.Failures = append(result.Failures, core.SweepFailure{TokenHash: cred.TokenHash, Err: err})
			continue
		}
		if removed {
			result.Removed++
		}
	}

	m.logger.Info().Str("account_id", accountID).Int("removed", result.Removed).Int("failures", len(result.Failures)).Msg("swept expired credentials")
	return result, nil
}

func (m *APIKeyManager) remove(ctx context.Context, accountID, tokenHash, cause string) (bool, error) {
	removed, err := m.store.DeleteCredential(ctx, accountID, tokenHash)
	if err != nil {
		return false, err
	}
	if !removed {
		m.logger.Debug().Str("account_id", accountID).Str("token_hash", tokenHash).Str("cause", cause).Msg("credential already absent")
		return false, nil
	}

	m.metrics.CredentialsRemoved.WithLabelValues(cause).Inc()
	if err := m.eventPub.PublishKeyRevoked(ctx, accountID, tokenHash); err != nil {
		m.logger.Warn().Err(err).Str("account_id", accountID).Msg("failed to publish key revocation")
	}
	return true, nil
}

func generateAPIKey() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return core.APIKeyPrefix + base64.RawURLEncoding.EncodeToString(bytes), nil
}
