package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/layer-3/warden/ports"
)

// Topics events are published to
const (
	TopicRegistered = "warden.registered"
	TopicLogin      = "warden.login"
	TopicLogout     = "warden.logout"
	TopicKeyRevoked = "warden.key_revoked"
)

// AccountEvent is the payload of registration and login events
type AccountEvent struct {
	AccountID  string    `json:"account_id"`
	Method     string    `json:"method"`
	OccurredAt time.Time `json:"occurred_at"`
}

// CredentialEvent is the payload of logout and key revocation events
type CredentialEvent struct {
	AccountID  string    `json:"account_id"`
	TokenID    string    `json:"token_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
}

var _ ports.EventPublisher = (*WatermillPublisher)(nil)

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) *WatermillPublisher {
	return &WatermillPublisher{publisher: publisher}
}

// PublishRegistered publishes an account registration event
func (p *WatermillPublisher) PublishRegistered(ctx context.Context, accountID, method string) error {
	return p.publish(ctx, TopicRegistered, AccountEvent{AccountID: accountID, Method: method, OccurredAt: time.Now().UTC()})
}

// PublishLogin publishes a successful login event
func (p *WatermillPublisher) PublishLogin(ctx context.Context, accountID, method string) error {
	return p.publish(ctx, TopicLogin, AccountEvent{AccountID: accountID, Method: method, OccurredAt: time.Now().UTC()})
}

// PublishLogout publishes a logout event
func (p *WatermillPublisher) PublishLogout(ctx context.Context, accountID, tokenID string) error {
	return p.publish(ctx, TopicLogout, CredentialEvent{AccountID: accountID, TokenID: tokenID, OccurredAt: time.Now().UTC()})
}

// PublishKeyRevoked publishes an API key revocation event
func (p *WatermillPublisher) PublishKeyRevoked(ctx context.Context, accountID, tokenHash string) error {
	return p.publish(ctx, TopicKeyRevoked, CredentialEvent{AccountID: accountID, TokenID: tokenHash, OccurredAt: time.Now().UTC()})
}

func (p *WatermillPublisher) publish(ctx context.Context, topic string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}
