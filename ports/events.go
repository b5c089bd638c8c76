package ports

import "context"

// EventPublisher publishes auth events to notify other instances
type EventPublisher interface {
	PublishRegistered(ctx context.Context, accountID, method string) error
	PublishLogin(ctx context.Context, accountID, method string) error
	PublishLogout(ctx context.Context, accountID, tokenID string) error
	PublishKeyRevoked(ctx context.Context, accountID, tokenHash string) error
}
