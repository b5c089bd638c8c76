package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatermillPublisher_PublishLogin(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { _ = pubSub.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	messages, err := pubSub.Subscribe(ctx, TopicLogin)
	require.NoError(t, err)

	pub := NewWatermillPublisher(pubSub)
	require.NoError(t, pub.PublishLogin(ctx, "acct-1", "wallet"))

	select {
	case msg := <-messages:
		msg.Ack()
		var event AccountEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &event))
		assert.Equal(t, "acct-1", event.AccountID)
		assert.Equal(t, "wallet", event.Method)
		assert.False(t, event.OccurredAt.IsZero())
	case <-ctx.Done():
		t.Fatal("no login event received")
	}
}

func TestWatermillPublisher_PublishKeyRevoked(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { _ = pubSub.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	messages, err := pubSub.Subscribe(ctx, TopicKeyRevoked)
	require.NoError(t, err)

	pub := NewWatermillPublisher(pubSub)
	require.NoError(t, pub.PublishKeyRevoked(ctx, "acct-1", "abc"))

	select {
	case msg := <-messages:
		msg.Ack()
		var event CredentialEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &event))
		assert.Equal(t, "abc", event.TokenID)
	case <-ctx.Done():
		t.Fatal("no revocation event received")
	}
}

func TestWatermillPublisher_ClosedPublisher(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	require.NoError(t, pubSub.Close())

	pub := NewWatermillPublisher(pubSub)
	assert.Error(t, pub.PublishLogout(context.Background(), "acct-1", "tok"))
}
