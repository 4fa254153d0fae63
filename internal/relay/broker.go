package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/presence-desk/internal/domain"
)

// Broker distributes ingested events to the hubs that stream them.
type Broker interface {
	Publish(ctx context.Context, event domain.WebhookEvent) error
	// Run feeds the local hub until ctx is done.
	Run(ctx context.Context) error
}

// LocalBroker delivers straight to the in-process hub.
type LocalBroker struct {
	hub *Hub
}

// NewLocalBroker builds the single-instance broker.
func NewLocalBroker(hub *Hub) *LocalBroker {
	return &LocalBroker{hub: hub}
}

func (b *LocalBroker) Publish(_ context.Context, event domain.WebhookEvent) error {
	b.hub.Publish(event)
	return nil
}

func (b *LocalBroker) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

// RedisBroker shares events between relay instances over a redis channel.
// Every instance, including the ingesting one, feeds its hub from the
// subscription.
type RedisBroker struct {
	client  redis.UniversalClient
	channel string
	hub     *Hub
	logger  *zap.Logger
}

// NewRedisBroker builds the broker.
func NewRedisBroker(client redis.UniversalClient, channel string, hub *Hub, logger *zap.Logger) *RedisBroker {
	return &RedisBroker{client: client, channel: channel, hub: hub, logger: logger}
}

func (b *RedisBroker) Publish(ctx context.Context, event domain.WebhookEvent) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.channel, raw).Err(); err != nil {
		return fmt.Errorf("publish webhook event: %w", err)
	}
	return nil
}

func (b *RedisBroker) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.logger.Info("relay subscribed", zap.String("channel", b.channel))

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var event domain.WebhookEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.logger.Warn("undecodable relay message", zap.Error(err))
				continue
			}
			b.hub.Publish(event)
		}
	}
}
