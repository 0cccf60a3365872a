// Package events carries topology and request events between gardens over
// Redis pub/sub. Every garden in a federation subscribes to the same channel;
// the event's Garden field names its origin.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/danmuck/gardenctl/internal/model"
	backend "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const DefaultChannel = "gardenctl:events"

var ErrSubscriptionClosed = errors.New("events: subscription closed")

// Handler consumes one decoded event.
type Handler func(ctx context.Context, event model.Event)

// Bus publishes and subscribes to events on one Redis channel.
type Bus struct {
	client  *backend.Client
	channel string
	owned   bool
}

type Option func(*Bus)

// WithChannel overrides DefaultChannel.
func WithChannel(channel string) Option {
	return func(b *Bus) {
		if c := strings.TrimSpace(channel); c != "" {
			b.channel = c
		}
	}
}

// New connects a bus to the Redis server at address.
func New(address string, opts ...Option) *Bus {
	bus := NewFromClient(backend.NewClient(&backend.Options{Addr: address}), opts...)
	bus.owned = true
	return bus
}

// NewFromClient wraps an existing client. Close leaves the client open.
func NewFromClient(client *backend.Client, opts ...Option) *Bus {
	bus := &Bus{client: client, channel: DefaultChannel}
	for _, opt := range opts {
		opt(bus)
	}
	return bus
}

func (b *Bus) Channel() string {
	return b.channel
}

// Ping checks that the Redis server is reachable.
func (b *Bus) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Publish encodes event as JSON and publishes it.
func (b *Bus) Publish(ctx context.Context, event model.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("events: encode %s: %w", event.Name, err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("events: publish %s: %w", event.Name, err)
	}
	log.Debug().
		Str("event", string(event.Name)).
		Str("garden", event.Garden).
		Str("channel", b.channel).
		Msg("event_published")
	return nil
}

// Subscribe returns once the subscription is confirmed by the server.
func (b *Bus) Subscribe(ctx context.Context) (*Subscription, error) {
	ps := b.client.Subscribe(ctx, b.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("events: subscribe %s: %w", b.channel, err)
	}
	return &Subscription{ps: ps, channel: b.channel}, nil
}

// Run subscribes and delivers events to handler until ctx ends.
func (b *Bus) Run(ctx context.Context, handler Handler) error {
	sub, err := b.Subscribe(ctx)
	if err != nil {
		return err
	}
	defer sub.Close()
	return sub.Run(ctx, handler)
}

func (b *Bus) Close() error {
	if !b.owned {
		return nil
	}
	return b.client.Close()
}

// Subscription is a confirmed subscription to the bus channel.
type Subscription struct {
	ps      *backend.PubSub
	channel string
}

// Run delivers events in arrival order. Messages that do not decode are
// logged and skipped.
func (s *Subscription) Run(ctx context.Context, handler Handler) error {
	log.Info().Str("channel", s.channel).Msg("event_subscriber_started")
	defer log.Info().Str("channel", s.channel).Msg("event_subscriber_stopped")

	ch := s.ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return ErrSubscriptionClosed
			}
			var event model.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Warn().Err(err).Str("channel", msg.Channel).Msg("event_decode_failed")
				continue
			}
			handler(ctx, event)
		}
	}
}

func (s *Subscription) Close() error {
	return s.ps.Close()
}
