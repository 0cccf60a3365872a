package events

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/danmuck/gardenctl/internal/model"
	"github.com/danmuck/gardenctl/internal/testutil/testlog"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestBus(t *testing.T, opts ...Option) (*Bus, *miniredis.Miniredis) {
	t.Helper()
	testlog.Start(t)
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewFromClient(client, opts...), mr
}

func TestBusDeliversEventsInOrder(t *testing.T) {
	bus, _ := newTestBus(t, WithChannel("gardens:test"))
	require.Equal(t, "gardens:test", bus.Channel())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, bus.Ping(ctx))

	sub, err := bus.Subscribe(ctx)
	require.NoError(t, err)
	defer sub.Close()

	received := make(chan model.Event, 4)
	done := make(chan error, 1)
	go func() {
		done <- sub.Run(ctx, func(_ context.Context, event model.Event) {
			received <- event
		})
	}()

	require.NoError(t, bus.Publish(ctx, model.Event{
		Name:    model.EventSystemCreated,
		Garden:  "child1",
		Payload: &model.System{ID: "sys-echo", Namespace: "ns", Name: "echo", Version: "1.0.0"},
	}))
	require.NoError(t, bus.Publish(ctx, model.Event{
		Name:    model.EventGardenRemoved,
		Garden:  "parent",
		Payload: &model.Garden{Name: "child1"},
	}))

	first := waitEvent(t, received)
	require.Equal(t, model.EventSystemCreated, first.Name)
	system, ok := first.SystemPayload()
	require.True(t, ok)
	require.Equal(t, "ns:echo-1.0.0", system.Key())

	second := waitEvent(t, received)
	require.Equal(t, model.EventGardenRemoved, second.Name)
	garden, ok := second.GardenPayload()
	require.True(t, ok)
	require.Equal(t, "child1", garden.Name)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatalf("subscriber did not stop")
	}
}

func TestBusSkipsUndecodableMessages(t *testing.T) {
	bus, mr := newTestBus(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub, err := bus.Subscribe(ctx)
	require.NoError(t, err)
	defer sub.Close()

	received := make(chan model.Event, 2)
	go func() {
		_ = sub.Run(ctx, func(_ context.Context, event model.Event) {
			received <- event
		})
	}()

	mr.Publish(DefaultChannel, "not json")
	require.NoError(t, bus.Publish(ctx, model.Event{Name: model.EventGardenSync, Garden: "child1"}))

	got := waitEvent(t, received)
	require.Equal(t, model.EventGardenSync, got.Name)
	require.Nil(t, got.Payload)
}

func waitEvent(t *testing.T, ch <-chan model.Event) model.Event {
	t.Helper()
	select {
	case event := <-ch:
		return event
	case <-time.After(2 * time.Second):
		t.Fatalf("event not received")
		return model.Event{}
	}
}
