package hooks

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBusPublishDeliversInRegistrationOrder(t *testing.T) {
	b := NewBus()
	var mu sync.Mutex
	var order []string

	record := func(name string) Subscriber {
		return SubscriberFunc(func(_ context.Context, _ Event) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		})
	}

	_, err := b.Register(record("first"))
	require.NoError(t, err)
	_, err = b.Register(record("second"))
	require.NoError(t, err)
	_, err = b.Register(record("third"))
	require.NoError(t, err)

	require.NoError(t, b.Publish(context.Background(), Event{Type: "AFTER_AGENT"}))
	require.Equal(t, []string{"first", "second", "third"}, order)
}

func TestBusPublishStopsAtFirstSubscriberError(t *testing.T) {
	b := NewBus()
	boom := errors.New("boom")
	var ranSecond bool

	_, err := b.Register(SubscriberFunc(func(context.Context, Event) error { return boom }))
	require.NoError(t, err)
	_, err = b.Register(SubscriberFunc(func(context.Context, Event) error {
		ranSecond = true
		return nil
	}))
	require.NoError(t, err)

	err = b.Publish(context.Background(), Event{Type: "AFTER_AGENT"})
	require.ErrorIs(t, err, boom)
	require.False(t, ranSecond)
}

func TestBusSubscriptionCloseUnregisters(t *testing.T) {
	b := NewBus()
	var calls int
	sub, err := b.Register(SubscriberFunc(func(context.Context, Event) error {
		calls++
		return nil
	}))
	require.NoError(t, err)

	require.NoError(t, b.Publish(context.Background(), Event{}))
	require.Equal(t, 1, calls)

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close()) // idempotent

	require.NoError(t, b.Publish(context.Background(), Event{}))
	require.Equal(t, 1, calls) // unregistered subscriber received nothing further
}

func TestBusRegisterRejectsNilSubscriber(t *testing.T) {
	b := NewBus()
	_, err := b.Register(nil)
	require.Error(t, err)
}
