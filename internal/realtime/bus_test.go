package realtime

import (
	"context"
	"testing"
	"time"

	"booking-workers/internal/common/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisBus_PublishSubscribe(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	bus := NewRedisBus(client, logger.NewTestLogger(t))
	received := make(chan Event, 1)

	unsub, err := bus.Subscribe("booking:b-1", func(e Event) { received <- e })
	require.NoError(t, err)

	err = bus.Publish(context.Background(), "booking:b-1", Event{
		BookingID: "b-1",
		Type:      EventProgressUpdate,
		Action:    ActionUpdate,
		Data:      map[string]interface{}{"projectProgress": 88},
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	require.NoError(t, err)

	select {
	case e := <-received:
		assert.Equal(t, "b-1", e.BookingID)
		assert.Equal(t, EventProgressUpdate, e.Type)
		// JSON numbers come back as float64.
		assert.Equal(t, float64(88), e.Data["projectProgress"])
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast not received")
	}

	require.NoError(t, unsub())
}

func TestRedisBus_HubIntegration(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	hub := NewHub(newFakeSource(), NewRedisBus(client, logger.NewNoOpLogger()), logger.NewNoOpLogger())
	received := make(chan Event, 2)

	unsub1, err := hub.SubscribeBroadcast("b-9", func(e Event) { received <- e })
	require.NoError(t, err)
	unsub2, err := hub.SubscribeBroadcast("b-9", func(e Event) { received <- e })
	require.NoError(t, err)

	// Two local listeners share one Redis subscription.
	assert.Len(t, mr.PubSubChannels(""), 1)

	require.NoError(t, hub.Broadcast(context.Background(), "b-9", Event{Type: EventProgressUpdate}))
	for i := 0; i < 2; i++ {
		select {
		case e := <-received:
			assert.Equal(t, "b-9", e.BookingID)
		case <-time.After(2 * time.Second):
			t.Fatal("broadcast not fanned out")
		}
	}

	unsub1()
	unsub2()
	assert.Eventually(t, func() bool { return len(mr.PubSubChannels("")) == 0 }, 2*time.Second, 20*time.Millisecond)
}

func TestRedisBus_ListenerCanUnsubscribeItself(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	bus := NewRedisBus(client, logger.NewTestLogger(t))
	unsubCh := make(chan func() error, 1)
	returned := make(chan error, 1)

	unsub, err := bus.Subscribe("booking:b-2", func(Event) {
		returned <- (<-unsubCh)()
	})
	require.NoError(t, err)
	unsubCh <- unsub

	require.NoError(t, bus.Publish(context.Background(), "booking:b-2", Event{Type: EventBookingUpdate}))
	select {
	case err := <-returned:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("unsubscribe from inside the listener did not return")
	}
	assert.Eventually(t, func() bool { return len(mr.PubSubChannels("")) == 0 }, 2*time.Second, 20*time.Millisecond)

	// A second call from outside still waits for the consumer and reports the same result.
	assert.NoError(t, unsub())
}

func TestLocalBus_Unsubscribe(t *testing.T) {
	bus := NewLocalBus()
	calls := 0
	unsub, err := bus.Subscribe("booking:b-1", func(Event) { calls++ })
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), "booking:b-1", Event{}))
	require.NoError(t, bus.Publish(context.Background(), "booking:b-2", Event{}))
	require.NoError(t, unsub())
	require.NoError(t, bus.Publish(context.Background(), "booking:b-1", Event{}))

	assert.Equal(t, 1, calls)
}
