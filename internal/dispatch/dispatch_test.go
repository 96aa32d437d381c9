package dispatch

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"booking-workers/internal/common/logger"
	"booking-workers/internal/models"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func job(id string) Job {
	return NewJob(models.Notification{ID: id, Type: models.TypeTaskCreated})
}

func TestMemoryDispatcher_RunsJobs(t *testing.T) {
	d := NewMemoryDispatcher(8, 2, logger.NewTestLogger(t))
	var handled int32
	require.NoError(t, d.Start(context.Background(), func(context.Context, Job) error {
		atomic.AddInt32(&handled, 1)
		return nil
	}))

	for i := 0; i < 5; i++ {
		require.NoError(t, d.Enqueue(context.Background(), job("n")))
	}
	require.NoError(t, d.Close())
	assert.Equal(t, int32(5), atomic.LoadInt32(&handled))

	assert.ErrorIs(t, d.Enqueue(context.Background(), job("late")), ErrClosed)
	assert.NoError(t, d.Close())
}

func TestMemoryDispatcher_DropsWhenFull(t *testing.T) {
	d := NewMemoryDispatcher(1, 1, logger.NewNoOpLogger())

	// Not started: the single slot fills and the next job is dropped immediately.
	require.NoError(t, d.Enqueue(context.Background(), job("a")))

	done := make(chan error, 1)
	go func() { done <- d.Enqueue(context.Background(), job("b")) }()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrQueueFull)
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked on a full queue")
	}
}

func TestMemoryDispatcher_ErrorsChannel(t *testing.T) {
	d := NewMemoryDispatcher(4, 1, logger.NewNoOpLogger())
	boom := stderrors.New("ses unavailable")
	require.NoError(t, d.Start(context.Background(), func(_ context.Context, j Job) error {
		if j.Notification.ID == "panic" {
			panic("template exploded")
		}
		return boom
	}))

	require.NoError(t, d.Enqueue(context.Background(), job("n-1")))
	require.NoError(t, d.Enqueue(context.Background(), job("panic")))

	var got []error
	for len(got) < 2 {
		select {
		case err := <-d.Errors():
			got = append(got, err)
		case <-time.After(2 * time.Second):
			t.Fatalf("expected 2 errors, got %d", len(got))
		}
	}

	var jobErr *JobError
	require.True(t, stderrors.As(got[0], &jobErr))
	assert.Equal(t, "n-1", jobErr.Job.Notification.ID)
	assert.ErrorIs(t, got[0], boom)
	assert.Contains(t, got[1].Error(), "handler panic")

	require.NoError(t, d.Close())
}

func TestMemoryDispatcher_StartTwice(t *testing.T) {
	d := NewMemoryDispatcher(1, 1, logger.NewNoOpLogger())
	noop := func(context.Context, Job) error { return nil }
	require.NoError(t, d.Start(context.Background(), noop))
	assert.Error(t, d.Start(context.Background(), noop))
	require.NoError(t, d.Close())
}

type ackRecord struct {
	acked   []uint64
	nacked  []uint64
	requeue []bool
	mu      sync.Mutex
}

func (a *ackRecord) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked = append(a.acked, tag)
	return nil
}

func (a *ackRecord) Nack(tag uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacked = append(a.nacked, tag)
	a.requeue = append(a.requeue, requeue)
	return nil
}

func (a *ackRecord) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

type fakeChannel struct {
	declared   []string
	published  []amqp.Publishing
	deliveries chan amqp.Delivery
	closed     bool
}

func (c *fakeChannel) QueueDeclare(name string, durable, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	if !durable {
		return amqp.Queue{}, stderrors.New("queue must be durable")
	}
	c.declared = append(c.declared, name)
	return amqp.Queue{Name: name}, nil
}

func (c *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if exchange != "" || key != "notification.delivery" {
		return stderrors.New("unexpected route")
	}
	c.published = append(c.published, msg)
	return nil
}

func (c *fakeChannel) Consume(string, string, bool, bool, bool, bool, amqp.Table) (<-chan amqp.Delivery, error) {
	return c.deliveries, nil
}

func (c *fakeChannel) Qos(int, int, bool) error { return nil }

func (c *fakeChannel) Close() error {
	if !c.closed {
		c.closed = true
		close(c.deliveries)
	}
	return nil
}

func TestAMQPDispatcher_PublishAndConsume(t *testing.T) {
	ch := &fakeChannel{deliveries: make(chan amqp.Delivery, 4)}
	d, err := NewAMQPDispatcher(ch, "notification.delivery", 1, logger.NewTestLogger(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"notification.delivery"}, ch.declared)

	require.NoError(t, d.Enqueue(context.Background(), job("n-ok")))
	require.NoError(t, d.Enqueue(context.Background(), job("n-fail")))
	require.Len(t, ch.published, 2)
	assert.Equal(t, amqp.Persistent, ch.published[0].DeliveryMode)
	assert.Equal(t, "application/json", ch.published[0].ContentType)

	acks := &ackRecord{}
	for i, p := range ch.published {
		ch.deliveries <- amqp.Delivery{Acknowledger: acks, DeliveryTag: uint64(i + 1), Body: p.Body, MessageId: p.MessageId}
	}
	ch.deliveries <- amqp.Delivery{Acknowledger: acks, DeliveryTag: 3, Body: []byte("{")}

	var seen []string
	var mu sync.Mutex
	require.NoError(t, d.Start(context.Background(), func(_ context.Context, j Job) error {
		mu.Lock()
		seen = append(seen, j.Notification.ID)
		mu.Unlock()
		if j.Notification.ID == "n-fail" {
			return stderrors.New("smtp 550")
		}
		return nil
	}))

	require.NoError(t, d.Close())

	assert.Equal(t, []string{"n-ok", "n-fail"}, seen)
	assert.Equal(t, []uint64{1}, acks.acked)
	assert.Equal(t, []uint64{2, 3}, acks.nacked)
	assert.Equal(t, []bool{false, false}, acks.requeue)

	select {
	case err := <-d.Errors():
		assert.Contains(t, err.Error(), "smtp 550")
	default:
		t.Fatal("handler error not reported")
	}
}
