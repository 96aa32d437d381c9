// internal/realtime/bus.go
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"booking-workers/internal/common/logger"

	"github.com/redis/go-redis/v9"
)

// LocalBus delivers broadcasts inside one process.
type LocalBus struct {
	mu     sync.RWMutex
	topics map[string]map[uint64]Listener
	nextID uint64
}

func NewLocalBus() *LocalBus {
	return &LocalBus{topics: make(map[string]map[uint64]Listener)}
}

func (b *LocalBus) Publish(_ context.Context, topic string, evt Event) error {
	b.mu.RLock()
	listeners := make([]Listener, 0, len(b.topics[topic]))
	for _, l := range b.topics[topic] {
		listeners = append(listeners, l)
	}
	b.mu.RUnlock()

	for _, l := range listeners {
		l(evt)
	}
	return nil
}

func (b *LocalBus) Subscribe(topic string, fn Listener) (func() error, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	if b.topics[topic] == nil {
		b.topics[topic] = make(map[uint64]Listener)
	}
	b.topics[topic][id] = fn

	return func() error {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.topics[topic], id)
		if len(b.topics[topic]) == 0 {
			delete(b.topics, topic)
		}
		return nil
	}, nil
}

const redisChannelPrefix = "realtime:"

// RedisBus carries broadcasts over Redis Pub/Sub so every worker instance sees them.
type RedisBus struct {
	client redis.UniversalClient
	log    logger.Logger
}

func NewRedisBus(client redis.UniversalClient, log logger.Logger) *RedisBus {
	return &RedisBus{client: client, log: log}
}

func (b *RedisBus) Publish(ctx context.Context, topic string, evt Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := b.client.Publish(ctx, redisChannelPrefix+topic, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe returns once Redis has confirmed the subscription. The returned func waits
// for the consumer goroutine to drain, except when the listener itself calls it.
func (b *RedisBus) Subscribe(topic string, fn Listener) (func() error, error) {
	ctx := context.Background()
	ps := b.client.Subscribe(ctx, redisChannelPrefix+topic)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", topic, err)
	}

	done := make(chan struct{})
	var inListener atomic.Bool
	go func() {
		defer close(done)
		for msg := range ps.Channel() {
			var evt Event
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				b.log.Warn("undecodable broadcast dropped", map[string]interface{}{"topic": topic, "error": err})
				continue
			}
			inListener.Store(true)
			fn(evt)
			inListener.Store(false)
		}
	}()

	var once sync.Once
	var closeErr error
	return func() error {
		once.Do(func() { closeErr = ps.Close() })
		if !inListener.Load() {
			<-done
		}
		return closeErr
	}, nil
}
