// internal/realtime/hub.go
package realtime

import (
	"context"
	"fmt"
	"sync"

	"booking-workers/internal/common/logger"
	"booking-workers/internal/common/metrics"
)

// Source opens an upstream row-change feed for one key. The returned func closes it.
type Source interface {
	Open(key Key, emit func(RowChange)) (func() error, error)
}

// Bus carries application-level broadcasts between components and instances.
type Bus interface {
	Publish(ctx context.Context, topic string, evt Event) error
	Subscribe(topic string, fn Listener) (func() error, error)
}

// Hub shares one upstream subscription per key between any number of local listeners.
type Hub struct {
	source Source
	bus    Bus
	log    logger.Logger

	rows       *registry
	broadcasts *registry
}

func NewHub(source Source, bus Bus, log logger.Logger) *Hub {
	if bus == nil {
		bus = NewLocalBus()
	}
	log = log.WithFields(map[string]interface{}{"component": "realtime"})
	return &Hub{
		source:     source,
		bus:        bus,
		log:        log,
		rows:       newRegistry(log),
		broadcasts: newRegistry(log),
	}
}

// Subscribe registers onChange for every task, milestone and booking row change under bookingID.
func (h *Hub) Subscribe(bookingID string, onChange Listener) (func(), error) {
	return h.SubscribeKey(BookingKey(bookingID), onChange)
}

// SubscribeKey registers a listener on an arbitrary entity channel.
func (h *Hub) SubscribeKey(key Key, onChange Listener) (func(), error) {
	if h.source == nil {
		return nil, fmt.Errorf("realtime: no row-change source configured")
	}
	return h.rows.add(key, onChange, func(fanout Listener) (func() error, error) {
		return h.source.Open(key, func(c RowChange) {
			metrics.RealtimeEvents.WithLabelValues(string(c.Entity), "delivered").Inc()
			fanout(c.Event())
		})
	})
}

// Broadcast publishes an application event, such as a progress update, to the booking's listeners.
func (h *Hub) Broadcast(ctx context.Context, bookingID string, evt Event) error {
	if evt.BookingID == "" {
		evt.BookingID = bookingID
	}
	return h.bus.Publish(ctx, BookingKey(bookingID).String(), evt)
}

// SubscribeBroadcast registers fn for application events published on bookingID.
func (h *Hub) SubscribeBroadcast(bookingID string, fn Listener) (func(), error) {
	key := BookingKey(bookingID)
	return h.broadcasts.add(key, fn, func(fanout Listener) (func() error, error) {
		return h.bus.Subscribe(key.String(), fanout)
	})
}

// Channels reports how many upstream row subscriptions are open.
func (h *Hub) Channels() int {
	return h.rows.size()
}

type channel struct {
	listeners map[uint64]Listener
	close     func() error
}

// registry reference-counts listeners per key.
type registry struct {
	mu       sync.Mutex
	channels map[Key]*channel
	nextID   uint64
	log      logger.Logger
}

func newRegistry(log logger.Logger) *registry {
	return &registry{channels: make(map[Key]*channel), log: log}
}

func (r *registry) add(key Key, fn Listener, open func(fanout Listener) (func() error, error)) (func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.channels[key]
	if !ok {
		closeFn, err := open(func(evt Event) { r.fanout(key, evt) })
		if err != nil {
			return nil, fmt.Errorf("open channel %s: %w", key, err)
		}
		ch = &channel{listeners: make(map[uint64]Listener), close: closeFn}
		r.channels[key] = ch
		metrics.RealtimeSubscriptions.Inc()
		r.log.Debug("upstream channel opened", map[string]interface{}{"key": key.String()})
	}

	r.nextID++
	id := r.nextID
	ch.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() { r.remove(key, id) })
	}, nil
}

func (r *registry) remove(key Key, id uint64) {
	r.mu.Lock()
	ch, ok := r.channels[key]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(ch.listeners, id)
	if len(ch.listeners) > 0 {
		r.mu.Unlock()
		return
	}
	delete(r.channels, key)
	r.mu.Unlock()

	metrics.RealtimeSubscriptions.Dec()
	if err := ch.close(); err != nil {
		r.log.Warn("upstream channel close failed", map[string]interface{}{"key": key.String(), "error": err})
		return
	}
	r.log.Debug("upstream channel closed", map[string]interface{}{"key": key.String()})
}

func (r *registry) fanout(key Key, evt Event) {
	r.mu.Lock()
	ch, ok := r.channels[key]
	if !ok {
		r.mu.Unlock()
		return
	}
	listeners := make([]Listener, 0, len(ch.listeners))
	for _, l := range ch.listeners {
		listeners = append(listeners, l)
	}
	r.mu.Unlock()

	for _, l := range listeners {
		l(evt)
	}
}

func (r *registry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.channels)
}
