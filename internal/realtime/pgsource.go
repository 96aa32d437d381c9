// internal/realtime/pgsource.go
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"booking-workers/internal/common/logger"
	"booking-workers/internal/common/metrics"

	"github.com/lib/pq"
)

// Channels the row triggers in migrations/001_init.sql notify on.
var changeChannels = []string{"tasks_changes", "milestones_changes", "bookings_changes"}

// NotifyListener is the part of *pq.Listener the source uses.
type NotifyListener interface {
	Listen(channel string) error
	NotificationChannel() <-chan *pq.Notification
	Close() error
}

// BookingResolver maps a task's milestone to its booking.
type BookingResolver interface {
	BookingIDForMilestone(ctx context.Context, milestoneID string) (string, error)
}

// rowPayload is what the change triggers send as the NOTIFY payload.
type rowPayload struct {
	Table     string                 `json:"table"`
	Operation string                 `json:"operation"`
	Record    map[string]interface{} `json:"record"`
	At        time.Time              `json:"at"`
}

type pgSub struct {
	key  Key
	emit func(RowChange)
}

// PGSource turns Postgres NOTIFY events into row changes for open subscriptions.
// One LISTEN connection serves every key.
type PGSource struct {
	listener NotifyListener
	resolver BookingResolver
	log      logger.Logger

	mu     sync.RWMutex
	subs   map[uint64]pgSub
	nextID uint64
}

func NewPGSource(l NotifyListener, resolver BookingResolver, log logger.Logger) (*PGSource, error) {
	for _, ch := range changeChannels {
		if err := l.Listen(ch); err != nil {
			return nil, fmt.Errorf("listen %s: %w", ch, err)
		}
	}
	return &PGSource{
		listener: l,
		resolver: resolver,
		log:      log.WithFields(map[string]interface{}{"component": "realtime.pg"}),
		subs:     make(map[uint64]pgSub),
	}, nil
}

func (s *PGSource) Open(key Key, emit func(RowChange)) (func() error, error) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subs[id] = pgSub{key: key, emit: emit}
	s.mu.Unlock()

	return func() error {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
		return nil
	}, nil
}

// Run consumes notifications until ctx is cancelled.
func (s *PGSource) Run(ctx context.Context) error {
	notifications := s.listener.NotificationChannel()
	for {
		select {
		case <-ctx.Done():
			return s.listener.Close()
		case n, ok := <-notifications:
			if !ok {
				return nil
			}
			// nil after a reconnect; events in the gap are lost.
			if n == nil {
				s.log.Warn("change listener reconnected", nil)
				continue
			}
			s.handle(ctx, n)
		}
	}
}

func (s *PGSource) handle(ctx context.Context, n *pq.Notification) {
	change, err := s.decode(ctx, n)
	if err != nil {
		metrics.RealtimeEvents.WithLabelValues(strings.TrimSuffix(n.Channel, "s_changes"), "dropped").Inc()
		s.log.Debug("row change dropped", map[string]interface{}{"channel": n.Channel, "error": err})
		return
	}

	s.mu.RLock()
	var targets []func(RowChange)
	for _, sub := range s.subs {
		if change.Matches(sub.key) {
			targets = append(targets, sub.emit)
		}
	}
	s.mu.RUnlock()

	for _, emit := range targets {
		emit(change)
	}
}

func (s *PGSource) decode(ctx context.Context, n *pq.Notification) (RowChange, error) {
	var p rowPayload
	if err := json.Unmarshal([]byte(n.Extra), &p); err != nil {
		return RowChange{}, fmt.Errorf("decode payload: %w", err)
	}

	c := RowChange{
		Action: Action(strings.ToLower(p.Operation)),
		Record: p.Record,
		At:     p.At,
	}
	id := stringField(p.Record, "id")

	switch p.Table {
	case "tasks":
		c.Entity = EntityTask
		c.TaskID = id
		c.MilestoneID = stringField(p.Record, "milestone_id")
		bookingID, err := s.resolver.BookingIDForMilestone(ctx, c.MilestoneID)
		if err != nil {
			return RowChange{}, fmt.Errorf("resolve booking for task %s: %w", id, err)
		}
		c.BookingID = bookingID
	case "milestones":
		c.Entity = EntityMilestone
		c.MilestoneID = id
		c.BookingID = stringField(p.Record, "booking_id")
	case "bookings":
		c.Entity = EntityBooking
		c.BookingID = id
	default:
		return RowChange{}, fmt.Errorf("unexpected table %q", p.Table)
	}
	return c, nil
}

func stringField(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
