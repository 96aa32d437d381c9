// Package realtime fans row changes and application broadcasts out to local listeners.
package realtime

import (
	"fmt"
	"time"
)

// Entity names the kind of row a subscription is keyed on.
type Entity string

const (
	EntityBooking   Entity = "booking"
	EntityMilestone Entity = "milestone"
	EntityTask      Entity = "task"
)

// Key identifies one logical channel.
type Key struct {
	Entity Entity
	ID     string
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%s", k.Entity, k.ID)
}

// AnyID keys a channel on every row of its entity.
const AnyID = "*"

// AllTasksKey is the channel for changes to any task.
func AllTasksKey() Key {
	return Key{Entity: EntityTask, ID: AnyID}
}

// BookingKey is the channel for everything under one booking.
func BookingKey(bookingID string) Key {
	return Key{Entity: EntityBooking, ID: bookingID}
}

type Action string

const (
	ActionInsert Action = "insert"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Event types delivered to listeners.
const (
	EventTaskUpdate      = "task_update"
	EventMilestoneUpdate = "milestone_update"
	EventBookingUpdate   = "booking_update"
	EventProgressUpdate  = "progress_update"
)

// Event is the envelope every listener receives.
type Event struct {
	BookingID   string                 `json:"bookingId"`
	MilestoneID string                 `json:"milestoneId,omitempty"`
	TaskID      string                 `json:"taskId,omitempty"`
	Type        string                 `json:"type"`
	Action      Action                 `json:"action"`
	Data        map[string]interface{} `json:"data,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
}

// Listener receives events for one subscription.
type Listener func(Event)

// RowChange is one upstream row event after its parent ids have been resolved.
type RowChange struct {
	Entity      Entity
	Action      Action
	BookingID   string
	MilestoneID string
	TaskID      string
	Record      map[string]interface{}
	At          time.Time
}

// Matches reports whether the change belongs on the channel for k.
func (c RowChange) Matches(k Key) bool {
	if k.ID == AnyID {
		return c.Entity == k.Entity
	}
	switch k.Entity {
	case EntityBooking:
		return c.BookingID == k.ID
	case EntityMilestone:
		return c.MilestoneID == k.ID
	case EntityTask:
		return c.TaskID == k.ID
	}
	return false
}

// Event converts the row change into the listener envelope.
func (c RowChange) Event() Event {
	var typ string
	switch c.Entity {
	case EntityTask:
		typ = EventTaskUpdate
	case EntityMilestone:
		typ = EventMilestoneUpdate
	default:
		typ = EventBookingUpdate
	}
	ts := c.At
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return Event{
		BookingID:   c.BookingID,
		MilestoneID: c.MilestoneID,
		TaskID:      c.TaskID,
		Type:        typ,
		Action:      c.Action,
		Data:        c.Record,
		Timestamp:   ts,
	}
}
