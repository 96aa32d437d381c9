package progress

import (
	"context"
	"sync"
	"testing"

	"booking-workers/internal/common/logger"
	"booking-workers/internal/models"
	"booking-workers/internal/realtime"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rowFeed is a realtime.Source whose changes are pushed by the test.
type rowFeed struct {
	mu     sync.Mutex
	keys   []realtime.Key
	emit   func(realtime.RowChange)
	closed int
}

func (f *rowFeed) Open(key realtime.Key, emit func(realtime.RowChange)) (func() error, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	f.emit = emit
	return func() error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.closed++
		f.emit = nil
		return nil
	}, nil
}

func (f *rowFeed) push(c realtime.RowChange) {
	f.mu.Lock()
	emit := f.emit
	f.mu.Unlock()
	if emit != nil {
		emit(c)
	}
}

func TestWatchTaskChanges_OneRecomputePerTaskChange(t *testing.T) {
	h := newHarness(t)
	feed := &rowFeed{}
	hub := realtime.NewHub(feed, realtime.NewLocalBus(), logger.NewTestLogger(t))

	stop, err := h.svc.WatchTaskChanges(context.Background(), hub)
	require.NoError(t, err)
	require.Equal(t, []realtime.Key{realtime.AllTasksKey()}, feed.keys)

	// Written directly to the database, outside the service.
	h.store.mu.Lock()
	h.store.tasks[taskTwo].Status = models.TaskStatusCompleted
	h.store.mu.Unlock()

	feed.push(realtime.RowChange{
		Entity:      realtime.EntityTask,
		Action:      realtime.ActionUpdate,
		BookingID:   bookingOne,
		MilestoneID: milestoneA,
		TaskID:      taskTwo,
		Record:      map[string]interface{}{"status": "completed"},
	})
	ms, bs := h.store.writes()
	assert.Equal(t, 1, ms)
	assert.Equal(t, 1, bs)
	m, err := h.store.GetMilestone(context.Background(), milestoneA)
	require.NoError(t, err)
	assert.Equal(t, 100, m.ProgressPercentage)

	// Progress writes echo back as milestone and booking rows; they never trigger work.
	feed.push(realtime.RowChange{Entity: realtime.EntityMilestone, Action: realtime.ActionUpdate, BookingID: bookingOne, MilestoneID: milestoneA})
	feed.push(realtime.RowChange{Entity: realtime.EntityBooking, Action: realtime.ActionUpdate, BookingID: bookingOne})
	ms, bs = h.store.writes()
	assert.Equal(t, 1, ms)
	assert.Equal(t, 1, bs)

	stop()
	assert.Equal(t, 1, feed.closed)
	feed.push(realtime.RowChange{Entity: realtime.EntityTask, Action: realtime.ActionDelete, BookingID: bookingOne, MilestoneID: milestoneA, TaskID: taskTwo})
	ms, _ = h.store.writes()
	assert.Equal(t, 1, ms)
}

func TestWatchTaskChanges_FailedRecomputeIsLogged(t *testing.T) {
	h := newHarness(t)
	feed := &rowFeed{}
	hub := realtime.NewHub(feed, realtime.NewLocalBus(), logger.NewTestLogger(t))

	stop, err := h.svc.WatchTaskChanges(context.Background(), hub)
	require.NoError(t, err)
	defer stop()

	// A task row whose milestone is gone, and one with no milestone at all.
	feed.push(realtime.RowChange{Entity: realtime.EntityTask, Action: realtime.ActionDelete, MilestoneID: "6d2a4c1e-8b3f-4a5d-9e7c-0f1b2a3c4d5e", TaskID: taskThree})
	feed.push(realtime.RowChange{Entity: realtime.EntityTask, Action: realtime.ActionUpdate, TaskID: taskThree})

	ms, bs := h.store.writes()
	assert.Zero(t, ms)
	assert.Zero(t, bs)
}

func TestWatchTaskChanges_RequiresSource(t *testing.T) {
	h := newHarness(t)
	hub := realtime.NewHub(nil, realtime.NewLocalBus(), logger.NewNoOpLogger())

	_, err := h.svc.WatchTaskChanges(context.Background(), hub)
	assert.Error(t, err)
}
