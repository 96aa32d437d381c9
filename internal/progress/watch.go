package progress

import (
	"context"
	"time"

	"booking-workers/internal/realtime"
)

// RowSubscriber opens a row-change subscription.
type RowSubscriber interface {
	SubscribeKey(key realtime.Key, onChange realtime.Listener) (func(), error)
}

const watchRecalcTimeout = 10 * time.Second

// WatchTaskChanges recomputes a milestone, and its booking, whenever one of its task rows
// changes, including writes that bypass this service. Milestone and booking rows are
// ignored since recomputation writes them.
func (s *Service) WatchTaskChanges(ctx context.Context, rows RowSubscriber) (func(), error) {
	return rows.SubscribeKey(realtime.AllTasksKey(), func(evt realtime.Event) {
		if evt.Type != realtime.EventTaskUpdate || evt.MilestoneID == "" {
			return
		}
		if ctx.Err() != nil {
			return
		}
		rctx, cancel := context.WithTimeout(ctx, watchRecalcTimeout)
		defer cancel()
		if _, err := s.RecalculateMilestone(rctx, evt.MilestoneID); err != nil {
			s.log.Warn("recalculation after task change failed", map[string]interface{}{
				"milestoneId": evt.MilestoneID,
				"taskId":      evt.TaskID,
				"action":      string(evt.Action),
				"error":       err,
			})
		}
	})
}
