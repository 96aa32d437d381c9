// internal/progress/analytics.go
package progress

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"booking-workers/internal/common/metrics"
	"booking-workers/internal/common/validation"
	"booking-workers/internal/models"

	"github.com/redis/go-redis/v9"
)

func analyticsKey(bookingID string) string {
	return "progress:analytics:" + bookingID
}

// GetProgressAnalytics summarises a booking's tree. Results are cached until the TTL
// expires or the booking is next written.
func (s *Service) GetProgressAnalytics(ctx context.Context, bookingID string) (*models.ProgressAnalytics, error) {
	if err := validation.UUID("bookingId", bookingID); err != nil {
		return nil, err
	}

	if cached, ok := s.cachedAnalytics(ctx, bookingID); ok {
		metrics.AnalyticsCacheLookups.WithLabelValues("hit").Inc()
		return cached, nil
	}
	metrics.AnalyticsCacheLookups.WithLabelValues("miss").Inc()

	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("progress analytics: %w", err)
	}
	milestones, err := s.store.ListMilestones(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("progress analytics: %w", err)
	}
	tasks, err := s.store.ListTasksByBooking(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("progress analytics: %w", err)
	}

	a := s.buildAnalytics(booking, milestones, tasks)
	s.storeAnalytics(ctx, a)
	return a, nil
}

func (s *Service) buildAnalytics(b *models.Booking, milestones []models.Milestone, tasks []models.Task) *models.ProgressAnalytics {
	now := s.now().UTC()
	a := &models.ProgressAnalytics{
		BookingID:         b.ID,
		ProjectProgress:   b.ProjectProgress,
		TotalTasks:        len(tasks),
		TasksByStatus:     map[string]int{},
		MilestoneProgress: make(map[string]int, len(milestones)),
		TotalMilestones:   len(milestones),
		GeneratedAt:       now,
	}

	for _, m := range milestones {
		a.MilestoneProgress[m.ID] = m.ProgressPercentage
		if m.ProgressPercentage == 100 {
			a.CompletedMilestones++
		}
	}

	for _, t := range tasks {
		a.TasksByStatus[string(t.Status)]++
		a.TotalWeight += normalizeWeight(t.Weight)
		a.CompletedWeight += TaskContribution(t)
		a.EstimatedHours += t.EstimatedHours
		a.ActualHours += t.ActualHours

		open := t.Status != models.TaskStatusCompleted && t.Status != models.TaskStatusCancelled
		if open && t.DueDate != nil && t.DueDate.Before(now) {
			a.OverdueTasks++
		}
	}
	return a
}

func (s *Service) cachedAnalytics(ctx context.Context, bookingID string) (*models.ProgressAnalytics, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, analyticsKey(bookingID)).Bytes()
	if err != nil {
		if !stderrors.Is(err, redis.Nil) {
			s.log.Warn("analytics cache read failed", map[string]interface{}{"bookingId": bookingID, "error": err})
		}
		return nil, false
	}
	var a models.ProgressAnalytics
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, false
	}
	return &a, true
}

func (s *Service) storeAnalytics(ctx context.Context, a *models.ProgressAnalytics) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, analyticsKey(a.BookingID), raw, s.cacheTTL).Err(); err != nil {
		s.log.Warn("analytics cache write failed", map[string]interface{}{"bookingId": a.BookingID, "error": err})
	}
}

func (s *Service) invalidateAnalytics(ctx context.Context, bookingID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, analyticsKey(bookingID)).Err(); err != nil {
		s.log.Warn("analytics cache invalidation failed", map[string]interface{}{"bookingId": bookingID, "error": err})
	}
}
