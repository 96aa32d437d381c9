// internal/progress/mutations.go
package progress

import (
	"context"
	"fmt"
	"strings"
	"time"

	"booking-workers/internal/common/errors"
	"booking-workers/internal/common/validation"
	"booking-workers/internal/models"
)

// TaskUpdate carries the task fields to change; nil fields are left alone.
type TaskUpdate struct {
	Title              *string
	Description        *string
	Status             *models.TaskStatus
	Weight             *float64
	EstimatedHours     *float64
	DueDate            *time.Time
	AssigneeID         *string
	ProgressPercentage *int
}

// MilestoneUpdate carries the milestone fields to change; nil fields are left alone.
type MilestoneUpdate struct {
	Title       *string
	Description *string
	Status      *models.MilestoneStatus
	Weight      *float64
	DueDate     *time.Time
	SortOrder   *int
}

// CreateTask inserts a task and recomputes its milestone and booking exactly once.
func (s *Service) CreateTask(ctx context.Context, t *models.Task) (*models.Task, error) {
	if err := validation.UUID("milestoneId", t.MilestoneID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(t.Title) == "" {
		return nil, errors.NewValidationError("title", "title is required")
	}
	if t.Status == "" {
		t.Status = models.TaskStatusPending
	}
	if err := validateTask(t); err != nil {
		return nil, err
	}
	t.Weight = normalizeWeight(t.Weight)

	if err := s.store.InsertTask(ctx, t); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	if _, err := s.RecalculateMilestone(ctx, t.MilestoneID); err != nil {
		return t, err
	}
	return t, nil
}

// UpdateTask applies u and recomputes the parent milestone and booking.
func (s *Service) UpdateTask(ctx context.Context, taskID string, u TaskUpdate) (*models.Task, error) {
	if err := validation.UUID("taskId", taskID); err != nil {
		return nil, err
	}
	if u.Status != nil && !u.Status.Valid() {
		return nil, errors.NewValidationError("status", fmt.Sprintf("invalid task status %q", *u.Status))
	}

	t, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	previous := t.Status

	applyTaskUpdate(t, u)
	if err := validateTask(t); err != nil {
		return nil, err
	}
	t.Weight = normalizeWeight(t.Weight)

	if err := s.store.UpdateTask(ctx, t); err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}

	if t.Status != previous {
		s.notifyTaskStatus(ctx, t, previous)
	}

	if _, err := s.RecalculateMilestone(ctx, t.MilestoneID); err != nil {
		return t, err
	}
	return t, nil
}

// DeleteTask removes a task and recomputes the milestone it belonged to.
func (s *Service) DeleteTask(ctx context.Context, taskID string) error {
	if err := validation.UUID("taskId", taskID); err != nil {
		return err
	}
	milestoneID, err := s.store.DeleteTask(ctx, taskID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	_, err = s.RecalculateMilestone(ctx, milestoneID)
	return err
}

// LogTime appends a time entry, refreshes actual hours and recomputes the tree.
func (s *Service) LogTime(ctx context.Context, e *models.TimeEntry) (float64, error) {
	if err := validation.UUID("taskId", e.TaskID); err != nil {
		return 0, err
	}
	if e.DurationHours <= 0 {
		return 0, errors.NewValidationError("durationHours", "durationHours must be positive")
	}
	if e.LoggedAt.IsZero() {
		e.LoggedAt = s.now().UTC()
	}

	t, err := s.store.GetTask(ctx, e.TaskID)
	if err != nil {
		return 0, fmt.Errorf("log time: %w", err)
	}
	actual, err := s.store.InsertTimeEntry(ctx, e)
	if err != nil {
		return 0, fmt.Errorf("log time: %w", err)
	}
	if _, err := s.RecalculateMilestone(ctx, t.MilestoneID); err != nil {
		return actual, err
	}
	return actual, nil
}

// CreateMilestone inserts a milestone and recomputes its booking.
func (s *Service) CreateMilestone(ctx context.Context, m *models.Milestone) (*models.Milestone, error) {
	if err := validation.UUID("bookingId", m.BookingID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(m.Title) == "" {
		return nil, errors.NewValidationError("title", "title is required")
	}
	if m.Status == "" {
		m.Status = models.MilestoneStatusPending
	}
	if !m.Status.Valid() {
		return nil, errors.NewValidationError("status", fmt.Sprintf("invalid milestone status %q", m.Status))
	}
	m.Weight = normalizeWeight(m.Weight)

	if err := s.store.InsertMilestone(ctx, m); err != nil {
		return nil, fmt.Errorf("create milestone: %w", err)
	}
	if _, err := s.RecalculateBooking(ctx, m.BookingID); err != nil {
		return m, err
	}
	return m, nil
}

// UpdateMilestone applies u and recomputes the booking. Approval and rejection notify the provider.
func (s *Service) UpdateMilestone(ctx context.Context, milestoneID string, u MilestoneUpdate) (*models.Milestone, error) {
	if err := validation.UUID("milestoneId", milestoneID); err != nil {
		return nil, err
	}
	if u.Status != nil && !u.Status.Valid() {
		return nil, errors.NewValidationError("status", fmt.Sprintf("invalid milestone status %q", *u.Status))
	}
	if u.Title != nil && strings.TrimSpace(*u.Title) == "" {
		return nil, errors.NewValidationError("title", "title cannot be empty")
	}

	m, err := s.store.GetMilestone(ctx, milestoneID)
	if err != nil {
		return nil, fmt.Errorf("update milestone: %w", err)
	}
	previous := m.Status

	if u.Title != nil {
		m.Title = *u.Title
	}
	if u.Description != nil {
		m.Description = *u.Description
	}
	if u.Status != nil {
		m.Status = *u.Status
	}
	if u.Weight != nil {
		m.Weight = *u.Weight
	}
	if u.DueDate != nil {
		m.DueDate = u.DueDate
	}
	if u.SortOrder != nil {
		m.SortOrder = *u.SortOrder
	}
	m.Weight = normalizeWeight(m.Weight)

	if err := s.store.UpdateMilestone(ctx, m); err != nil {
		return nil, fmt.Errorf("update milestone: %w", err)
	}

	if m.Status != previous {
		s.notifyMilestoneReview(ctx, m)
	}

	if _, err := s.RecalculateBooking(ctx, m.BookingID); err != nil {
		return m, err
	}
	return m, nil
}

// DeleteMilestone removes a milestone and recomputes its booking.
func (s *Service) DeleteMilestone(ctx context.Context, milestoneID string) error {
	if err := validation.UUID("milestoneId", milestoneID); err != nil {
		return err
	}
	bookingID, err := s.store.DeleteMilestone(ctx, milestoneID)
	if err != nil {
		return fmt.Errorf("delete milestone: %w", err)
	}
	_, err = s.RecalculateBooking(ctx, bookingID)
	return err
}

func applyTaskUpdate(t *models.Task, u TaskUpdate) {
	if u.Title != nil {
		t.Title = *u.Title
	}
	if u.Description != nil {
		t.Description = *u.Description
	}
	if u.Status != nil {
		t.Status = *u.Status
	}
	if u.Weight != nil {
		t.Weight = *u.Weight
	}
	if u.EstimatedHours != nil {
		t.EstimatedHours = *u.EstimatedHours
	}
	if u.DueDate != nil {
		t.DueDate = u.DueDate
	}
	if u.AssigneeID != nil {
		t.AssigneeID = *u.AssigneeID
	}
	if u.ProgressPercentage != nil {
		t.ProgressPercentage = *u.ProgressPercentage
	}
}

func validateTask(t *models.Task) error {
	if strings.TrimSpace(t.Title) == "" {
		return errors.NewValidationError("title", "title cannot be empty")
	}
	if !t.Status.Valid() {
		return errors.NewValidationError("status", fmt.Sprintf("invalid task status %q", t.Status))
	}
	if t.EstimatedHours < 0 {
		return errors.NewValidationError("estimatedHours", "estimatedHours cannot be negative")
	}
	if t.ProgressPercentage < 0 || t.ProgressPercentage > 100 {
		return errors.NewValidationError("progressPercentage", "progressPercentage must be between 0 and 100")
	}
	return nil
}

// notifyTaskStatus tells the booking's client about a task status change.
func (s *Service) notifyTaskStatus(ctx context.Context, t *models.Task, previous models.TaskStatus) {
	if s.notifier == nil {
		return
	}
	booking, err := s.bookingForMilestone(ctx, t.MilestoneID)
	if err != nil {
		s.log.Warn("task status change not notified", map[string]interface{}{"taskId": t.ID, "error": err})
		return
	}

	typ := models.TypeTaskStatusChanged
	if t.Status == models.TaskStatusCompleted {
		typ = models.TypeTaskCompleted
	}
	data := map[string]interface{}{
		"task_id":       t.ID,
		"task_title":    t.Title,
		"old_status":    string(previous),
		"new_status":    string(t.Status),
		"booking_id":    booking.ID,
		"booking_title": booking.Title,
		"milestone_id":  t.MilestoneID,
	}
	if _, err := s.notifier.NotifyEvent(ctx, booking.ClientID, typ, data); err != nil {
		s.log.Warn("task status change not notified", map[string]interface{}{"taskId": t.ID, "error": err})
	}
}

// notifyMilestoneReview tells the provider when the client approves or rejects a milestone.
func (s *Service) notifyMilestoneReview(ctx context.Context, m *models.Milestone) {
	var typ models.NotificationType
	switch m.Status {
	case models.MilestoneStatusApproved:
		typ = models.TypeMilestoneApproved
	case models.MilestoneStatusRejected:
		typ = models.TypeMilestoneRejected
	default:
		return
	}
	if s.notifier == nil {
		return
	}
	booking, err := s.store.GetBooking(ctx, m.BookingID)
	if err != nil {
		s.log.Warn("milestone review not notified", map[string]interface{}{"milestoneId": m.ID, "error": err})
		return
	}
	data := map[string]interface{}{
		"milestone_id":    m.ID,
		"milestone_title": m.Title,
		"booking_id":      booking.ID,
		"booking_title":   booking.Title,
	}
	if _, err := s.notifier.NotifyEvent(ctx, booking.ProviderID, typ, data); err != nil {
		s.log.Warn("milestone review not notified", map[string]interface{}{"milestoneId": m.ID, "error": err})
	}
}

func (s *Service) bookingForMilestone(ctx context.Context, milestoneID string) (*models.Booking, error) {
	m, err := s.store.GetMilestone(ctx, milestoneID)
	if err != nil {
		return nil, err
	}
	return s.store.GetBooking(ctx, m.BookingID)
}
