// internal/progress/service.go
package progress

import (
	"context"
	"fmt"
	"time"

	"booking-workers/internal/common/logger"
	"booking-workers/internal/common/metrics"
	"booking-workers/internal/common/validation"
	"booking-workers/internal/models"
	"booking-workers/internal/realtime"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Store is the slice of the data layer the engine reads and writes.
type Store interface {
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	GetMilestone(ctx context.Context, id string) (*models.Milestone, error)
	GetTask(ctx context.Context, id string) (*models.Task, error)
	ListMilestones(ctx context.Context, bookingID string) ([]models.Milestone, error)
	ListTasksByMilestone(ctx context.Context, milestoneID string) ([]models.Task, error)
	ListTasksByBooking(ctx context.Context, bookingID string) ([]models.Task, error)
	UpdateMilestoneProgress(ctx context.Context, milestoneID string, pct int) error
	UpdateBookingProgress(ctx context.Context, bookingID string, pct int) error
	InsertTask(ctx context.Context, t *models.Task) error
	UpdateTask(ctx context.Context, t *models.Task) error
	DeleteTask(ctx context.Context, taskID string) (string, error)
	InsertTimeEntry(ctx context.Context, e *models.TimeEntry) (float64, error)
	InsertMilestone(ctx context.Context, m *models.Milestone) error
	UpdateMilestone(ctx context.Context, m *models.Milestone) error
	DeleteMilestone(ctx context.Context, milestoneID string) (string, error)
}

// Notifier records a templated notification for a user.
type Notifier interface {
	NotifyEvent(ctx context.Context, userID string, typ models.NotificationType, data map[string]interface{}) (*models.Notification, error)
}

// Broadcaster publishes application-level events to realtime listeners.
type Broadcaster interface {
	Broadcast(ctx context.Context, bookingID string, evt realtime.Event) error
}

// SnapshotIndexer stores progress snapshots for search and reporting.
type SnapshotIndexer interface {
	IndexDocument(ctx context.Context, index, id string, doc interface{}) error
}

// Deps wires a Service. Only Store and Logger are required.
type Deps struct {
	Store         Store
	Logger        logger.Logger
	Cache         redis.Cmdable
	CacheTTL      time.Duration
	Notifier      Notifier
	Broadcaster   Broadcaster
	Indexer       SnapshotIndexer
	SnapshotIndex string
	Tracer        trace.Tracer
}

type Service struct {
	store         Store
	log           logger.Logger
	cache         redis.Cmdable
	cacheTTL      time.Duration
	notifier      Notifier
	broadcaster   Broadcaster
	indexer       SnapshotIndexer
	snapshotIndex string
	tracer        trace.Tracer
	now           func() time.Time
}

func NewService(d Deps) *Service {
	if d.CacheTTL <= 0 {
		d.CacheTTL = 5 * time.Minute
	}
	if d.SnapshotIndex == "" {
		d.SnapshotIndex = "booking-progress"
	}
	if d.Tracer == nil {
		d.Tracer = otel.Tracer("booking-workers/progress")
	}
	return &Service{
		store:         d.Store,
		log:           d.Logger.WithFields(map[string]interface{}{"component": "progress"}),
		cache:         d.Cache,
		cacheTTL:      d.CacheTTL,
		notifier:      d.Notifier,
		broadcaster:   d.Broadcaster,
		indexer:       d.Indexer,
		snapshotIndex: d.SnapshotIndex,
		tracer:        d.Tracer,
		now:           time.Now,
	}
}

// BookingResult is the outcome of a full-tree recalculation.
type BookingResult struct {
	BookingID       string         `json:"bookingId"`
	ProjectProgress int            `json:"projectProgress"`
	Milestones      map[string]int `json:"milestones"`
}

// RecalculateMilestone recomputes one milestone from its tasks and then its booking, once each.
func (s *Service) RecalculateMilestone(ctx context.Context, milestoneID string) (int, error) {
	if err := validation.UUID("milestoneId", milestoneID); err != nil {
		return 0, err
	}

	ctx, span := s.tracer.Start(ctx, "progress.RecalculateMilestone",
		trace.WithAttributes(attribute.String("milestone.id", milestoneID)))
	defer span.End()

	milestone, err := s.store.GetMilestone(ctx, milestoneID)
	if err != nil {
		return 0, s.fail(span, "milestone", fmt.Errorf("recalculate milestone %s: %w", milestoneID, err))
	}

	tasks, err := s.store.ListTasksByMilestone(ctx, milestoneID)
	if err != nil {
		return 0, s.fail(span, "milestone", fmt.Errorf("recalculate milestone %s: %w", milestoneID, err))
	}

	pct := MilestoneProgress(tasks)
	if err := s.store.UpdateMilestoneProgress(ctx, milestoneID, pct); err != nil {
		return 0, s.fail(span, "milestone", fmt.Errorf("write milestone %s progress: %w", milestoneID, err))
	}
	metrics.ProgressRecalculations.WithLabelValues("milestone", "ok").Inc()
	span.SetAttributes(attribute.Int("milestone.progress", pct))

	s.log.Debug("milestone progress recalculated", map[string]interface{}{
		"milestoneId": milestoneID,
		"bookingId":   milestone.BookingID,
		"previous":    milestone.ProgressPercentage,
		"progress":    pct,
		"tasks":       len(tasks),
	})

	if milestone.ProgressPercentage < 100 && pct == 100 {
		s.notifyMilestoneCompleted(ctx, milestone)
	}

	if _, err := s.RecalculateBooking(ctx, milestone.BookingID); err != nil {
		return pct, err
	}
	return pct, nil
}

// RecalculateBooking recomputes a booking from its stored milestone percentages.
func (s *Service) RecalculateBooking(ctx context.Context, bookingID string) (int, error) {
	if err := validation.UUID("bookingId", bookingID); err != nil {
		return 0, err
	}

	ctx, span := s.tracer.Start(ctx, "progress.RecalculateBooking",
		trace.WithAttributes(attribute.String("booking.id", bookingID)))
	defer span.End()

	milestones, err := s.store.ListMilestones(ctx, bookingID)
	if err != nil {
		return 0, s.fail(span, "booking", fmt.Errorf("recalculate booking %s: %w", bookingID, err))
	}
	pct, err := s.commitBooking(ctx, bookingID, milestones)
	if err != nil {
		return 0, s.fail(span, "booking", err)
	}
	return pct, nil
}

// RecalculateAll recomputes every milestone of a booking from its tasks, then the booking once.
func (s *Service) RecalculateAll(ctx context.Context, bookingID string) (*BookingResult, error) {
	if err := validation.UUID("bookingId", bookingID); err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "progress.RecalculateAll",
		trace.WithAttributes(attribute.String("booking.id", bookingID)))
	defer span.End()

	milestones, err := s.store.ListMilestones(ctx, bookingID)
	if err != nil {
		return nil, s.fail(span, "booking", fmt.Errorf("recalculate booking %s: %w", bookingID, err))
	}

	result := &BookingResult{BookingID: bookingID, Milestones: make(map[string]int, len(milestones))}
	for i := range milestones {
		m := &milestones[i]
		tasks, err := s.store.ListTasksByMilestone(ctx, m.ID)
		if err != nil {
			return nil, s.fail(span, "milestone", fmt.Errorf("recalculate milestone %s: %w", m.ID, err))
		}
		pct := MilestoneProgress(tasks)
		if err := s.store.UpdateMilestoneProgress(ctx, m.ID, pct); err != nil {
			return nil, s.fail(span, "milestone", fmt.Errorf("write milestone %s progress: %w", m.ID, err))
		}
		metrics.ProgressRecalculations.WithLabelValues("milestone", "ok").Inc()

		if m.ProgressPercentage < 100 && pct == 100 {
			s.notifyMilestoneCompleted(ctx, m)
		}
		m.ProgressPercentage = pct
		result.Milestones[m.ID] = pct
	}

	pct, err := s.commitBooking(ctx, bookingID, milestones)
	if err != nil {
		return nil, s.fail(span, "booking", err)
	}
	result.ProjectProgress = pct
	return result, nil
}

// commitBooking writes the booking percentage and runs the best-effort side effects.
func (s *Service) commitBooking(ctx context.Context, bookingID string, milestones []models.Milestone) (int, error) {
	pct := BookingProgress(milestones)
	if err := s.store.UpdateBookingProgress(ctx, bookingID, pct); err != nil {
		return 0, fmt.Errorf("write booking %s progress: %w", bookingID, err)
	}
	metrics.ProgressRecalculations.WithLabelValues("booking", "ok").Inc()

	s.log.Info("booking progress recalculated", map[string]interface{}{
		"bookingId":  bookingID,
		"progress":   pct,
		"milestones": len(milestones),
	})

	s.invalidateAnalytics(ctx, bookingID)
	s.broadcastProgress(ctx, bookingID, pct, milestones)
	s.indexSnapshot(bookingID, pct, milestones)
	return pct, nil
}

func (s *Service) fail(span trace.Span, scope string, err error) error {
	metrics.ProgressRecalculations.WithLabelValues(scope, "error").Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func (s *Service) broadcastProgress(ctx context.Context, bookingID string, pct int, milestones []models.Milestone) {
	if s.broadcaster == nil {
		return
	}
	perMilestone := make(map[string]interface{}, len(milestones))
	for _, m := range milestones {
		perMilestone[m.ID] = m.ProgressPercentage
	}
	evt := realtime.Event{
		BookingID: bookingID,
		Type:      realtime.EventProgressUpdate,
		Action:    realtime.ActionUpdate,
		Data: map[string]interface{}{
			"projectProgress": pct,
			"milestones":      perMilestone,
		},
		Timestamp: s.now().UTC(),
	}
	if err := s.broadcaster.Broadcast(ctx, bookingID, evt); err != nil {
		s.log.Warn("progress broadcast failed", map[string]interface{}{
			"bookingId": bookingID,
			"error":     err,
		})
	}
}

type progressSnapshot struct {
	BookingID       string         `json:"bookingId"`
	ProjectProgress int            `json:"projectProgress"`
	Milestones      map[string]int `json:"milestones"`
	RecordedAt      time.Time      `json:"recordedAt"`
}

// indexSnapshot writes to the search index in the background; failures are logged only.
func (s *Service) indexSnapshot(bookingID string, pct int, milestones []models.Milestone) {
	if s.indexer == nil {
		return
	}
	snap := progressSnapshot{
		BookingID:       bookingID,
		ProjectProgress: pct,
		Milestones:      make(map[string]int, len(milestones)),
		RecordedAt:      s.now().UTC(),
	}
	for _, m := range milestones {
		snap.Milestones[m.ID] = m.ProgressPercentage
	}
	docID := fmt.Sprintf("%s-%d", bookingID, snap.RecordedAt.UnixNano())

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.indexer.IndexDocument(ctx, s.snapshotIndex, docID, snap); err != nil {
			s.log.Warn("progress snapshot not indexed", map[string]interface{}{
				"bookingId": bookingID,
				"error":     err,
			})
		}
	}()
}

func (s *Service) notifyMilestoneCompleted(ctx context.Context, m *models.Milestone) {
	if s.notifier == nil {
		return
	}
	booking, err := s.store.GetBooking(ctx, m.BookingID)
	if err != nil {
		s.log.Warn("milestone completion not notified", map[string]interface{}{
			"milestoneId": m.ID,
			"error":       err,
		})
		return
	}
	data := map[string]interface{}{
		"milestone_title": m.Title,
		"milestone_id":    m.ID,
		"booking_id":      booking.ID,
		"booking_title":   booking.Title,
	}
	if _, err := s.notifier.NotifyEvent(ctx, booking.ClientID, models.TypeMilestoneCompleted, data); err != nil {
		s.log.Warn("milestone completion not notified", map[string]interface{}{
			"milestoneId": m.ID,
			"error":       err,
		})
	}
}
