// Package notification records user notifications and hands them to delivery.
package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"booking-workers/internal/common/database"
	"booking-workers/internal/common/errors"
	"booking-workers/internal/common/logger"
	"booking-workers/internal/common/metrics"
	"booking-workers/internal/common/validation"
	"booking-workers/internal/dispatch"
	"booking-workers/internal/models"
	"booking-workers/internal/notification/templates"
)

// Store is the notification table.
type Store interface {
	Insert(ctx context.Context, n *models.Notification) error
	List(ctx context.Context, userID string, filter models.NotificationFilter) ([]models.Notification, error)
	MarkAsRead(ctx context.Context, userID, id string) error
	MarkAllAsRead(ctx context.Context, userID string) (int64, error)
	SetRead(ctx context.Context, userID string, ids []string, read bool) (int64, error)
	DeleteMany(ctx context.Context, userID string, ids []string) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// SettingsStore reads per-user category switches. A nil result means no row.
type SettingsStore interface {
	GetSettings(ctx context.Context, userID string) (*models.NotificationSettings, error)
}

// Enqueuer accepts delivery jobs without blocking.
type Enqueuer interface {
	Enqueue(ctx context.Context, job dispatch.Job) error
}

type Deps struct {
	Store     Store
	Settings  SettingsStore
	Queue     Enqueuer
	Templates *templates.Registry
	Logger    logger.Logger
}

type Service struct {
	store     Store
	settings  SettingsStore
	queue     Enqueuer
	templates *templates.Registry
	log       logger.Logger
	now       func() time.Time
}

func NewService(d Deps) *Service {
	if d.Templates == nil {
		d.Templates = templates.NewRegistry()
	}
	return &Service{
		store:     d.Store,
		settings:  d.Settings,
		queue:     d.Queue,
		templates: d.Templates,
		log:       d.Logger.WithFields(map[string]interface{}{"component": "notification"}),
		now:       time.Now,
	}
}

// Request is the input to CreateNotification. Empty ActionURL/ActionLabel are derived from the type.
type Request struct {
	UserID      string
	Type        models.NotificationType
	Title       string
	Message     string
	Data        map[string]interface{}
	Priority    models.Priority
	ExpiresAt   *time.Time
	ActionURL   string
	ActionLabel string
}

func (r Request) validate() error {
	if err := validation.UUID("userId", r.UserID); err != nil {
		return err
	}
	if !r.Type.Valid() {
		return errors.NewValidationError("type", fmt.Sprintf("unknown notification type %q", r.Type))
	}
	if strings.TrimSpace(r.Title) == "" {
		return errors.NewValidationError("title", "title is required")
	}
	if r.Priority != "" && !r.Priority.Valid() {
		return errors.NewValidationError("priority", fmt.Sprintf("invalid priority %q", r.Priority))
	}
	return nil
}

// CreateNotification always persists the notification. Delivery is queued only when the
// user's settings allow the type's category; queueing failures are logged, not returned.
func (s *Service) CreateNotification(ctx context.Context, req Request) (*models.Notification, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	settings := s.loadSettings(ctx, req.UserID)
	category := req.Type.Category()
	deliver := settings.Allows(category) && (settings.EmailNotifications || settings.SMSNotifications)

	if req.ActionURL == "" || req.ActionLabel == "" {
		url, label := s.deriveAction(req.Type, req.Data)
		if req.ActionURL == "" {
			req.ActionURL = url
		}
		if req.ActionLabel == "" {
			req.ActionLabel = label
		}
	}
	if req.Priority == "" {
		req.Priority = models.PriorityMedium
	}
	if req.Data == nil {
		req.Data = map[string]interface{}{}
	}

	n := &models.Notification{
		UserID:      req.UserID,
		Type:        req.Type,
		Title:       req.Title,
		Message:     req.Message,
		Data:        req.Data,
		Priority:    req.Priority,
		ExpiresAt:   req.ExpiresAt,
		ActionURL:   req.ActionURL,
		ActionLabel: req.ActionLabel,
	}
	if err := s.store.Insert(ctx, n); err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}

	outcome := "suppressed"
	if deliver {
		outcome = s.enqueue(ctx, n, settings)
	}
	metrics.NotificationsCreated.WithLabelValues(string(category), outcome).Inc()

	s.log.Debug("notification created", map[string]interface{}{
		"notificationId": n.ID,
		"userId":         n.UserID,
		"type":           string(n.Type),
		"delivery":       outcome,
	})
	return n, nil
}

func (s *Service) enqueue(ctx context.Context, n *models.Notification, settings *models.NotificationSettings) string {
	if s.queue == nil {
		return "unqueued"
	}
	job := dispatch.NewJob(*n)
	job.Email = settings.EmailNotifications
	job.SMS = settings.SMSNotifications
	if err := s.queue.Enqueue(ctx, job); err != nil {
		s.log.Warn("notification delivery not queued", map[string]interface{}{
			"notificationId": n.ID,
			"error":          err,
		})
		return "dropped"
	}
	return "queued"
}

// loadSettings falls back to send-everything when the row is missing or unreadable.
func (s *Service) loadSettings(ctx context.Context, userID string) *models.NotificationSettings {
	if s.settings == nil {
		return models.DefaultNotificationSettings(userID)
	}
	settings, err := s.settings.GetSettings(ctx, userID)
	if err != nil {
		s.log.Warn("notification settings unavailable, using defaults", map[string]interface{}{
			"userId": userID,
			"error":  err,
		})
		return models.DefaultNotificationSettings(userID)
	}
	if settings == nil {
		return models.DefaultNotificationSettings(userID)
	}
	return settings
}

// CreateFromTemplate renders tmpl with data and creates the notification. A nil tmpl uses the registry.
func (s *Service) CreateFromTemplate(ctx context.Context, userID string, typ models.NotificationType, data map[string]interface{}, tmpl *templates.Template) (*models.Notification, error) {
	if tmpl == nil {
		t, ok := s.templates.Lookup(typ)
		if !ok {
			return nil, errors.NewTemplateNotFoundError(string(typ))
		}
		tmpl = &t
	}
	rendered := tmpl.Render(data)

	var expiresAt *time.Time
	if tmpl.DefaultExpiresInHours > 0 {
		at := s.now().UTC().Add(time.Duration(tmpl.DefaultExpiresInHours) * time.Hour)
		expiresAt = &at
	}

	return s.CreateNotification(ctx, Request{
		UserID:      userID,
		Type:        typ,
		Title:       rendered.Title,
		Message:     rendered.Message,
		Data:        data,
		Priority:    rendered.Priority,
		ExpiresAt:   expiresAt,
		ActionURL:   unresolvedToEmpty(rendered.ActionURL),
		ActionLabel: rendered.ActionLabel,
	})
}

// NotifyEvent creates a notification from the registered template for typ.
func (s *Service) NotifyEvent(ctx context.Context, userID string, typ models.NotificationType, data map[string]interface{}) (*models.Notification, error) {
	return s.CreateFromTemplate(ctx, userID, typ, data, nil)
}

func (s *Service) MarkAsRead(ctx context.Context, userID, notificationID string) error {
	if err := validation.UUID("userId", userID); err != nil {
		return err
	}
	if err := validation.UUID("notificationId", notificationID); err != nil {
		return err
	}
	if err := s.store.MarkAsRead(ctx, userID, notificationID); err != nil {
		return fmt.Errorf("mark as read: %w", err)
	}
	return nil
}

func (s *Service) MarkAllAsRead(ctx context.Context, userID string) (int64, error) {
	if err := validation.UUID("userId", userID); err != nil {
		return 0, err
	}
	n, err := s.store.MarkAllAsRead(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all as read: %w", err)
	}
	return n, nil
}

type BulkAction string

const (
	BulkMarkRead   BulkAction = "mark_read"
	BulkMarkUnread BulkAction = "mark_unread"
	BulkDelete     BulkAction = "delete"
)

// BulkAction applies action to the user's notifications in ids and returns the rows affected.
func (s *Service) BulkAction(ctx context.Context, userID string, ids []string, action BulkAction) (int64, error) {
	if err := validation.UUID("userId", userID); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	for _, id := range ids {
		if err := validation.UUID("ids", id); err != nil {
			return 0, err
		}
	}

	var (
		n   int64
		err error
	)
	switch action {
	case BulkMarkRead:
		n, err = s.store.SetRead(ctx, userID, ids, true)
	case BulkMarkUnread:
		n, err = s.store.SetRead(ctx, userID, ids, false)
	case BulkDelete:
		n, err = s.store.DeleteMany(ctx, userID, ids)
	default:
		return 0, errors.NewValidationError("action", fmt.Sprintf("unknown bulk action %q", action))
	}
	if err != nil {
		return 0, fmt.Errorf("bulk %s: %w", action, err)
	}
	return n, nil
}

// GetNotifications lists a user's notifications. An unmigrated table or denied read yields an empty list.
func (s *Service) GetNotifications(ctx context.Context, userID string, filter models.NotificationFilter) ([]models.Notification, error) {
	if err := validation.UUID("userId", userID); err != nil {
		return nil, err
	}
	if filter.Priority != "" && !filter.Priority.Valid() {
		return nil, errors.NewValidationError("priority", fmt.Sprintf("invalid priority %q", filter.Priority))
	}
	list, err := s.store.List(ctx, userID, filter)
	if err != nil {
		if s.degraded(err, "list notifications", userID) {
			return []models.Notification{}, nil
		}
		return nil, fmt.Errorf("get notifications: %w", err)
	}
	return list, nil
}

// GetNotificationStats counts a user's notifications in one pass. Recent means created in the last 24h.
func (s *Service) GetNotificationStats(ctx context.Context, userID string) (*models.NotificationStats, error) {
	list, err := s.GetNotifications(ctx, userID, models.NotificationFilter{})
	if err != nil {
		return nil, err
	}

	stats := &models.NotificationStats{
		ByType:     map[models.NotificationType]int{},
		ByPriority: map[models.Priority]int{},
	}
	since := s.now().Add(-24 * time.Hour)
	for _, n := range list {
		stats.Total++
		if !n.Read {
			stats.Unread++
		}
		stats.ByType[n.Type]++
		stats.ByPriority[n.Priority]++
		if n.CreatedAt.After(since) {
			stats.Recent++
		}
	}
	return stats, nil
}

// CleanupExpiredNotifications deletes every notification past its expiry. Safe to repeat.
func (s *Service) CleanupExpiredNotifications(ctx context.Context) (int64, error) {
	n, err := s.store.DeleteExpired(ctx, s.now().UTC())
	if err != nil {
		if database.IsUndefinedTable(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("cleanup expired notifications: %w", err)
	}
	if n > 0 {
		s.log.Info("expired notifications removed", map[string]interface{}{"count": n})
	}
	return n, nil
}

func (s *Service) degraded(err error, op, userID string) bool {
	switch {
	case database.IsUndefinedTable(err):
		s.log.Warn("notifications table missing, returning empty result", map[string]interface{}{"op": op, "userId": userID})
		return true
	case database.IsPermissionDenied(err):
		s.log.Warn("notification read denied, returning empty result", map[string]interface{}{"op": op, "userId": userID})
		return true
	}
	return false
}
