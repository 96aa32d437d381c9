// internal/repository/settings_repo.go
package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"booking-workers/internal/common/errors"
	"booking-workers/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// SettingsRepository reads notification settings, email preferences and recipient
// profiles, and appends delivery logs.
type SettingsRepository struct {
	db *sql.DB
}

func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// GetSettings returns nil without error when the user has no settings row.
func (r *SettingsRepository) GetSettings(ctx context.Context, userID string) (*models.NotificationSettings, error) {
	s := models.NotificationSettings{UserID: userID}
	err := r.db.QueryRowContext(ctx, `
		SELECT task_notifications, milestone_notifications, booking_notifications,
			payment_notifications, invoice_notifications, message_notifications,
			document_notifications, system_notifications, email_notifications, sms_notifications
		FROM notification_settings WHERE user_id = $1`, userID).
		Scan(&s.TaskNotifications, &s.MilestoneNotifications, &s.BookingNotifications,
			&s.PaymentNotifications, &s.InvoiceNotifications, &s.MessageNotifications,
			&s.DocumentNotifications, &s.SystemNotifications, &s.EmailNotifications, &s.SMSNotifications)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("get notification settings", err)
	}
	return &s, nil
}

// GetEmailPreferences returns nil without error when the user has no preferences row.
func (r *SettingsRepository) GetEmailPreferences(ctx context.Context, userID string) (*models.EmailPreferences, error) {
	p := models.EmailPreferences{UserID: userID}
	var style sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT email_enabled, disabled_types, style
		FROM email_preferences WHERE user_id = $1`, userID).
		Scan(&p.EmailEnabled, pq.Array(&p.DisabledTypes), &style)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("get email preferences", err)
	}
	p.Style = style.String
	return &p, nil
}

func (r *SettingsRepository) GetRecipient(ctx context.Context, userID string) (*models.Recipient, error) {
	rc := models.Recipient{UserID: userID}
	err := r.db.QueryRowContext(ctx, `
		SELECT email, COALESCE(full_name, ''), COALESCE(phone, '')
		FROM profiles WHERE id = $1`, userID).
		Scan(&rc.Email, &rc.FullName, &rc.Phone)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("profile", userID)
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("get recipient", err)
	}
	return &rc, nil
}

// InsertDeliveryLog appends an outbound delivery record.
func (r *SettingsRepository) InsertDeliveryLog(ctx context.Context, l *models.DeliveryLog) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO email_delivery_logs (id, notification_id, recipient, channel, status, provider,
			provider_message_id, error, created_at)
		VALUES ($1, NULLIF($2, '')::uuid, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), $9)`,
		l.ID, l.NotificationID, l.Recipient, l.Channel, string(l.Status), l.Provider,
		l.ProviderMessageID, l.Error, l.CreatedAt)
	if err != nil {
		return errors.NewDatabaseInsertFailedError(err)
	}
	return nil
}
