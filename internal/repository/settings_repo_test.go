package repository

import (
	"context"
	"testing"

	"booking-workers/internal/common/errors"
	"booking-workers/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsRepository_GetSettingsMissingRow(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSettingsRepository(db)

	mock.ExpectQuery("FROM notification_settings").WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"task_notifications"}))

	s, err := repo.GetSettings(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestSettingsRepository_GetSettings(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSettingsRepository(db)

	mock.ExpectQuery("FROM notification_settings").WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"task_notifications", "milestone_notifications", "booking_notifications",
			"payment_notifications", "invoice_notifications", "message_notifications",
			"document_notifications", "system_notifications", "email_notifications", "sms_notifications",
		}).AddRow(false, true, true, true, true, true, true, true, true, false))

	s, err := repo.GetSettings(context.Background(), "u-1")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.False(t, s.Allows(models.CategoryTask))
	assert.True(t, s.Allows(models.CategoryBooking))
	assert.False(t, s.SMSNotifications)
}

func TestSettingsRepository_GetEmailPreferences(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSettingsRepository(db)

	mock.ExpectQuery("FROM email_preferences").WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"email_enabled", "disabled_types", "style"}).
			AddRow(true, []byte("{task_updated,message_received}"), "minimal"))

	p, err := repo.GetEmailPreferences(context.Background(), "u-1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, []string{"task_updated", "message_received"}, p.DisabledTypes)
	assert.Equal(t, "minimal", p.Style)
	assert.False(t, p.AllowsType(models.TypeMessageReceived))
}

func TestSettingsRepository_GetRecipientNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSettingsRepository(db)

	mock.ExpectQuery("FROM profiles").WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"email", "full_name", "phone"}))

	_, err := repo.GetRecipient(context.Background(), "ghost")
	assert.True(t, errors.HasCode(err, errors.ErrCodeNotFound))
}

func TestSettingsRepository_InsertDeliveryLog(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSettingsRepository(db)

	mock.ExpectExec("INSERT INTO email_delivery_logs").
		WithArgs(sqlmock.AnyArg(), "n-1", "client@example.com", "email", "sent", "ses", "msg-1", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	l := &models.DeliveryLog{
		NotificationID:    "n-1",
		Recipient:         "client@example.com",
		Channel:           "email",
		Status:            models.DeliverySent,
		Provider:          "ses",
		ProviderMessageID: "msg-1",
	}
	require.NoError(t, repo.InsertDeliveryLog(context.Background(), l))
	assert.NotEmpty(t, l.ID)
	assert.False(t, l.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}
