package sendemailnotification

import (
	"context"
	"testing"

	"booking-workers/internal/common/camunda"
	"booking-workers/internal/common/config"
	"booking-workers/internal/common/errors"
	"booking-workers/internal/common/logger"
	"booking-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Get(ctx context.Context, id string) (*models.Notification, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Notification), args.Error(1)
}

func (m *MockStore) GetRecipient(ctx context.Context, userID string) (*models.Recipient, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Recipient), args.Error(1)
}

type MockSender struct {
	mock.Mock
}

func (m *MockSender) SendEmailNotification(ctx context.Context, n *models.Notification, email, name, style string) bool {
	return m.Called(ctx, n, email, name, style).Bool(0)
}

var stored = &models.Notification{ID: "n-1", UserID: "u-1", Type: models.TypeInvoiceOverdue, Title: "Invoice overdue"}

func TestExecute_LooksUpRecipient(t *testing.T) {
	store := new(MockStore)
	store.On("Get", mock.Anything, "n-1").Return(stored, nil)
	store.On("GetRecipient", mock.Anything, "u-1").
		Return(&models.Recipient{UserID: "u-1", Email: "ana@example.com", FullName: "Ana"}, nil)
	sender := new(MockSender)
	sender.On("SendEmailNotification", mock.Anything, stored, "ana@example.com", "Ana", "").Return(true)

	h := NewHandler(store, store, sender, config.WorkerConfig{Timeout: 3000}, logger.NewTestLogger(t))
	out, err := h.Execute(context.Background(), &Input{NotificationID: "n-1"})
	require.NoError(t, err)

	assert.True(t, out.Sent)
	assert.Equal(t, "ana@example.com", out.Recipient)
	sender.AssertExpectations(t)
}

func TestExecute_ExplicitRecipientSkipsLookup(t *testing.T) {
	store := new(MockStore)
	store.On("Get", mock.Anything, "n-1").Return(stored, nil)
	sender := new(MockSender)
	sender.On("SendEmailNotification", mock.Anything, stored, "ops@example.com", "", "corporate").Return(false)

	h := NewHandler(store, store, sender, config.WorkerConfig{}, logger.NewTestLogger(t))
	out, err := h.Execute(context.Background(), &Input{
		NotificationID: "n-1",
		RecipientEmail: "ops@example.com",
		Style:          "corporate",
	})
	require.NoError(t, err)

	assert.False(t, out.Sent)
	store.AssertNotCalled(t, "GetRecipient", mock.Anything, mock.Anything)
}

func TestExecute_LookupErrors(t *testing.T) {
	t.Run("notification missing", func(t *testing.T) {
		store := new(MockStore)
		store.On("Get", mock.Anything, "n-404").Return(nil, errors.NewNotFoundError("notification", "n-404"))

		h := NewHandler(store, store, new(MockSender), config.WorkerConfig{}, logger.NewNoOpLogger())
		_, err := h.Execute(context.Background(), &Input{NotificationID: "n-404"})
		assert.True(t, errors.HasCode(err, errors.ErrCodeNotFound))
	})

	t.Run("profile missing", func(t *testing.T) {
		store := new(MockStore)
		store.On("Get", mock.Anything, "n-1").Return(stored, nil)
		store.On("GetRecipient", mock.Anything, "u-1").Return(nil, errors.NewNotFoundError("profile", "u-1"))
		sender := new(MockSender)

		h := NewHandler(store, store, sender, config.WorkerConfig{}, logger.NewNoOpLogger())
		_, err := h.Execute(context.Background(), &Input{NotificationID: "n-1"})
		assert.True(t, errors.HasCode(err, errors.ErrCodeNotFound))
		sender.AssertNotCalled(t, "SendEmailNotification", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestExecute_UnusableProfileEmailIsNotSent(t *testing.T) {
	store := new(MockStore)
	store.On("Get", mock.Anything, "n-1").Return(stored, nil)
	store.On("GetRecipient", mock.Anything, "u-1").
		Return(&models.Recipient{UserID: "u-1", Email: "ana@", FullName: "Ana"}, nil)
	sender := new(MockSender)

	h := NewHandler(store, store, sender, config.WorkerConfig{}, logger.NewTestLogger(t))
	out, err := h.Execute(context.Background(), &Input{NotificationID: "n-1"})
	require.NoError(t, err)

	assert.False(t, out.Sent)
	assert.Equal(t, "ana@", out.Recipient)
	sender.AssertNotCalled(t, "SendEmailNotification", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestInputSchema(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr bool
	}{
		{name: "id only", doc: `{"notificationId":"5d2a9c7e-4f13-4b8a-a6e0-c1b2d3e4f501"}`},
		{name: "with recipient", doc: `{"notificationId":"5d2a9c7e-4f13-4b8a-a6e0-c1b2d3e4f501","recipientEmail":"a@b.co","style":"minimal"}`},
		{name: "bad email", doc: `{"notificationId":"5d2a9c7e-4f13-4b8a-a6e0-c1b2d3e4f501","recipientEmail":"not-an-address"}`, wantErr: true},
		{name: "unknown style", doc: `{"notificationId":"5d2a9c7e-4f13-4b8a-a6e0-c1b2d3e4f501","style":"retro"}`, wantErr: true},
		{name: "missing id", doc: `{}`, wantErr: true},
		{name: "malformed id", doc: `{"notificationId":"n-1"}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var input Input
			err := camunda.DecodeJSON(tt.doc, inputSchema, &input)
			if tt.wantErr {
				assert.True(t, errors.HasCode(err, errors.ErrCodeValidationFailed))
				return
			}
			require.NoError(t, err)
		})
	}
}
