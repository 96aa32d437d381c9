package email

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"booking-workers/internal/common/errors"
	"booking-workers/internal/common/logger"
	"booking-workers/internal/dispatch"
	"booking-workers/internal/models"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockSESService struct {
	SendEmailFunc func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
	calls         []*ses.SendEmailInput
}

func (m *MockSESService) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	m.calls = append(m.calls, params)
	return m.SendEmailFunc(ctx, params, optFns...)
}

type MockSNSService struct {
	PublishFunc func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
	calls       []*sns.PublishInput
}

func (m *MockSNSService) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	m.calls = append(m.calls, params)
	return m.PublishFunc(ctx, params, optFns...)
}

type stubStores struct {
	mu        sync.Mutex
	prefs     map[string]*models.EmailPreferences
	prefsErr  error
	recipient map[string]*models.Recipient
	logs      []models.DeliveryLog
}

func (s *stubStores) GetEmailPreferences(_ context.Context, userID string) (*models.EmailPreferences, error) {
	if s.prefsErr != nil {
		return nil, s.prefsErr
	}
	return s.prefs[userID], nil
}

func (s *stubStores) InsertDeliveryLog(_ context.Context, l *models.DeliveryLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, *l)
	return nil
}

func (s *stubStores) GetRecipient(_ context.Context, userID string) (*models.Recipient, error) {
	if rc, ok := s.recipient[userID]; ok {
		return rc, nil
	}
	return nil, errors.NewNotFoundError("profile", userID)
}

type fixedLimiter struct {
	allow bool
	err   error
}

func (l fixedLimiter) Allow(context.Context, string) (bool, error) { return l.allow, l.err }

func okSES() *MockSESService {
	return &MockSESService{SendEmailFunc: func(context.Context, *ses.SendEmailInput, ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
		return &ses.SendEmailOutput{MessageId: awssdk.String("ses-msg-1")}, nil
	}}
}

func okSNS() *MockSNSService {
	return &MockSNSService{PublishFunc: func(context.Context, *sns.PublishInput, ...func(*sns.Options)) (*sns.PublishOutput, error) {
		return &sns.PublishOutput{MessageId: awssdk.String("sns-msg-1")}, nil
	}}
}

func newTestAdapter(t *testing.T, sesSvc *MockSESService, snsSvc *MockSNSService, stores *stubStores, limiter Limiter) *Adapter {
	t.Helper()
	return NewAdapter(Config{
		FromEmail:  "noreply@bookings.test",
		BaseURL:    "https://app.bookings.test/",
		AppName:    "Bookings",
		Timeout:    time.Second,
		SMSEnabled: true,
	}, Deps{
		Preferences: stores,
		Logs:        stores,
		Recipients:  stores,
		SES:         sesSvc,
		SNS:         snsSvc,
		Limiter:     limiter,
		Logger:      logger.NewTestLogger(t),
	})
}

func invoiceNotification() *models.Notification {
	return &models.Notification{
		ID:          "n-1",
		UserID:      "u-1",
		Type:        models.TypeInvoiceOverdue,
		Title:       "Invoice INV-7 overdue",
		Message:     "Invoice INV-7 for 120 USD was due on 2026-04-01.",
		Priority:    models.PriorityUrgent,
		ActionURL:   "/invoices/inv-7",
		ActionLabel: "Pay invoice",
		Data: map[string]interface{}{
			"invoice_number": "INV-7",
			"amount":         120.0,
			"currency":       "usd",
			"due_date":       "2026-04-01",
		},
	}
}

func TestSendEmailNotification_Sent(t *testing.T) {
	sesSvc := okSES()
	stores := &stubStores{}
	a := newTestAdapter(t, sesSvc, nil, stores, nil)

	ok := a.SendEmailNotification(context.Background(), invoiceNotification(), "ana@example.com", "Ana", "corporate")
	require.True(t, ok)

	require.Len(t, sesSvc.calls, 1)
	in := sesSvc.calls[0]
	assert.Equal(t, []string{"ana@example.com"}, in.Destination.ToAddresses)
	assert.Equal(t, "noreply@bookings.test", awssdk.ToString(in.Source))
	assert.Equal(t, "Overdue: invoice INV-7", awssdk.ToString(in.Message.Subject.Data))

	html := awssdk.ToString(in.Message.Body.Html.Data)
	assert.Contains(t, html, "#dc2626")
	assert.Contains(t, html, "https://app.bookings.test/invoices/inv-7")
	assert.Contains(t, html, "120.00 USD")
	assert.Contains(t, html, "Apr 1, 2026")

	text := awssdk.ToString(in.Message.Body.Text.Data)
	assert.Contains(t, text, "Hi Ana,")
	assert.Contains(t, text, "Pay invoice: https://app.bookings.test/invoices/inv-7")

	require.Len(t, stores.logs, 1)
	assert.Equal(t, models.DeliverySent, stores.logs[0].Status)
	assert.Equal(t, "ses-msg-1", stores.logs[0].ProviderMessageID)
	assert.Equal(t, "n-1", stores.logs[0].NotificationID)
}

func TestSendEmailNotification_PreferencesGate(t *testing.T) {
	tests := []struct {
		name  string
		prefs *models.EmailPreferences
		want  bool
	}{
		{name: "no row sends", prefs: nil, want: true},
		{name: "disabled globally", prefs: &models.EmailPreferences{EmailEnabled: false}, want: false},
		{name: "type disabled", prefs: &models.EmailPreferences{EmailEnabled: true, DisabledTypes: []string{"invoice_overdue"}}, want: false},
		{name: "other type disabled", prefs: &models.EmailPreferences{EmailEnabled: true, DisabledTypes: []string{"task_created"}}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sesSvc := okSES()
			stores := &stubStores{prefs: map[string]*models.EmailPreferences{"u-1": tt.prefs}}
			a := newTestAdapter(t, sesSvc, nil, stores, nil)

			got := a.SendEmailNotification(context.Background(), invoiceNotification(), "ana@example.com", "Ana", "")
			assert.Equal(t, tt.want, got)
			if !tt.want {
				assert.Empty(t, sesSvc.calls)
			}
		})
	}
}

func TestSendEmailNotification_TransportFailureLogged(t *testing.T) {
	sesSvc := &MockSESService{SendEmailFunc: func(context.Context, *ses.SendEmailInput, ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
		return nil, stderrors.New("MessageRejected: address blacklisted")
	}}
	stores := &stubStores{}
	a := newTestAdapter(t, sesSvc, nil, stores, nil)

	ok := a.SendEmailNotification(context.Background(), invoiceNotification(), "ana@example.com", "Ana", "")
	assert.False(t, ok)
	require.Len(t, stores.logs, 1)
	assert.Equal(t, models.DeliveryFailed, stores.logs[0].Status)
	assert.Contains(t, stores.logs[0].Error, "MessageRejected")
}

func TestSendEmailNotification_TimeoutIsFailure(t *testing.T) {
	sesSvc := &MockSESService{SendEmailFunc: func(ctx context.Context, _ *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	stores := &stubStores{}
	a := newTestAdapter(t, sesSvc, nil, stores, nil)
	a.cfg.Timeout = 20 * time.Millisecond

	assert.False(t, a.SendEmailNotification(context.Background(), invoiceNotification(), "ana@example.com", "", ""))
	require.Len(t, stores.logs, 1)
	assert.Equal(t, models.DeliveryFailed, stores.logs[0].Status)
	assert.Contains(t, stores.logs[0].Error, "deadline exceeded")
}

func TestSendEmailNotification_NeverPanics(t *testing.T) {
	sesSvc := &MockSESService{SendEmailFunc: func(context.Context, *ses.SendEmailInput, ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
		panic("transport bug")
	}}
	stores := &stubStores{}
	a := newTestAdapter(t, sesSvc, nil, stores, nil)

	assert.NotPanics(t, func() {
		assert.False(t, a.SendEmailNotification(context.Background(), invoiceNotification(), "ana@example.com", "Ana", ""))
	})
	require.Len(t, stores.logs, 1)
	assert.Equal(t, models.DeliveryFailed, stores.logs[0].Status)

	assert.False(t, a.SendEmailNotification(context.Background(), nil, "ana@example.com", "Ana", ""))
}

func TestSendEmailNotification_MissingDataUsesDefaults(t *testing.T) {
	sesSvc := okSES()
	a := newTestAdapter(t, sesSvc, nil, &stubStores{}, nil)

	n := &models.Notification{ID: "n-2", UserID: "u-1", Type: models.TypeInvoiceSent, Title: "Invoice", Priority: models.PriorityHigh}
	require.True(t, a.SendEmailNotification(context.Background(), n, "ana@example.com", "", "minimal"))

	in := sesSvc.calls[0]
	assert.Equal(t, "Invoice for TBD", awssdk.ToString(in.Message.Subject.Data))
	assert.Contains(t, awssdk.ToString(in.Message.Body.Html.Data), "#ea580c")
	assert.Contains(t, awssdk.ToString(in.Message.Body.Text.Data), "Hello,")
}

func TestSendEmailNotification_RateLimited(t *testing.T) {
	sesSvc := okSES()
	stores := &stubStores{}
	a := newTestAdapter(t, sesSvc, nil, stores, fixedLimiter{allow: false})

	assert.False(t, a.SendEmailNotification(context.Background(), invoiceNotification(), "ana@example.com", "Ana", ""))
	assert.Empty(t, sesSvc.calls)
	require.Len(t, stores.logs, 1)
	assert.Equal(t, models.DeliverySkipped, stores.logs[0].Status)

	// Limiter outage fails open.
	a.limiter = fixedLimiter{err: stderrors.New("redis down")}
	assert.True(t, a.SendEmailNotification(context.Background(), invoiceNotification(), "ana@example.com", "Ana", ""))
}

func TestDeliver(t *testing.T) {
	sesSvc := okSES()
	snsSvc := okSNS()
	stores := &stubStores{recipient: map[string]*models.Recipient{
		"u-1": {UserID: "u-1", Email: "ana@example.com", FullName: "Ana", Phone: "+15550100"},
	}}
	a := newTestAdapter(t, sesSvc, snsSvc, stores, nil)

	job := dispatch.NewJob(*invoiceNotification())
	job.SMS = true
	require.NoError(t, a.Deliver(context.Background(), job))
	assert.Len(t, sesSvc.calls, 1)
	require.Len(t, snsSvc.calls, 1)
	assert.Equal(t, "+15550100", awssdk.ToString(snsSvc.calls[0].PhoneNumber))
	assert.Contains(t, awssdk.ToString(snsSvc.calls[0].Message), "https://app.bookings.test/invoices/inv-7")

	var channels []string
	for _, l := range stores.logs {
		channels = append(channels, l.Channel+":"+l.Provider)
	}
	assert.ElementsMatch(t, []string{"email:ses", "sms:sns"}, channels)

	// Non-urgent notifications never go out as SMS.
	low := *invoiceNotification()
	low.Priority = models.PriorityLow
	job = dispatch.NewJob(low)
	job.SMS = true
	require.NoError(t, a.Deliver(context.Background(), job))
	assert.Len(t, snsSvc.calls, 1)
}

func TestDeliver_Failures(t *testing.T) {
	sesSvc := &MockSESService{SendEmailFunc: func(context.Context, *ses.SendEmailInput, ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
		return nil, stderrors.New("throttled")
	}}
	stores := &stubStores{recipient: map[string]*models.Recipient{"u-1": {UserID: "u-1", Email: "ana@example.com"}}}
	a := newTestAdapter(t, sesSvc, nil, stores, nil)

	err := a.Deliver(context.Background(), dispatch.NewJob(*invoiceNotification()))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeNotificationSendFailed))
	assert.Contains(t, err.Error(), "throttled")

	missing := *invoiceNotification()
	missing.UserID = "u-404"
	before := len(stores.logs)
	require.NoError(t, a.Deliver(context.Background(), dispatch.NewJob(missing)), "a user without a profile cannot be retried into existence")
	require.Len(t, stores.logs, before+1)
	assert.Equal(t, models.DeliverySkipped, stores.logs[before].Status)

	// Preference suppression is not a delivery failure.
	stores.prefs = map[string]*models.EmailPreferences{"u-1": {EmailEnabled: false}}
	assert.NoError(t, a.Deliver(context.Background(), dispatch.NewJob(*invoiceNotification())))
}

func TestDeliver_RecipientStoreErrorIsReturned(t *testing.T) {
	stores := &failingRecipients{err: stderrors.New("connection reset")}
	a := NewAdapter(Config{FromEmail: "noreply@bookings.test", Timeout: time.Second}, Deps{
		Recipients: stores,
		SES:        okSES(),
		Logger:     logger.NewTestLogger(t),
	})

	err := a.Deliver(context.Background(), dispatch.NewJob(*invoiceNotification()))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeNotificationSendFailed))
}

type failingRecipients struct{ err error }

func (f *failingRecipients) GetRecipient(context.Context, string) (*models.Recipient, error) {
	return nil, f.err
}

func TestSendSMS_InvalidPhoneSkipped(t *testing.T) {
	for _, phone := range []string{"12", "555-0100", "+0123456789", "call me"} {
		t.Run(phone, func(t *testing.T) {
			snsSvc := okSNS()
			stores := &stubStores{}
			a := newTestAdapter(t, okSES(), snsSvc, stores, nil)

			assert.False(t, a.SendSMS(context.Background(), invoiceNotification(), phone))
			assert.Empty(t, snsSvc.calls)
			require.Len(t, stores.logs, 1)
			assert.Equal(t, models.DeliverySkipped, stores.logs[0].Status)
			assert.Equal(t, ChannelSMS, stores.logs[0].Channel)
		})
	}
}

func TestSMSText_TruncatesOnRunes(t *testing.T) {
	n := invoiceNotification()
	n.Title = strings.Repeat("é", 100)
	n.Message = strings.Repeat("ü", 100)

	text := smsText(n, "")
	assert.True(t, utf8.ValidString(text))
	assert.Equal(t, 140, utf8.RuneCountInString(text))
	assert.True(t, strings.HasSuffix(text, "..."))

	withURL := smsText(n, "https://app.bookings.test/invoices/inv-7")
	assert.True(t, utf8.ValidString(withURL))
	assert.True(t, strings.HasSuffix(withURL, "https://app.bookings.test/invoices/inv-7"))
}
