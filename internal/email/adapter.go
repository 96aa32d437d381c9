// Package email renders notifications as email and delivers them through SES,
// with SMS through SNS for urgent notifications.
package email

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"booking-workers/internal/common/aws"
	"booking-workers/internal/common/errors"
	"booking-workers/internal/common/logger"
	"booking-workers/internal/common/metrics"
	"booking-workers/internal/common/validation"
	"booking-workers/internal/dispatch"
	"booking-workers/internal/models"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
)

const (
	ProviderSES = "ses"
	ProviderSNS = "sns"

	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

type PreferenceStore interface {
	GetEmailPreferences(ctx context.Context, userID string) (*models.EmailPreferences, error)
}

type DeliveryLogStore interface {
	InsertDeliveryLog(ctx context.Context, l *models.DeliveryLog) error
}

type RecipientStore interface {
	GetRecipient(ctx context.Context, userID string) (*models.Recipient, error)
}

type Config struct {
	FromEmail    string
	ReplyTo      string
	BaseURL      string
	AppName      string
	DefaultStyle Style
	Timeout      time.Duration
	SMSEnabled   bool
	SMSSenderID  string
}

type Deps struct {
	Preferences PreferenceStore
	Logs        DeliveryLogStore
	Recipients  RecipientStore
	SES         aws.SESAPI
	SNS         aws.SNSAPI
	Limiter     Limiter
	Logger      logger.Logger
}

type Adapter struct {
	cfg         Config
	preferences PreferenceStore
	logs        DeliveryLogStore
	recipients  RecipientStore
	ses         aws.SESAPI
	sns         aws.SNSAPI
	limiter     Limiter
	log         logger.Logger
}

func NewAdapter(cfg Config, d Deps) *Adapter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.DefaultStyle == "" {
		cfg.DefaultStyle = StyleModern
	}
	if cfg.AppName == "" {
		cfg.AppName = "Bookings"
	}
	return &Adapter{
		cfg:         cfg,
		preferences: d.Preferences,
		logs:        d.Logs,
		recipients:  d.Recipients,
		ses:         d.SES,
		sns:         d.SNS,
		limiter:     d.Limiter,
		log:         d.Logger.WithFields(map[string]interface{}{"component": "email"}),
	}
}

// SendEmailNotification renders n and sends it to recipientEmail. It reports whether the
// message was accepted by the transport and never panics. An empty style uses the
// recipient's stored style, then the configured default.
func (a *Adapter) SendEmailNotification(ctx context.Context, n *models.Notification, recipientEmail, recipientName, style string) bool {
	status, _ := a.sendEmail(ctx, n, recipientEmail, recipientName, style)
	return status == models.DeliverySent
}

func (a *Adapter) sendEmail(ctx context.Context, n *models.Notification, to, name, style string) (status models.DeliveryStatus, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("email delivery panic: %v", r)
			status = models.DeliveryFailed
			a.writeLog(ctx, n, ChannelEmail, to, status, "", err)
		}
		metrics.EmailDeliveries.WithLabelValues(string(status)).Inc()
	}()

	if n == nil {
		return models.DeliveryFailed, fmt.Errorf("nil notification")
	}
	if strings.TrimSpace(to) == "" {
		err = fmt.Errorf("recipient has no email address")
		a.writeLog(ctx, n, ChannelEmail, to, models.DeliverySkipped, "", err)
		return models.DeliverySkipped, nil
	}

	prefs := a.loadPreferences(ctx, n.UserID)
	if prefs != nil && !prefs.AllowsType(n.Type) {
		a.log.Debug("email suppressed by preferences", map[string]interface{}{
			"notificationId": n.ID,
			"userId":         n.UserID,
			"type":           string(n.Type),
		})
		return models.DeliverySkipped, nil
	}
	if style == "" && prefs != nil {
		style = prefs.Style
	}
	if style == "" {
		style = string(a.cfg.DefaultStyle)
	}

	if !a.allow(ctx, n.UserID) {
		a.writeLog(ctx, n, ChannelEmail, to, models.DeliverySkipped, "", fmt.Errorf("rate limit exceeded"))
		return models.DeliverySkipped, nil
	}

	msg := *n
	msg.ActionURL = a.absoluteURL(n.ActionURL)
	content := BuildContent(&msg, name)
	html, err := RenderHTML(ParseStyle(style), content, &msg, name, a.cfg.AppName)
	if err != nil {
		a.writeLog(ctx, n, ChannelEmail, to, models.DeliveryFailed, "", err)
		return models.DeliveryFailed, fmt.Errorf("render email: %w", err)
	}

	messageID, err := a.submit(ctx, to, content.Subject, html, content.Text)
	if err != nil {
		a.log.Error("email send failed", map[string]interface{}{
			"notificationId": n.ID,
			"userId":         n.UserID,
			"error":          err,
		})
		a.writeLog(ctx, n, ChannelEmail, to, models.DeliveryFailed, "", err)
		return models.DeliveryFailed, err
	}

	a.log.Info("email sent", map[string]interface{}{
		"notificationId": n.ID,
		"userId":         n.UserID,
		"messageId":      messageID,
		"style":          style,
	})
	a.writeLog(ctx, n, ChannelEmail, to, models.DeliverySent, messageID, nil)
	return models.DeliverySent, nil
}

func (a *Adapter) submit(ctx context.Context, to, subject, html, text string) (string, error) {
	if a.ses == nil {
		return "", fmt.Errorf("mail transport not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	input := &ses.SendEmailInput{
		Destination: &types.Destination{ToAddresses: []string{to}},
		Message: &types.Message{
			Subject: &types.Content{Data: awssdk.String(subject), Charset: awssdk.String("UTF-8")},
			Body: &types.Body{
				Html: &types.Content{Data: awssdk.String(html), Charset: awssdk.String("UTF-8")},
				Text: &types.Content{Data: awssdk.String(text), Charset: awssdk.String("UTF-8")},
			},
		},
		Source: awssdk.String(a.cfg.FromEmail),
	}
	if a.cfg.ReplyTo != "" {
		input.ReplyToAddresses = []string{a.cfg.ReplyTo}
	}

	out, err := a.ses.SendEmail(ctx, input)
	if err != nil {
		return "", err
	}
	return awssdk.ToString(out.MessageId), nil
}

// SendSMS sends a short text for urgent notifications to phone.
func (a *Adapter) SendSMS(ctx context.Context, n *models.Notification, phone string) bool {
	status, _ := a.sendSMS(ctx, n, phone)
	return status == models.DeliverySent
}

func (a *Adapter) sendSMS(ctx context.Context, n *models.Notification, phone string) (status models.DeliveryStatus, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sms delivery panic: %v", r)
			status = models.DeliveryFailed
		}
		metrics.SMSDeliveries.WithLabelValues(string(status)).Inc()
	}()

	if !a.cfg.SMSEnabled || a.sns == nil || n.Priority != models.PriorityUrgent || strings.TrimSpace(phone) == "" {
		return models.DeliverySkipped, nil
	}
	if !validation.ValidatePhone(phone) {
		a.log.Warn("sms skipped, phone is not E.164", map[string]interface{}{"notificationId": n.ID, "userId": n.UserID})
		a.writeLog(ctx, n, ChannelSMS, phone, models.DeliverySkipped, "", fmt.Errorf("invalid phone number"))
		return models.DeliverySkipped, nil
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	input := &sns.PublishInput{
		PhoneNumber: awssdk.String(phone),
		Message:     awssdk.String(smsText(n, a.absoluteURL(n.ActionURL))),
	}
	if a.cfg.SMSSenderID != "" {
		input.MessageAttributes = map[string]snstypes.MessageAttributeValue{
			"AWS.SNS.SMS.SenderID": {DataType: awssdk.String("String"), StringValue: awssdk.String(a.cfg.SMSSenderID)},
		}
	}

	out, err := a.sns.Publish(ctx, input)
	if err != nil {
		a.log.Error("sms send failed", map[string]interface{}{"notificationId": n.ID, "error": err})
		a.writeLog(ctx, n, ChannelSMS, phone, models.DeliveryFailed, "", err)
		return models.DeliveryFailed, err
	}
	a.writeLog(ctx, n, ChannelSMS, phone, models.DeliverySent, awssdk.ToString(out.MessageId), nil)
	return models.DeliverySent, nil
}

func smsText(n *models.Notification, url string) string {
	text := n.Title
	if n.Message != "" {
		text += ": " + n.Message
	}
	if r := []rune(text); len(r) > 140 {
		text = string(r[:137]) + "..."
	}
	if url != "" {
		text += " " + url
	}
	return text
}

// Deliver is the dispatcher handler. It looks up the recipient and sends on every
// channel the job allows. Transport and store failures are returned; a user without a
// profile is logged as skipped.
func (a *Adapter) Deliver(ctx context.Context, job dispatch.Job) error {
	n := job.Notification
	if a.recipients == nil {
		return errors.NewNotificationSendFailedError(string(n.Type), fmt.Errorf("no recipient store"))
	}
	rc, err := a.recipients.GetRecipient(ctx, n.UserID)
	if errors.HasCode(err, errors.ErrCodeNotFound) {
		a.log.Warn("no profile for notification recipient", map[string]interface{}{"notificationId": n.ID, "userId": n.UserID})
		a.writeLog(ctx, &n, ChannelEmail, "", models.DeliverySkipped, "", err)
		return nil
	}
	if err != nil {
		return errors.NewNotificationSendFailedError(string(n.Type), err)
	}

	var errs []error
	if job.Email {
		if status, err := a.sendEmail(ctx, &n, rc.Email, rc.FullName, ""); status == models.DeliveryFailed {
			errs = append(errs, err)
		}
	}
	if job.SMS {
		if status, err := a.sendSMS(ctx, &n, rc.Phone); status == models.DeliveryFailed {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.NewNotificationSendFailedError(string(n.Type), stderrors.Join(errs...))
	}
	return nil
}

// loadPreferences returns nil when no row exists or it cannot be read; both mean "send".
func (a *Adapter) loadPreferences(ctx context.Context, userID string) *models.EmailPreferences {
	if a.preferences == nil {
		return nil
	}
	prefs, err := a.preferences.GetEmailPreferences(ctx, userID)
	if err != nil {
		a.log.Warn("email preferences unavailable", map[string]interface{}{"userId": userID, "error": err})
		return nil
	}
	return prefs
}

// allow fails open when the limiter backend is unreachable.
func (a *Adapter) allow(ctx context.Context, userID string) bool {
	if a.limiter == nil {
		return true
	}
	ok, err := a.limiter.Allow(ctx, userID)
	if err != nil {
		a.log.Warn("rate limiter unavailable", map[string]interface{}{"userId": userID, "error": err})
		return true
	}
	return ok
}

func (a *Adapter) absoluteURL(u string) string {
	if u == "" || a.cfg.BaseURL == "" || !strings.HasPrefix(u, "/") {
		return u
	}
	return strings.TrimRight(a.cfg.BaseURL, "/") + u
}

// writeLog records the attempt. A failed write is logged and otherwise ignored.
func (a *Adapter) writeLog(ctx context.Context, n *models.Notification, channel, recipient string, status models.DeliveryStatus, messageID string, cause error) {
	if a.logs == nil || n == nil {
		return
	}
	entry := &models.DeliveryLog{
		NotificationID:    n.ID,
		Recipient:         recipient,
		Channel:           channel,
		Status:            status,
		Provider:          ProviderSES,
		ProviderMessageID: messageID,
	}
	if channel == ChannelSMS {
		entry.Provider = ProviderSNS
	}
	if cause != nil {
		entry.Error = cause.Error()
	}
	// The caller's context may already be past its deadline after a transport timeout.
	logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := a.logs.InsertDeliveryLog(logCtx, entry); err != nil {
		a.log.Warn("delivery log write failed", map[string]interface{}{
			"notificationId": n.ID,
			"status":         string(status),
			"error":          err,
		})
	}
}
