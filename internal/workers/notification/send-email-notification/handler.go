package sendemailnotification

import (
	"context"
	"time"

	"booking-workers/internal/common/camunda"
	"booking-workers/internal/common/config"
	"booking-workers/internal/common/errors"
	"booking-workers/internal/common/logger"
	"booking-workers/internal/common/validation"
	"booking-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "send-email-notification"

var inputSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["notificationId"],
	"properties": {
		"notificationId": {"type": "string", "format": "uuid"},
		"recipientEmail": {"type": "string", "format": "email"},
		"recipientName": {"type": "string"},
		"style": {"type": "string", "enum": ["modern", "minimal", "corporate"]}
	}
}`)

type NotificationLoader interface {
	Get(ctx context.Context, id string) (*models.Notification, error)
}

type RecipientLookup interface {
	GetRecipient(ctx context.Context, userID string) (*models.Recipient, error)
}

type Sender interface {
	SendEmailNotification(ctx context.Context, n *models.Notification, recipientEmail, recipientName, style string) bool
}

type Handler struct {
	notifications NotificationLoader
	recipients    RecipientLookup
	sender        Sender
	errors        *errors.ErrorHandler
	timeout       time.Duration
	logger        logger.Logger
}

func NewHandler(notifications NotificationLoader, recipients RecipientLookup, sender Sender, wcfg config.WorkerConfig, log logger.Logger) *Handler {
	timeout := config.GetDuration(wcfg.Timeout)
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		notifications: notifications,
		recipients:    recipients,
		sender:        sender,
		errors:        errors.NewErrorHandler(log),
		timeout:       timeout,
		logger:        log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	var input Input
	if err := camunda.DecodeVariables(job, inputSchema, &input); err != nil {
		h.errors.HandleJobError(ctx, client, job, err)
		return
	}

	output, err := h.Execute(ctx, &input)
	if err != nil {
		h.errors.HandleJobError(ctx, client, job, err)
		return
	}

	if err := camunda.CompleteJob(ctx, client, job, output); err != nil {
		h.logger.Error("failed to complete job", map[string]interface{}{"jobKey": job.GetKey(), "error": err})
		return
	}
	h.logger.Info("email notification processed", map[string]interface{}{
		"jobKey":         job.GetKey(),
		"notificationId": output.NotificationID,
		"sent":           output.Sent,
	})
}

// Execute resends a stored notification. The recipient comes from the job when given,
// otherwise from the user's profile.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	n, err := h.notifications.Get(ctx, input.NotificationID)
	if err != nil {
		return nil, err
	}

	email, name := input.RecipientEmail, input.RecipientName
	if email == "" {
		rc, err := h.recipients.GetRecipient(ctx, n.UserID)
		if err != nil {
			return nil, err
		}
		email = rc.Email
		if name == "" {
			name = rc.FullName
		}
	}

	if !validation.ValidateEmail(email) {
		h.logger.Warn("recipient has no usable email address", map[string]interface{}{
			"notificationId": n.ID,
			"userId":         n.UserID,
		})
		return &Output{NotificationID: n.ID, Recipient: email, AttemptedAt: time.Now().UTC()}, nil
	}

	sent := h.sender.SendEmailNotification(ctx, n, email, name, input.Style)
	return &Output{
		NotificationID: n.ID,
		Recipient:      email,
		Sent:           sent,
		AttemptedAt:    time.Now().UTC(),
	}, nil
}
