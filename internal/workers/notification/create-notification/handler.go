package createnotification

import (
	"context"
	"strings"
	"time"

	"booking-workers/internal/common/camunda"
	"booking-workers/internal/common/config"
	"booking-workers/internal/common/errors"
	"booking-workers/internal/common/logger"
	"booking-workers/internal/common/validation"
	"booking-workers/internal/models"
	"booking-workers/internal/notification"
	"booking-workers/internal/notification/templates"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "create-notification"

var inputSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["userId", "type"],
	"properties": {
		"userId": {"type": "string", "format": "uuid"},
		"type": {"type": "string", "minLength": 1},
		"title": {"type": "string"},
		"message": {"type": "string"},
		"data": {"type": "object"},
		"priority": {"type": "string", "enum": ["low", "medium", "high", "urgent"]},
		"expiresAt": {"type": "string", "format": "date-time"},
		"actionUrl": {"type": "string"},
		"actionLabel": {"type": "string"}
	}
}`)

type Creator interface {
	CreateNotification(ctx context.Context, req notification.Request) (*models.Notification, error)
	CreateFromTemplate(ctx context.Context, userID string, typ models.NotificationType, data map[string]interface{}, tmpl *templates.Template) (*models.Notification, error)
}

type Handler struct {
	service Creator
	errors  *errors.ErrorHandler
	timeout time.Duration
	logger  logger.Logger
}

func NewHandler(service Creator, wcfg config.WorkerConfig, log logger.Logger) *Handler {
	timeout := config.GetDuration(wcfg.Timeout)
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		service: service,
		errors:  errors.NewErrorHandler(log),
		timeout: timeout,
		logger:  log,
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
	h.logger.Info("notification created", map[string]interface{}{
		"jobKey":         job.GetKey(),
		"notificationId": output.NotificationID,
		"fromTemplate":   output.FromTemplate,
	})
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	typ := models.NotificationType(input.Type)

	var (
		n   *models.Notification
		err error
	)
	fromTemplate := strings.TrimSpace(input.Title) == ""
	if fromTemplate {
		n, err = h.service.CreateFromTemplate(ctx, input.UserID, typ, input.Data, nil)
	} else {
		n, err = h.service.CreateNotification(ctx, notification.Request{
			UserID:      input.UserID,
			Type:        typ,
			Title:       input.Title,
			Message:     input.Message,
			Data:        input.Data,
			Priority:    models.Priority(input.Priority),
			ExpiresAt:   input.ExpiresAt,
			ActionURL:   input.ActionURL,
			ActionLabel: input.ActionLabel,
		})
	}
	if err != nil {
		return nil, err
	}

	return &Output{
		NotificationID: n.ID,
		Type:           string(n.Type),
		Priority:       string(n.Priority),
		ActionURL:      n.ActionURL,
		FromTemplate:   fromTemplate,
		CreatedAt:      n.CreatedAt,
	}, nil
}
