package cleanupexpirednotifications

import (
	"context"
	"time"

	"booking-workers/internal/common/camunda"
	"booking-workers/internal/common/config"
	"booking-workers/internal/common/errors"
	"booking-workers/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "cleanup-expired-notifications"

type Cleaner interface {
	CleanupExpiredNotifications(ctx context.Context) (int64, error)
}

type Output struct {
	Deleted   int64     `json:"deleted"`
	CleanedAt time.Time `json:"cleanedAt"`
}

type Handler struct {
	service Cleaner
	errors  *errors.ErrorHandler
	timeout time.Duration
	logger  logger.Logger
}

func NewHandler(service Cleaner, wcfg config.WorkerConfig, log logger.Logger) *Handler {
	timeout := config.GetDuration(wcfg.Timeout)
	if timeout <= 0 {
		timeout = time.Minute
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		service: service,
		errors:  errors.NewErrorHandler(log),
		timeout: timeout,
		logger:  log,
	}
}

// Handle takes no variables.
func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	output, err := h.Execute(ctx)
	if err != nil {
		h.errors.HandleJobError(ctx, client, job, err)
		return
	}
	if err := camunda.CompleteJob(ctx, client, job, output); err != nil {
		h.logger.Error("failed to complete job", map[string]interface{}{"jobKey": job.GetKey(), "error": err})
		return
	}
	h.logger.Info("expired notifications cleaned", map[string]interface{}{"jobKey": job.GetKey(), "deleted": output.Deleted})
}

func (h *Handler) Execute(ctx context.Context) (*Output, error) {
	n, err := h.service.CleanupExpiredNotifications(ctx)
	if err != nil {
		return nil, errors.Normalize(err)
	}
	return &Output{Deleted: n, CleanedAt: time.Now().UTC()}, nil
}
