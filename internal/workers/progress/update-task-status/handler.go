package updatetaskstatus

import (
	"context"
	"time"

	"booking-workers/internal/common/camunda"
	"booking-workers/internal/common/config"
	"booking-workers/internal/common/errors"
	"booking-workers/internal/common/logger"
	"booking-workers/internal/common/validation"
	"booking-workers/internal/models"
	"booking-workers/internal/progress"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "update-task-status"

var inputSchema = validation.MustCompile(`{
	"type": "object",
	"required": ["taskId", "status"],
	"properties": {
		"taskId": {"type": "string", "format": "uuid"},
		"status": {"type": "string", "enum": ["pending", "in_progress", "completed", "cancelled", "on_hold"]},
		"progressPercentage": {"type": "integer", "minimum": 0, "maximum": 100}
	}
}`)

type TaskUpdater interface {
	UpdateTask(ctx context.Context, taskID string, u progress.TaskUpdate) (*models.Task, error)
}

type Handler struct {
	service TaskUpdater
	errors  *errors.ErrorHandler
	timeout time.Duration
	logger  logger.Logger
}

func NewHandler(service TaskUpdater, wcfg config.WorkerConfig, log logger.Logger) *Handler {
	timeout := config.GetDuration(wcfg.Timeout)
	if timeout <= 0 {
		timeout = 30 * time.Second
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
	h.logger.Info("task status updated", map[string]interface{}{
		"jobKey": job.GetKey(),
		"taskId": output.TaskID,
		"status": output.Status,
	})
}

// Execute changes the task's status; the progress engine recomputes its milestone and booking.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	status := models.TaskStatus(input.Status)
	u := progress.TaskUpdate{Status: &status, ProgressPercentage: input.ProgressPercentage}

	t, err := h.service.UpdateTask(ctx, input.TaskID, u)
	if err != nil {
		return nil, err
	}
	return &Output{
		TaskID:      t.ID,
		MilestoneID: t.MilestoneID,
		Status:      string(t.Status),
		CompletedAt: t.CompletedAt,
		UpdatedAt:   time.Now().UTC(),
	}, nil
}
