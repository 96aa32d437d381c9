package recalculateprogress

import (
	"context"
	"time"

	"booking-workers/internal/common/camunda"
	"booking-workers/internal/common/config"
	"booking-workers/internal/common/errors"
	"booking-workers/internal/common/logger"
	"booking-workers/internal/common/validation"
	"booking-workers/internal/progress"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "recalculate-progress"

var inputSchema = validation.MustCompile(`{
	"type": "object",
	"properties": {
		"bookingId":   {"type": "string", "format": "uuid"},
		"milestoneId": {"type": "string", "format": "uuid"}
	},
	"anyOf": [
		{"required": ["bookingId"]},
		{"required": ["milestoneId"]}
	]
}`)

// Recalculator is the part of the progress engine this worker drives.
type Recalculator interface {
	RecalculateAll(ctx context.Context, bookingID string) (*progress.BookingResult, error)
	RecalculateMilestone(ctx context.Context, milestoneID string) (int, error)
}

type Handler struct {
	service Recalculator
	errors  *errors.ErrorHandler
	timeout time.Duration
	logger  logger.Logger
}

func NewHandler(service Recalculator, wcfg config.WorkerConfig, log logger.Logger) *Handler {
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

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.GetKey(),
		"workflowKey": job.GetProcessInstanceKey(),
	})

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
	}
}

// Execute recomputes one milestone (and its booking) when milestoneId is set, otherwise
// the whole booking tree.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input.MilestoneID != "" {
		pct, err := h.service.RecalculateMilestone(ctx, input.MilestoneID)
		if err != nil {
			return nil, err
		}
		return &Output{
			BookingID:         input.BookingID,
			MilestoneID:       input.MilestoneID,
			MilestoneProgress: &pct,
			RecalculatedAt:    time.Now().UTC(),
		}, nil
	}

	res, err := h.service.RecalculateAll(ctx, input.BookingID)
	if err != nil {
		return nil, err
	}
	return &Output{
		BookingID:       res.BookingID,
		ProjectProgress: &res.ProjectProgress,
		Milestones:      res.Milestones,
		RecalculatedAt:  time.Now().UTC(),
	}, nil
}
