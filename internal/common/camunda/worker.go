// internal/common/camunda/worker.go
package camunda

import (
	"context"
	"sync"
	"time"

	"booking-workers/internal/common/config"
	"booking-workers/internal/common/logger"
	"booking-workers/internal/common/metrics"
	"booking-workers/internal/common/observability"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// JobHandler matches the Zeebe handler signature every worker package exposes as Handle.
type JobHandler func(client worker.JobClient, job entities.Job)

// Manager opens job workers and closes them together on shutdown.
type Manager struct {
	client  zbc.Client
	obs     *observability.Observability
	log     logger.Logger
	mu      sync.Mutex
	workers []worker.JobWorker
}

func NewManager(client zbc.Client, obs *observability.Observability, log logger.Logger) *Manager {
	return &Manager{client: client, obs: obs, log: log}
}

// Start opens a worker for taskType unless it is disabled in config.
func (m *Manager) Start(taskType string, wcfg config.WorkerConfig, handler JobHandler) {
	if !wcfg.Enabled {
		m.log.Info("worker disabled", map[string]interface{}{"taskType": taskType})
		return
	}

	jw := m.client.NewJobWorker().
		JobType(taskType).
		Handler(Instrument(taskType, m.obs, handler)).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(config.GetDuration(wcfg.Timeout)).
		Open()

	m.mu.Lock()
	m.workers = append(m.workers, jw)
	m.mu.Unlock()

	m.log.Info("worker started", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": wcfg.MaxJobsActive,
		"timeout_ms":    wcfg.Timeout,
	})
}

// Close stops polling on every worker and waits for in-flight jobs.
func (m *Manager) Close() {
	m.mu.Lock()
	workers := m.workers
	m.workers = nil
	m.mu.Unlock()

	for _, jw := range workers {
		jw.Close()
		jw.AwaitClose()
	}
}

// Instrument records duration and count metrics around a handler.
func Instrument(taskType string, obs *observability.Observability, handler JobHandler) worker.JobHandler {
	return func(client worker.JobClient, job entities.Job) {
		start := time.Now()
		handler(client, job)
		elapsed := time.Since(start)

		metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(elapsed.Seconds())
		obs.RecordJobProcessed(context.Background(), taskType, "handled")
		obs.RecordJobDuration(context.Background(), taskType, elapsed, "handled")
	}
}

// completeRetry stays well inside the shortest worker timeout.
var completeRetry = &RetryConfig{MaxRetries: 2, BaseDelay: 200 * time.Millisecond, MaxDelay: time.Second}

// CompleteJob completes job with output as its variables, retrying transient gateway errors.
func CompleteJob(ctx context.Context, client worker.JobClient, job entities.Job, output interface{}) error {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		return err
	}
	err = ExecuteWithRetry(ctx, completeRetry, func(ctx context.Context) error {
		_, err := cmd.Send(ctx)
		return err
	}, "complete job")
	if err != nil {
		return err
	}
	metrics.WorkerJobsCompleted.WithLabelValues(job.Type).Inc()
	return nil
}
