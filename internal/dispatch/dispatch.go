// Package dispatch runs notification delivery off the caller's path.
package dispatch

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"booking-workers/internal/common/logger"
	"booking-workers/internal/common/metrics"
	"booking-workers/internal/models"

	"github.com/google/uuid"
)

// ErrQueueFull is returned by Enqueue when the job was dropped.
var ErrQueueFull = stderrors.New("dispatch queue full")

// ErrClosed is returned by Enqueue after Close.
var ErrClosed = stderrors.New("dispatcher closed")

// Job is one delivery of a persisted notification. Email and SMS say which
// channels the recipient's settings allow.
type Job struct {
	ID           string              `json:"id"`
	Notification models.Notification `json:"notification"`
	Email        bool                `json:"email"`
	SMS          bool                `json:"sms"`
	EnqueuedAt   time.Time           `json:"enqueuedAt"`
}

// NewJob wraps n with a fresh id, email only.
func NewJob(n models.Notification) Job {
	return Job{ID: uuid.NewString(), Notification: n, Email: true, EnqueuedAt: time.Now().UTC()}
}

// Handler delivers one job. A returned error is reported, never retried.
type Handler func(ctx context.Context, job Job) error

// JobError ties a handler failure to its job.
type JobError struct {
	Job Job
	Err error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("delivery job %s for notification %s: %v", e.Job.ID, e.Job.Notification.ID, e.Err)
}

func (e *JobError) Unwrap() error { return e.Err }

// Dispatcher accepts jobs without blocking and runs them on background workers.
type Dispatcher interface {
	Enqueue(ctx context.Context, job Job) error
	Start(ctx context.Context, h Handler) error
	Errors() <-chan error
	Close() error
}

// errorSink publishes handler errors without ever blocking a worker.
type errorSink struct {
	ch  chan error
	log logger.Logger
}

func newErrorSink(size int, log logger.Logger) *errorSink {
	return &errorSink{ch: make(chan error, size), log: log}
}

func (s *errorSink) report(job Job, err error) {
	metrics.DispatchFailures.Inc()
	jobErr := &JobError{Job: job, Err: err}
	s.log.Warn("notification delivery failed", map[string]interface{}{
		"jobId":          job.ID,
		"notificationId": job.Notification.ID,
		"type":           string(job.Notification.Type),
		"error":          err,
	})
	select {
	case s.ch <- jobErr:
	default:
	}
}

// run calls h, turning a panic into a reported error.
func (s *errorSink) run(ctx context.Context, h Handler, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
		if err != nil {
			s.report(job, err)
		}
	}()
	return h(ctx, job)
}

// MemoryDispatcher is a bounded in-process queue.
type MemoryDispatcher struct {
	jobs    chan Job
	workers int
	errs    *errorSink
	log     logger.Logger

	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup
}

func NewMemoryDispatcher(queueSize, workers int, log logger.Logger) *MemoryDispatcher {
	if queueSize <= 0 {
		queueSize = 256
	}
	if workers <= 0 {
		workers = 1
	}
	log = log.WithFields(map[string]interface{}{"component": "dispatch", "backend": "memory"})
	return &MemoryDispatcher{
		jobs:    make(chan Job, queueSize),
		workers: workers,
		errs:    newErrorSink(queueSize, log),
		log:     log,
	}
}

// Enqueue never blocks. A full queue drops the job and returns ErrQueueFull.
func (d *MemoryDispatcher) Enqueue(_ context.Context, job Job) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	select {
	case d.jobs <- job:
		return nil
	default:
		metrics.DispatchDropped.Inc()
		d.log.Error("delivery job dropped", map[string]interface{}{
			"jobId":          job.ID,
			"notificationId": job.Notification.ID,
			"queueSize":      cap(d.jobs),
		})
		return ErrQueueFull
	}
}

func (d *MemoryDispatcher) Start(ctx context.Context, h Handler) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return fmt.Errorf("dispatcher already started")
	}
	d.started = true

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for job := range d.jobs {
				_ = d.errs.run(ctx, h, job)
			}
		}()
	}
	d.log.Info("dispatcher started", map[string]interface{}{"workers": d.workers})
	return nil
}

func (d *MemoryDispatcher) Errors() <-chan error {
	return d.errs.ch
}

// Close stops intake, drains queued jobs and waits for the workers.
func (d *MemoryDispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()

	d.wg.Wait()
	return nil
}
