package training

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pifses/mlpipeline/internal/logging"
	"github.com/pifses/mlpipeline/internal/queue"
	"github.com/pifses/mlpipeline/internal/utils"
)

// Worker consumes training jobs from the queue, runs them through a
// Trainer and records each status transition in the JobStore.
type Worker struct {
	subscriber queue.Subscriber
	subject    string
	jobs       *JobStore
	trainer    Trainer
	timeout    time.Duration
	now        func() time.Time
	logger     *logging.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
}

// NewWorker creates a worker. timeout bounds a single Train call; zero
// means no bound.
func NewWorker(sub queue.Subscriber, subject string, jobs *JobStore, trainer Trainer, timeout time.Duration) *Worker {
	return &Worker{
		subscriber: sub,
		subject:    subject,
		jobs:       jobs,
		trainer:    trainer,
		timeout:    timeout,
		now:        time.Now,
		logger:     logging.Global().With("component", "training-worker"),
	}
}

// Start subscribes to the job subject
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("worker already running")
	}

	w.ctx, w.cancel = context.WithCancel(context.Background())
	if err := w.subscriber.Subscribe(w.subject, w.handle); err != nil {
		w.cancel()
		return fmt.Errorf("failed to subscribe to %s: %w", w.subject, err)
	}

	w.running = true
	w.logger.Info("Training worker started", "subject", w.subject)
	return nil
}

// Stop unsubscribes and cancels any in-flight Train call
func (w *Worker) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}
	w.running = false
	w.cancel()

	if err := w.subscriber.Unsubscribe(w.subject); err != nil {
		return err
	}
	w.logger.Info("Training worker stopped", "subject", w.subject)
	return nil
}

// handle processes one queue message. It returns an error only when the
// message should be redelivered, which is when the job store is unreachable.
func (w *Worker) handle(data []byte) error {
	job, err := DecodeJob(data)
	if err != nil {
		w.logger.Error("Dropping undecodable training message", "error", err)
		return nil
	}

	w.mu.Lock()
	parent := w.ctx
	w.mu.Unlock()
	return w.process(parent, job)
}

func (w *Worker) process(parent context.Context, job Job) error {
	if stored, err := w.jobs.Get(parent, job.ID); err == nil && stored.Terminal() {
		w.logger.Debug("Skipping already finished job", "job_id", job.ID, "status", stored.Status)
		return nil
	} else if err != nil && !errors.Is(err, ErrJobNotFound) {
		return err
	}

	started := w.now().UTC()
	job.Status = StatusRunning
	job.StartedAt = &started
	if err := w.jobs.Save(parent, job); err != nil {
		return err
	}

	ctx := parent
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, w.timeout)
		defer cancel()
	}

	trainErr := w.trainer.Train(ctx, job)

	finished := w.now().UTC()
	job.FinishedAt = &finished
	if trainErr != nil {
		job.Status = StatusFailed
		job.Error = trainErr.Error()
		w.logger.Error("Training job failed", "job_id", job.ID, "error", trainErr)
	} else {
		job.Status = StatusCompleted
		w.logger.Info("Training job completed",
			"job_id", job.ID, "duration_ms", finished.Sub(started).Milliseconds())
	}

	// Record the outcome even if the worker is shutting down
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(parent), utils.MetadataTimeout)
	defer cancel()
	return w.jobs.Save(saveCtx, job)
}
