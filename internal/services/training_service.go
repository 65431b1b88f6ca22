package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pifses/mlpipeline/internal/config"
	"github.com/pifses/mlpipeline/internal/logging"
	"github.com/pifses/mlpipeline/internal/metrics"
	"github.com/pifses/mlpipeline/internal/queue"
	"github.com/pifses/mlpipeline/internal/training"
	"golang.org/x/time/rate"
)

// Training outcome labels
const (
	trainAccepted    = "accepted"
	trainRejected    = "rejected"
	trainRateLimited = "rate_limited"
	trainEnqueueFail = "enqueue_failed"
)

// TrainingService accepts retraining requests. It records the job, puts it
// on the queue and returns without waiting for the trainer.
type TrainingService struct {
	logger    *logging.Logger
	jobs      *training.JobStore
	publisher queue.Publisher
	subject   string
	limiter   *rate.Limiter
	cfg       config.TrainingConfig
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewTrainingService creates a new TrainingService
func NewTrainingService(
	logger *logging.Logger,
	jobs *training.JobStore,
	publisher queue.Publisher,
	subject string,
	cfg config.TrainingConfig,
	m *metrics.Metrics,
) *TrainingService {
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(cfg.RateLimit)
	if cfg.RateLimit <= 0 {
		limit = rate.Inf
	}
	return &TrainingService{
		logger:    logger,
		jobs:      jobs,
		publisher: publisher,
		subject:   subject,
		limiter:   rate.NewLimiter(limit, burst),
		cfg:       cfg,
		metrics:   m,
		now:       time.Now,
	}
}

// TrainRequest represents a training request
type TrainRequest struct {
	StoreID      string
	ProductID    string
	LookbackDays int
}

// TrainResult is returned when a job is accepted
type TrainResult struct {
	JobID         string          `json:"job_id"`
	Status        training.Status `json:"status"`
	Message       string          `json:"message"`
	EstimatedTime string          `json:"estimated_time"`
}

// Validate checks the request against the configured lookback bounds
func (r *TrainRequest) Validate(minLookback, maxLookback int) error {
	if r.StoreID == "" {
		return validationError("store_id", "store_id is required")
	}
	if r.LookbackDays < minLookback || r.LookbackDays > maxLookback {
		return validationError("lookback_days",
			fmt.Sprintf("lookback_days must be between %d and %d, got %d", minLookback, maxLookback, r.LookbackDays))
	}
	return nil
}

// Train accepts a job and enqueues it
func (s *TrainingService) Train(ctx context.Context, req *TrainRequest) (*TrainResult, error) {
	if err := req.Validate(s.cfg.MinLookbackDays, s.cfg.MaxLookbackDays); err != nil {
		s.metrics.TrainingJobs.WithLabelValues(trainRejected).Inc()
		return nil, err
	}

	if !s.limiter.Allow() {
		s.metrics.TrainingJobs.WithLabelValues(trainRateLimited).Inc()
		return nil, NewServiceError(CodeRateLimited, "too many training requests, retry later")
	}

	log := s.logger.WithContext(ctx)
	job := training.NewJob(req.StoreID, req.ProductID, req.LookbackDays, s.now())

	if err := s.jobs.Save(ctx, job); err != nil {
		return nil, pipelineError(err)
	}

	if err := training.Enqueue(ctx, s.publisher, s.subject, job); err != nil {
		s.metrics.TrainingJobs.WithLabelValues(trainEnqueueFail).Inc()
		log.Error("Failed to enqueue training job", "job_id", job.ID, "error", err)

		finished := s.now().UTC()
		job.Status = training.StatusFailed
		job.FinishedAt = &finished
		job.Error = err.Error()
		if saveErr := s.jobs.Save(context.WithoutCancel(ctx), job); saveErr != nil {
			log.Warn("Failed to mark job failed", "job_id", job.ID, "error", saveErr)
		}
		return nil, NewServiceErrorWithDetails(CodeUnavailable, "training queue unavailable",
			map[string]interface{}{"job_id": job.ID})
	}

	s.metrics.TrainingJobs.WithLabelValues(trainAccepted).Inc()
	log.Info("Training job accepted",
		"job_id", job.ID,
		"store_id", job.StoreID,
		"lookback_days", job.LookbackDays)

	return &TrainResult{
		JobID:         job.ID,
		Status:        job.Status,
		Message:       "Training started",
		EstimatedTime: s.cfg.EstimatedTime,
	}, nil
}

// GetJob returns the stored record of a job
func (s *TrainingService) GetJob(ctx context.Context, id string) (*training.Job, error) {
	if id == "" {
		return nil, validationError("job_id", "job_id is required")
	}
	job, err := s.jobs.Get(ctx, id)
	if err != nil {
		if errors.Is(err, training.ErrJobNotFound) {
			return nil, NewServiceErrorWithDetails(CodeNotFound, "training job not found",
				map[string]interface{}{"job_id": id})
		}
		return nil, pipelineError(err)
	}
	return &job, nil
}

// ListJobs returns every known job, oldest first
func (s *TrainingService) ListJobs(ctx context.Context) ([]training.Job, error) {
	jobs, err := s.jobs.List(ctx)
	if err != nil {
		return nil, pipelineError(err)
	}
	return jobs, nil
}
