// Package training accepts retraining requests, carries them over the job
// queue and runs them through a pluggable Trainer.
package training

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"time"

	"github.com/pifses/mlpipeline/internal/logging"
	"github.com/pifses/mlpipeline/internal/metadata"
	"github.com/pifses/mlpipeline/internal/queue"
	"github.com/pifses/mlpipeline/internal/utils"
)

// Status is the lifecycle state of a training job
type Status string

const (
	StatusAccepted  Status = "accepted"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ErrJobNotFound is returned when no job has the requested id
var ErrJobNotFound = errors.New("training job not found")

// Job is a single retraining request for one store
type Job struct {
	ID           string     `json:"job_id"`
	StoreID      string     `json:"store_id"`
	ProductID    string     `json:"product_id,omitempty"`
	LookbackDays int        `json:"lookback_days"`
	Status       Status     `json:"status"`
	AcceptedAt   time.Time  `json:"accepted_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	Error        string     `json:"error,omitempty"`
}

// NewJobID returns "train-{store}-{unix seconds}"
func NewJobID(storeID string, at time.Time) string {
	return fmt.Sprintf("train-%s-%d", storeID, at.Unix())
}

// NewJob creates an accepted job stamped with at
func NewJob(storeID, productID string, lookbackDays int, at time.Time) Job {
	return Job{
		ID:           NewJobID(storeID, at),
		StoreID:      storeID,
		ProductID:    productID,
		LookbackDays: lookbackDays,
		Status:       StatusAccepted,
		AcceptedAt:   at.UTC(),
	}
}

// Terminal reports whether the job has finished
func (j Job) Terminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// JobStore persists jobs in the metadata store under "jobs/{id}"
type JobStore struct {
	store metadata.Store
}

// NewJobStore wraps a metadata store
func NewJobStore(store metadata.Store) *JobStore {
	return &JobStore{store: store}
}

func jobKey(id string) string {
	return path.Join(utils.JobKeyPrefix, id)
}

// Save writes the job record, replacing any previous version
func (s *JobStore) Save(ctx context.Context, job Job) error {
	if err := metadata.PutJSON(ctx, s.store, jobKey(job.ID), job); err != nil {
		return fmt.Errorf("failed to save job %s: %w", job.ID, err)
	}
	return nil
}

// Get loads a job by id
func (s *JobStore) Get(ctx context.Context, id string) (Job, error) {
	var job Job
	if err := metadata.GetJSON(ctx, s.store, jobKey(id), &job); err != nil {
		if errors.Is(err, metadata.ErrNotFound) {
			return Job{}, fmt.Errorf("%s: %w", id, ErrJobNotFound)
		}
		return Job{}, err
	}
	return job, nil
}

// List returns every stored job, oldest first
func (s *JobStore) List(ctx context.Context) ([]Job, error) {
	raw, err := s.store.GetPrefix(ctx, utils.JobKeyPrefix)
	if err != nil {
		return nil, err
	}

	jobs := make([]Job, 0, len(raw))
	for key, value := range raw {
		var job Job
		if err := json.Unmarshal([]byte(value), &job); err != nil {
			logging.Warn("Skipping unreadable job record", "key", key, "error", err)
			continue
		}
		jobs = append(jobs, job)
	}

	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].AcceptedAt.Equal(jobs[j].AcceptedAt) {
			return jobs[i].ID < jobs[j].ID
		}
		return jobs[i].AcceptedAt.Before(jobs[j].AcceptedAt)
	})
	return jobs, nil
}

// Enqueue wraps job in an envelope and publishes it on subject
func Enqueue(ctx context.Context, pub queue.Publisher, subject string, job Job) error {
	env, err := queue.NewEnvelope(utils.MessageTypeTrainingRequested, job)
	if err != nil {
		return err
	}
	data, err := env.Encode()
	if err != nil {
		return err
	}
	if err := pub.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to enqueue job %s: %w", job.ID, err)
	}
	return nil
}

// DecodeJob reverses Enqueue
func DecodeJob(data []byte) (Job, error) {
	env, err := queue.DecodeEnvelope(data)
	if err != nil {
		return Job{}, err
	}
	if env.Type != utils.MessageTypeTrainingRequested {
		return Job{}, fmt.Errorf("unexpected message type %q", env.Type)
	}

	var job Job
	if err := env.Decode(&job); err != nil {
		return Job{}, err
	}
	if job.ID == "" || job.StoreID == "" {
		return Job{}, fmt.Errorf("job message missing id or store")
	}
	return job, nil
}
