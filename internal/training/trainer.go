package training

import (
	"context"
	"sync"
	"time"

	"github.com/pifses/mlpipeline/internal/logging"
)

// Trainer retrains the forecast models for one job. Implementations must
// honour ctx cancellation.
type Trainer interface {
	Train(ctx context.Context, job Job) error
}

// TrainerFunc adapts a function to Trainer
type TrainerFunc func(ctx context.Context, job Job) error

// Train implements Trainer
func (f TrainerFunc) Train(ctx context.Context, job Job) error {
	return f(ctx, job)
}

// StubTrainer accepts every job without fitting anything. It waits Delay
// and remembers which jobs it saw.
type StubTrainer struct {
	Delay time.Duration

	mu      sync.Mutex
	trained []string
}

// NewStubTrainer creates a stub with the given simulated run time
func NewStubTrainer(delay time.Duration) *StubTrainer {
	return &StubTrainer{Delay: delay}
}

// Train implements Trainer
func (s *StubTrainer) Train(ctx context.Context, job Job) error {
	logging.Info("Training job started (stub trainer)",
		"job_id", job.ID, "store_id", job.StoreID, "lookback_days", job.LookbackDays)

	if s.Delay > 0 {
		timer := time.NewTimer(s.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	s.mu.Lock()
	s.trained = append(s.trained, job.ID)
	s.mu.Unlock()
	return nil
}

// Trained returns the ids of completed jobs in completion order
func (s *StubTrainer) Trained() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, len(s.trained))
	copy(out, s.trained)
	return out
}
