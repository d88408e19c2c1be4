// Package simulator produces the snapshot stream of a fake training run.
package simulator

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/zsprackett/trainwatch/internal/training"
)

const (
	startedMessage   = "Training started - initializing model..."
	completedMessage = "Training completed successfully! Model ready for deployment."
	minLoss          = 0.01
	initialLoss      = 2.5
)

// Emit receives every snapshot the run produces. Returning an error aborts
// the run with that error.
type Emit func(training.Snapshot) error

type Config struct {
	Steps    int
	Interval time.Duration
}

type Simulator struct {
	steps    int
	interval time.Duration
	jitter   func() float64
}

func New(cfg Config) *Simulator {
	steps := cfg.Steps
	if steps < 1 {
		steps = 1
	}
	return &Simulator{
		steps:    steps,
		interval: cfg.Interval,
		jitter:   func() float64 { return rand.Float64()*0.2 - 0.1 },
	}
}

// NewWithJitter creates a Simulator with an injectable loss noise source.
// Used in tests.
func NewWithJitter(cfg Config, jitter func() float64) *Simulator {
	s := New(cfg)
	s.jitter = jitter
	return s
}

// Run moves job from its current state to COMPLETED, emitting one RUNNING
// snapshot immediately and then one snapshot per step. It stops early when
// ctx is cancelled or emit fails.
func (s *Simulator) Run(ctx context.Context, job training.Snapshot, emit Emit) error {
	job.Status = training.StatusRunning
	job.LogMessage = startedMessage
	if err := emit(job); err != nil {
		return err
	}

	var tick <-chan time.Time
	if s.interval > 0 {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for step := 1; step <= s.steps; step++ {
		if tick != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tick:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		job = s.advance(job, step)
		if err := emit(job); err != nil {
			return err
		}
	}
	return nil
}

func (s *Simulator) advance(job training.Snapshot, step int) training.Snapshot {
	job.Progress = float64(step) / float64(s.steps)
	job.Loss = math.Max(minLoss, initialLoss*(1-job.Progress)+s.jitter())
	job.LogMessage = fmt.Sprintf("Epoch %d/%d - %s", step, s.steps, phase(job.Progress))
	if job.Progress >= 1 {
		job.Status = training.StatusCompleted
		job.Progress = 1
		job.LogMessage = completedMessage
	}
	return job
}

func phase(progress float64) string {
	switch {
	case progress < 0.25:
		return "Loading training data..."
	case progress < 0.5:
		return "Training on domain documents..."
	case progress < 0.75:
		return "Fine-tuning model parameters..."
	default:
		return "Validating model performance..."
	}
}
