// Package training defines the job snapshot contract shared by the dashboard
// client and the simulated training server.
package training

import (
	"encoding/json"
	"errors"
	"fmt"
)

type Status string

const (
	StatusQueued    Status = "QUEUED"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
)

// Known reports whether s is one of the statuses the server emits.
func (s Status) Known() bool {
	switch s {
	case StatusQueued, StatusRunning, StatusCompleted:
		return true
	default:
		return false
	}
}

// Snapshot is one complete state update for a job. Receivers replace their
// previous snapshot wholesale; fields are never merged across messages.
type Snapshot struct {
	JobID      string  `json:"job_id"`
	Status     Status  `json:"status"`
	Progress   float64 `json:"progress"`
	Loss       float64 `json:"loss"`
	LogMessage string  `json:"log_message"`
}

// Queued returns the initial snapshot of a freshly created job.
func Queued(jobID string) Snapshot {
	return Snapshot{
		JobID:      jobID,
		Status:     StatusQueued,
		Progress:   0,
		Loss:       0,
		LogMessage: "Training job queued and ready to start",
	}
}

// Percent is the progress scaled to 0-100. Values outside [0, 1] are passed
// through unclamped.
func (s Snapshot) Percent() float64 {
	return s.Progress * 100
}

// ShowBarLabel reports whether the percentage label fits inside the bar.
func (s Snapshot) ShowBarLabel() bool {
	return s.Progress > 0.1
}

// Done reports whether the job has finished.
func (s Snapshot) Done() bool {
	return s.Status == StatusCompleted
}

// ErrNotSnapshot is returned by Decode for payloads that parse as JSON but
// do not carry a snapshot, such as server error objects.
var ErrNotSnapshot = errors.New("payload is not a training snapshot")

type wireSnapshot struct {
	JobID      string  `json:"job_id"`
	Status     *Status `json:"status"`
	Progress   float64 `json:"progress"`
	Loss       float64 `json:"loss"`
	LogMessage string  `json:"log_message"`
	Error      string  `json:"error"`
}

// Decode parses one push-channel message.
func Decode(data []byte) (Snapshot, error) {
	var w wireSnapshot
	if err := json.Unmarshal(data, &w); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if w.Error != "" {
		return Snapshot{}, fmt.Errorf("%w: server error %q for job %q", ErrNotSnapshot, w.Error, w.JobID)
	}
	if w.Status == nil {
		return Snapshot{}, fmt.Errorf("%w: missing status", ErrNotSnapshot)
	}
	return Snapshot{
		JobID:      w.JobID,
		Status:     *w.Status,
		Progress:   w.Progress,
		Loss:       w.Loss,
		LogMessage: w.LogMessage,
	}, nil
}
