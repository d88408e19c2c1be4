package db

import (
	"errors"
	"time"

	"github.com/zsprackett/trainwatch/internal/training"
)

var ErrJobNotFound = errors.New("job not found")

// Job is the server's record of one simulated run: the latest snapshot plus
// bookkeeping timestamps.
type Job struct {
	training.Snapshot
	CreatedAt time.Time
	UpdatedAt time.Time
}

type JobEventType string

const (
	EventCreated    JobEventType = "created"
	EventStarted    JobEventType = "started"
	EventProgress   JobEventType = "progress"
	EventCompleted  JobEventType = "completed"
	EventClientGone JobEventType = "client_gone"
)

type JobEvent struct {
	ID        int64        `json:"id"`
	JobID     string       `json:"job_id"`
	Ts        time.Time    `json:"ts"`
	EventType JobEventType `json:"event_type"`
	Detail    string       `json:"detail"`
}
