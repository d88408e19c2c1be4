package events

import "github.com/zsprackett/trainwatch/internal/training"

const (
	TypeJobCreated   = "job_created"
	TypeJobStarted   = "job_started"
	TypeJobCompleted = "job_completed"
	TypeJobAbandoned = "job_abandoned"
	TypeJobPruned    = "job_pruned"
)

// Event is a job lifecycle update pushed to feed subscribers.
type Event struct {
	Type     string          `json:"type"`
	JobID    string          `json:"job_id,omitempty"`
	Status   training.Status `json:"status,omitempty"`
	Progress float64         `json:"progress"`
}

// FromSnapshot builds an event of the given type carrying s's state.
func FromSnapshot(typ string, s training.Snapshot) Event {
	return Event{Type: typ, JobID: s.JobID, Status: s.Status, Progress: s.Progress}
}

// Broadcaster sends events to connected feed clients.
// A nil Broadcaster is safe to use -- Broadcast becomes a no-op.
type Broadcaster interface {
	Broadcast(e Event)
}
