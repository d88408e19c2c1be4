package monitor

import (
	"time"

	"github.com/zsprackett/trainwatch/internal/training"
)

// ConnState is the lifecycle of one push channel.
type ConnState string

const (
	Connecting   ConnState = "connecting"
	Connected    ConnState = "connected"
	Disconnected ConnState = "disconnected"
)

// State is everything the dashboard renders for one job. Snapshot is nil
// until the first valid message arrives and is replaced, never modified,
// by each later one.
type State struct {
	JobID     string
	Conn      ConnState
	Snapshot  *training.Snapshot
	MountedAt time.Time
}

// NewState returns the state of a freshly mounted monitor.
func NewState(jobID string, now time.Time) State {
	return State{JobID: jobID, Conn: Connecting, MountedAt: now}
}

// Live reports whether the channel is currently open.
func (s State) Live() bool {
	return s.Conn == Connected
}

// Open records a successful dial. It only moves out of Connecting;
// Disconnected is terminal.
func (s *State) Open() bool {
	if s.Conn != Connecting {
		return false
	}
	s.Conn = Connected
	return true
}

// Drop records a channel error or closure.
func (s *State) Drop() bool {
	if s.Conn == Disconnected {
		return false
	}
	s.Conn = Disconnected
	return true
}

// Apply decodes one message and, if valid, makes it the current snapshot.
// On error the state is left exactly as it was.
func (s *State) Apply(data []byte) error {
	snap, err := training.Decode(data)
	if err != nil {
		return err
	}
	s.Snapshot = &snap
	return nil
}
