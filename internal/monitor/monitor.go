package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/zsprackett/trainwatch/internal/training"
)

type OnUpdate func()

// Notifier is told once per monitor when the job reaches COMPLETED.
type Notifier interface {
	JobCompleted(s training.Snapshot)
}

// Monitor owns the push channel for a single job. It is created when the
// dashboard mounts a job and stopped when the dashboard unmounts it; a
// stopped Monitor is never restarted.
type Monitor struct {
	url      string
	dialer   *websocket.Dialer
	onUpdate OnUpdate
	notifier Notifier
	logger   *slog.Logger

	mu       sync.Mutex
	state    State
	conn     *websocket.Conn
	started  bool
	stopped  bool
	notified bool
	cancel   context.CancelFunc
	done     chan struct{}
}

func New(jobID, url string, onUpdate OnUpdate, notifier Notifier, logger *slog.Logger) *Monitor {
	return &Monitor{
		url: url,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		onUpdate: onUpdate,
		notifier: notifier,
		logger:   logger,
		state:    NewState(jobID, time.Now()),
		done:     make(chan struct{}),
	}
}

// State returns a copy of the current state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Done is closed once the channel goroutine has exited.
func (m *Monitor) Done() <-chan struct{} {
	return m.done
}

func (m *Monitor) Start() {
	m.mu.Lock()
	if m.started || m.stopped {
		m.mu.Unlock()
		return
	}
	m.started = true
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.mu.Unlock()

	go func() {
		defer close(m.done)
		m.run(ctx)
	}()
}

// Stop releases the channel. It closes the socket only if it is open and
// reports whether it did. Once Stop returns no further message is applied.
func (m *Monitor) Stop() bool {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return false
	}
	m.stopped = true
	conn := m.conn
	m.conn = nil
	cancel := m.cancel
	if !m.started {
		close(m.done)
	}
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn == nil {
		return false
	}
	deadline := time.Now().Add(time.Second)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
		m.logger.Debug("monitor: close handshake failed", "job", m.state.JobID, "err", err)
	}
	conn.Close()
	return true
}

func (m *Monitor) run(ctx context.Context) {
	jobID := m.state.JobID
	conn, _, err := m.dialer.DialContext(ctx, m.url, nil)
	if err != nil {
		m.logger.Warn("monitor: websocket dial failed", "job", jobID, "url", m.url, "err", err)
		m.transition(func(s *State) bool { return s.Drop() })
		return
	}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		conn.Close()
		return
	}
	m.conn = conn
	m.state.Open()
	m.mu.Unlock()
	m.logger.Info("monitor: websocket connected", "job", jobID)
	m.update()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			m.mu.Lock()
			stopped := m.stopped
			if !stopped {
				m.conn = nil
				m.state.Drop()
			}
			m.mu.Unlock()
			if stopped {
				return
			}
			conn.Close()
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				m.logger.Info("monitor: websocket closed", "job", jobID)
			} else {
				m.logger.Warn("monitor: websocket error", "job", jobID, "err", err)
			}
			m.update()
			return
		}

		m.mu.Lock()
		if m.stopped {
			m.mu.Unlock()
			return
		}
		err = m.state.Apply(raw)
		var completed *training.Snapshot
		if err == nil && m.state.Snapshot.Done() && !m.notified {
			m.notified = true
			completed = m.state.Snapshot
		}
		m.mu.Unlock()

		if err != nil {
			m.logger.Warn("monitor: dropping malformed message", "job", jobID, "err", err)
			continue
		}
		if completed != nil && m.notifier != nil {
			m.notifier.JobCompleted(*completed)
		}
		m.update()
	}
}

func (m *Monitor) transition(fn func(s *State) bool) {
	m.mu.Lock()
	changed := false
	if !m.stopped {
		changed = fn(&m.state)
	}
	m.mu.Unlock()
	if changed {
		m.update()
	}
}

func (m *Monitor) update() {
	if m.onUpdate != nil {
		m.onUpdate()
	}
}
