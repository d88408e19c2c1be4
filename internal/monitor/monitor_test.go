package monitor_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/zsprackett/trainwatch/internal/monitor"
	"github.com/zsprackett/trainwatch/internal/training"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type captureNotifier struct {
	mu    sync.Mutex
	calls []training.Snapshot
}

func (c *captureNotifier) JobCompleted(s training.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, s)
}

func (c *captureNotifier) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

var upgrader = websocket.Upgrader{}

// wsServer upgrades every request and hands the connection to script.
func wsServer(t *testing.T, script func(conn *websocket.Conn)) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		script(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func send(conn *websocket.Conn, msg string) {
	conn.WriteMessage(websocket.TextMessage, []byte(msg))
}

func TestMonitorAppliesSnapshotsInOrder(t *testing.T) {
	release := make(chan struct{})
	url := wsServer(t, func(conn *websocket.Conn) {
		send(conn, `{"job_id":"abc123","status":"RUNNING","progress":0.1,"loss":2.1,"log_message":"epoch 1"}`)
		send(conn, `not json at all`)
		send(conn, `{"job_id":"abc123","status":"RUNNING","progress":0.42,"loss":0.8123,"log_message":"epoch 3"}`)
		<-release
	})
	defer close(release)

	mon := monitor.New("abc123", url, nil, nil, discardLogger())
	mon.Start()
	defer mon.Stop()

	waitFor(t, "second snapshot", func() bool {
		s := mon.State()
		return s.Snapshot != nil && s.Snapshot.Progress == 0.42
	})
	s := mon.State()
	if s.Conn != monitor.Connected {
		t.Errorf("conn: got %q want connected", s.Conn)
	}
	if s.Snapshot.LogMessage != "epoch 3" || s.Snapshot.Loss != 0.8123 {
		t.Errorf("unexpected snapshot %+v", *s.Snapshot)
	}
}

func TestMonitorServerCloseKeepsLastSnapshot(t *testing.T) {
	url := wsServer(t, func(conn *websocket.Conn) {
		send(conn, `{"job_id":"abc123","status":"RUNNING","progress":0.5,"loss":1.2,"log_message":"half"}`)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	})

	updates := make(chan struct{}, 16)
	mon := monitor.New("abc123", url, func() {
		select {
		case updates <- struct{}{}:
		default:
		}
	}, nil, discardLogger())
	mon.Start()

	select {
	case <-mon.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("monitor did not exit after server close")
	}
	s := mon.State()
	if s.Conn != monitor.Disconnected {
		t.Errorf("conn: got %q want disconnected", s.Conn)
	}
	if s.Snapshot == nil || s.Snapshot.Progress != 0.5 {
		t.Errorf("expected stale snapshot to remain visible, got %+v", s.Snapshot)
	}
	if len(updates) == 0 {
		t.Error("expected update callbacks")
	}
	if mon.Stop() {
		t.Error("stop after server close must not report closing a channel")
	}
}

func TestMonitorDialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	mon := monitor.New("abc123", url, nil, nil, discardLogger())
	mon.Start()
	<-mon.Done()

	s := mon.State()
	if s.Conn != monitor.Disconnected {
		t.Errorf("conn: got %q want disconnected", s.Conn)
	}
	if s.Snapshot != nil {
		t.Error("no snapshot expected")
	}
}

func TestMonitorStopClosesOpenChannel(t *testing.T) {
	serverSawClose := make(chan struct{})
	url := wsServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				close(serverSawClose)
				return
			}
		}
	})

	mon := monitor.New("abc123", url, nil, nil, discardLogger())
	mon.Start()
	waitFor(t, "connected", func() bool { return mon.State().Live() })

	if !mon.Stop() {
		t.Fatal("expected Stop to close the open channel")
	}
	if mon.Stop() {
		t.Error("second Stop must be a no-op")
	}
	select {
	case <-serverSawClose:
	case <-time.After(3 * time.Second):
		t.Fatal("server never saw the channel close")
	}
	<-mon.Done()
	if mon.State().Conn != monitor.Connected {
		t.Error("state must be frozen after Stop")
	}
}

func TestMonitorNoMessagesAppliedAfterStop(t *testing.T) {
	stopped := make(chan struct{})
	url := wsServer(t, func(conn *websocket.Conn) {
		send(conn, `{"job_id":"abc123","status":"RUNNING","progress":0.3}`)
		<-stopped
		send(conn, `{"job_id":"abc123","status":"COMPLETED","progress":1.0}`)
	})

	mon := monitor.New("abc123", url, nil, nil, discardLogger())
	mon.Start()
	waitFor(t, "first snapshot", func() bool { return mon.State().Snapshot != nil })
	mon.Stop()
	close(stopped)
	<-mon.Done()

	if got := mon.State().Snapshot.Status; got != training.StatusRunning {
		t.Errorf("status after stop: got %q want RUNNING", got)
	}
}

func TestMonitorStopBeforeStart(t *testing.T) {
	mon := monitor.New("abc123", "ws://127.0.0.1:1/ws/training/abc123", nil, nil, discardLogger())
	if mon.Stop() {
		t.Error("nothing was open")
	}
	mon.Start()
	select {
	case <-mon.Done():
	default:
		t.Error("Done should be closed for a monitor stopped before start")
	}
}

func TestMonitorNotifiesCompletionOnce(t *testing.T) {
	release := make(chan struct{})
	url := wsServer(t, func(conn *websocket.Conn) {
		send(conn, `{"job_id":"abc123","status":"RUNNING","progress":0.9}`)
		send(conn, `{"job_id":"abc123","status":"COMPLETED","progress":1.0,"log_message":"done"}`)
		send(conn, `{"job_id":"abc123","status":"COMPLETED","progress":1.0,"log_message":"done again"}`)
		<-release
	})
	defer close(release)

	notifier := &captureNotifier{}
	mon := monitor.New("abc123", url, nil, notifier, discardLogger())
	mon.Start()
	defer mon.Stop()

	waitFor(t, "last message", func() bool {
		s := mon.State()
		return s.Snapshot != nil && s.Snapshot.LogMessage == "done again"
	})
	if n := notifier.count(); n != 1 {
		t.Errorf("expected 1 completion notification, got %d", n)
	}
}
