package ui

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zsprackett/trainwatch/internal/applog"
	"github.com/zsprackett/trainwatch/internal/client"
)

// newTestApp returns an App whose UI callbacks are delivered to the
// returned channel instead of the tview event loop.
func newTestApp(t *testing.T, handler http.HandlerFunc) (*App, chan func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := client.New(srv.URL, 2*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	app := NewApp(c, nil, applog.Discard())
	calls := make(chan func(), 64)
	app.queue = func(fn func()) { calls <- fn }
	t.Cleanup(app.unmountMonitor)
	return app, calls
}

// runNext executes the next queued UI callback, as the event loop would.
func runNext(t *testing.T, calls chan func()) {
	t.Helper()
	select {
	case fn := <-calls:
		fn()
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for UI callback")
	}
}

func frontPage(a *App) string {
	name, _ := a.pages.GetFrontPage()
	return name
}

func TestStartJobMountsMonitor(t *testing.T) {
	app, calls := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/api/v1/training/start" {
			fmt.Fprint(w, `{"job_id":"abc123","status":"QUEUED"}`)
			return
		}
		http.NotFound(w, r)
	})

	app.startJob()
	if !app.launch.Busy() || app.launch.Label() != busyLabel {
		t.Fatalf("launch not busy while request in flight: busy=%v label=%q", app.launch.Busy(), app.launch.Label())
	}
	runNext(t, calls)

	if app.launch.Busy() || app.launch.Label() != startLabel {
		t.Errorf("busy state not cleared: label=%q", app.launch.Label())
	}
	if got := frontPage(app); got != pageMonitor {
		t.Errorf("front page = %q, want %q", got, pageMonitor)
	}
	if app.jobID != "abc123" {
		t.Errorf("mounted job = %q, want abc123", app.jobID)
	}
	if app.mon == nil || app.mon.State().JobID != "abc123" {
		t.Error("monitor not mounted for the returned job")
	}
}

func TestStartJobFailureStaysOnLauncher(t *testing.T) {
	app, calls := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	app.startJob()
	runNext(t, calls)

	if app.launch.Busy() {
		t.Error("busy state not cleared after failure")
	}
	if app.mon != nil || app.pages.HasPage(pageMonitor) {
		t.Error("monitor mounted after failed launch")
	}
	if !app.pages.HasPage("error") {
		t.Error("no alert shown for failed launch")
	}
	app.closeDialog("error")
	if got := frontPage(app); got != pageLaunch {
		t.Errorf("front page = %q, want %q", got, pageLaunch)
	}
}

func TestStartJobIgnoredWhileBusy(t *testing.T) {
	var requests atomic.Int32
	release := make(chan struct{})
	app, calls := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/training/start" {
			requests.Add(1)
			<-release
			fmt.Fprint(w, `{"job_id":"one"}`)
			return
		}
		http.NotFound(w, r)
	})

	app.startJob()
	app.startJob()
	close(release)
	runNext(t, calls)
	if n := requests.Load(); n != 1 {
		t.Errorf("requests = %d, want 1", n)
	}
}

func TestResetJobReturnsToLauncher(t *testing.T) {
	app, calls := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	app.mountMonitor("job-9")
	mon := app.mon
	app.resetJob()

	if app.mon != nil || app.jobID != "" {
		t.Error("monitor state not discarded on reset")
	}
	if app.pages.HasPage(pageMonitor) {
		t.Error("monitor page still present after reset")
	}
	if got := frontPage(app); got != pageLaunch {
		t.Errorf("front page = %q, want %q", got, pageLaunch)
	}
	select {
	case <-mon.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("monitor goroutine did not exit")
	}

	// Callbacks queued by the old monitor must not touch the UI.
	for len(calls) > 0 {
		(<-calls)()
	}
	if app.dash != nil {
		t.Error("stale callback revived the dashboard")
	}
}

func TestMountMonitorReplacesPrevious(t *testing.T) {
	app, _ := newTestApp(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	app.mountMonitor("first")
	first := app.mon
	app.mountMonitor("second")

	if app.mon == first || app.jobID != "second" {
		t.Error("second mount did not replace the first monitor")
	}
	select {
	case <-first.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("first monitor not stopped")
	}
}
