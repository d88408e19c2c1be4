package ui

import (
	"context"
	"log/slog"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/zsprackett/trainwatch/internal/client"
	"github.com/zsprackett/trainwatch/internal/monitor"
	"github.com/zsprackett/trainwatch/internal/ui/dialogs"
)

const (
	pageLaunch  = "launch"
	pageMonitor = "monitor"

	startFailedMsg = "Failed to start training job. Please ensure the backend is running."
)

type App struct {
	tapp     *tview.Application
	pages    *tview.Pages
	launch   *Launch
	dash     *Dashboard
	client   *client.Client
	notifier monitor.Notifier
	logger   *slog.Logger

	// mon and jobID belong to the mounted monitor page. Both are only
	// touched on the UI goroutine.
	mon   *monitor.Monitor
	jobID string

	// queue runs fn on the UI goroutine and redraws.
	queue func(fn func())
	now   func() time.Time
}

func NewApp(c *client.Client, notifier monitor.Notifier, logger *slog.Logger) *App {
	a := &App{
		client:   c,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}

	a.tapp = tview.NewApplication()
	a.pages = tview.NewPages()
	a.queue = func(fn func()) { a.tapp.QueueUpdateDraw(fn) }
	a.launch = NewLaunch(a.startJob, a.quit)

	a.pages.AddPage(pageLaunch, a.launch, true, true)
	a.tapp.SetRoot(a.pages, true).EnableMouse(false)
	a.tapp.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Rune() == '?' {
			if name, _ := a.pages.GetFrontPage(); name == pageLaunch || name == pageMonitor {
				a.showHelp()
				return nil
			}
		}
		return event
	})
	a.tapp.SetFocus(a.launch.button)
	return a
}

// Run shows the launcher and blocks until the user quits.
func (a *App) Run() error {
	defer a.unmountMonitor()
	return a.tapp.Run()
}

// RunJob skips the launcher and attaches the monitor to an existing job.
func (a *App) RunJob(jobID string) error {
	a.mountMonitor(jobID)
	return a.Run()
}

// startJob fires the launch request off the UI goroutine. The button stays
// disabled until the request settles either way.
func (a *App) startJob() {
	if a.launch.Busy() {
		return
	}
	a.launch.SetBusy(true)
	go func() {
		id, err := a.client.StartJob(context.Background())
		a.queue(func() {
			a.launch.SetBusy(false)
			if err != nil {
				a.logger.Error("launch: start job failed", "err", err)
				a.showError(startFailedMsg)
				return
			}
			a.logger.Info("launch: job started", "job", id)
			a.mountMonitor(id)
		})
	}()
}

// mountMonitor replaces any mounted monitor with a fresh one for jobID.
func (a *App) mountMonitor(jobID string) {
	a.unmountMonitor()

	a.jobID = jobID
	a.dash = NewDashboard(a.resetJob, a.quit)
	a.dash.SetFocusFunc(func(p tview.Primitive) { a.tapp.SetFocus(p) })
	var mon *monitor.Monitor
	mon = monitor.New(jobID, a.client.StreamURL(jobID), func() {
		a.queue(func() {
			// Late callbacks from a monitor that was already swapped out.
			if a.mon != mon {
				return
			}
			a.dash.Update(mon.State(), a.now())
		})
	}, a.notifier, a.logger)
	a.mon = mon

	a.dash.Update(mon.State(), a.now())
	a.pages.AddAndSwitchToPage(pageMonitor, a.dash, true)
	a.tapp.SetFocus(a.dash)
	mon.Start()
}

func (a *App) unmountMonitor() {
	if a.mon == nil {
		return
	}
	if a.mon.Stop() {
		a.logger.Debug("monitor: channel released", "job", a.jobID)
	}
	a.mon = nil
	a.dash = nil
	a.jobID = ""
	a.pages.RemovePage(pageMonitor)
}

// resetJob discards the current job and returns to the launcher.
func (a *App) resetJob() {
	if a.mon == nil {
		return
	}
	a.unmountMonitor()
	a.pages.SwitchToPage(pageLaunch)
	a.tapp.SetFocus(a.launch.button)
}

// quit asks before abandoning a job that is still streaming.
func (a *App) quit() {
	if a.mon != nil {
		st := a.mon.State()
		if st.Live() && (st.Snapshot == nil || !st.Snapshot.Done()) {
			modal := dialogs.Confirm("Training is still running. Quit anyway?", "Quit",
				func() {
					a.closeDialog("confirm-quit")
					a.stop()
				},
				func() { a.closeDialog("confirm-quit") })
			a.pages.AddPage("confirm-quit", modal, true, true)
			return
		}
	}
	a.stop()
}

func (a *App) stop() {
	a.unmountMonitor()
	a.tapp.Stop()
}

func (a *App) showDialog(name string, widget tview.Primitive, width, height int) {
	modal := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexColumn).
			AddItem(nil, 0, 1, false).
			AddItem(widget, width, 0, true).
			AddItem(nil, 0, 1, false), height, 0, true).
		AddItem(nil, 0, 1, false)
	a.pages.AddPage(name, modal, true, true)
	a.tapp.SetFocus(widget)
}

func (a *App) closeDialog(name string) {
	a.pages.RemovePage(name)
	if a.dash != nil && a.dash.Completed() {
		a.tapp.SetFocus(a.dash.reset)
	} else if a.dash != nil {
		a.tapp.SetFocus(a.dash)
	} else {
		a.tapp.SetFocus(a.launch.button)
	}
}

func (a *App) showHelp() {
	help := dialogs.HelpDialog(func() {
		a.closeDialog("help")
	})
	a.showDialog("help", help, 56, 20)
}

func (a *App) showError(msg string) {
	modal := dialogs.Alert(msg, func() {
		a.closeDialog("error")
	})
	a.pages.AddPage("error", modal, true, true)
}
