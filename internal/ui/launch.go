package ui

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

const (
	startLabel = "Start Training Job"
	busyLabel  = "Initializing..."
)

const launchText = `[::b]AI Training Dashboard[::-]

Start a simulated training run and follow it live.

  [green]●[-] Real-time progress and loss over a WebSocket
  [green]●[-] Status updates from QUEUED through COMPLETED
  [green]●[-] Training log stream
`

// Launch is the page shown before a job exists.
type Launch struct {
	*tview.Flex
	info   *tview.TextView
	button *tview.Button
	footer *tview.TextView
	busy   bool

	onStart func()
	onQuit  func()
}

func NewLaunch(onStart, onQuit func()) *Launch {
	l := &Launch{onStart: onStart, onQuit: onQuit}

	l.info = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter).
		SetText(launchText)
	l.info.SetBackgroundColor(ColorBackground)

	l.button = tview.NewButton(startLabel).SetSelectedFunc(func() {
		if !l.busy && l.onStart != nil {
			l.onStart()
		}
	})
	l.button.SetStyle(tcell.StyleDefault.Background(ColorPrimary).Foreground(ColorBackground))
	l.button.SetActivatedStyle(tcell.StyleDefault.Background(ColorAccent).Foreground(ColorBackground))
	l.button.SetDisabledStyle(tcell.StyleDefault.Background(ColorBackgroundElem).Foreground(ColorTextMuted))

	l.footer = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	l.footer.SetBackgroundColor(ColorBackgroundPanel)
	l.footer.SetText("[green]Enter[-] start job  [green]?[-] help  [green]q[-] quit")

	buttonRow := tview.NewFlex().SetDirection(tview.FlexColumn).
		AddItem(nil, 0, 1, false).
		AddItem(l.button, 24, 0, true).
		AddItem(nil, 0, 1, false)

	l.Flex = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(nil, 0, 1, false).
		AddItem(l.info, 8, 0, false).
		AddItem(buttonRow, 1, 0, true).
		AddItem(nil, 0, 1, false).
		AddItem(l.footer, 1, 0, false)

	l.button.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Rune() == 'q' {
			if l.onQuit != nil {
				l.onQuit()
			}
			return nil
		}
		return event
	})
	return l
}

// SetBusy toggles the in-flight state of the start request.
func (l *Launch) SetBusy(busy bool) {
	l.busy = busy
	l.button.SetDisabled(busy)
	if busy {
		l.button.SetLabel(busyLabel)
	} else {
		l.button.SetLabel(startLabel)
	}
}

func (l *Launch) Busy() bool {
	return l.busy
}

// Label is the current text of the start button.
func (l *Launch) Label() string {
	return l.button.GetLabel()
}
