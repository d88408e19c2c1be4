package ui

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/zsprackett/trainwatch/internal/monitor"
)

// Dashboard is the live monitor page for one job.
type Dashboard struct {
	*tview.Flex
	header    *tview.TextView
	body      *tview.TextView
	resetRow  *tview.Flex
	reset     *tview.Button
	footer    *tview.TextView
	completed bool

	onReset func()
	onQuit  func()
	// focus moves keyboard focus; the App wires it to SetFocus.
	focus func(p tview.Primitive)
}

func NewDashboard(onReset, onQuit func()) *Dashboard {
	d := &Dashboard{onReset: onReset, onQuit: onQuit}

	d.header = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	d.header.SetBackgroundColor(ColorBackgroundPanel)

	d.body = tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(true)
	d.body.SetBackgroundColor(ColorBackground)

	d.reset = tview.NewButton("Start New Training Job").SetSelectedFunc(func() {
		if d.completed && d.onReset != nil {
			d.onReset()
		}
	})
	d.reset.SetStyle(tcell.StyleDefault.Background(ColorSuccess).Foreground(ColorBackground))
	d.reset.SetActivatedStyle(tcell.StyleDefault.Background(ColorAccent).Foreground(ColorBackground))

	d.resetRow = tview.NewFlex().SetDirection(tview.FlexColumn).
		AddItem(nil, 2, 0, false).
		AddItem(d.reset, 26, 0, false).
		AddItem(nil, 0, 1, false)

	d.footer = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	d.footer.SetBackgroundColor(ColorBackgroundPanel)

	d.Flex = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(d.header, 1, 0, false).
		AddItem(d.body, 0, 1, true).
		AddItem(d.resetRow, 0, 0, false).
		AddItem(d.footer, 1, 0, false)

	d.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Rune() {
		case 'r':
			if d.completed && d.onReset != nil {
				d.onReset()
			}
			return nil
		case 'q':
			if d.onQuit != nil {
				d.onQuit()
			}
			return nil
		}
		return event
	})
	d.updateFooter()
	return d
}

// Update redraws the page from st. The reset control appears once the
// job has completed.
func (d *Dashboard) Update(st monitor.State, now time.Time) {
	d.header.SetText(fmt.Sprintf("[blue]TRAINWATCH[-]   %s   %s",
		tview.Escape(st.JobID), RenderConnection(st.Conn)))

	_, _, width, _ := d.body.GetInnerRect()
	if width < 2*minBarWidth {
		// not laid out yet
		width = 0
	}
	d.body.SetText(RenderDashboard(st, now, width))

	completed := st.Snapshot != nil && st.Snapshot.Done()
	if completed != d.completed {
		d.completed = completed
		if completed {
			d.ResizeItem(d.resetRow, 1, 0)
			d.moveFocus(d.reset)
		} else {
			d.ResizeItem(d.resetRow, 0, 0)
			d.moveFocus(d.body)
		}
		d.updateFooter()
	}
}

// SetFocusFunc installs the hook used to move focus to the reset button
// once it appears.
func (d *Dashboard) SetFocusFunc(fn func(p tview.Primitive)) {
	d.focus = fn
}

func (d *Dashboard) moveFocus(p tview.Primitive) {
	if d.focus != nil {
		d.focus(p)
	}
}

// Completed reports whether the reset control is showing.
func (d *Dashboard) Completed() bool {
	return d.completed
}

func (d *Dashboard) updateFooter() {
	text := "[green]?[-] help  [green]q[-] quit"
	if d.completed {
		text = "[green]Enter/r[-] new job  " + text
	}
	d.footer.SetText(text)
}
