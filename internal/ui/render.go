package ui

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rivo/tview"
	"github.com/zsprackett/trainwatch/internal/monitor"
	"github.com/zsprackett/trainwatch/internal/training"
)

const (
	defaultBarWidth = 40
	minBarWidth     = 10
)

// RenderDashboard draws the monitor body for st. It depends only on its
// arguments; now stamps the log line and ages the mount time.
func RenderDashboard(st monitor.State, now time.Time, width int) string {
	if st.Snapshot == nil {
		return fmt.Sprintf("\n  %s%s[-] Connecting to training job...\n", tag(ColorWarning), IconConnecting)
	}
	s := *st.Snapshot

	var b strings.Builder
	icon, color := StatusBadge(s.Status)
	fmt.Fprintf(&b, "\n  [::b]Training Job Monitor[::-]\n\n")
	fmt.Fprintf(&b, "  %sJob ID[-]    %s\n", tag(ColorTextMuted), tview.Escape(s.JobID))
	fmt.Fprintf(&b, "  %sStatus[-]    %s%s %s[-]\n", tag(ColorTextMuted), tag(color), icon, tview.Escape(string(s.Status)))
	fmt.Fprintf(&b, "  %sStarted[-]   %s\n\n", tag(ColorTextMuted), humanize.RelTime(st.MountedAt, now, "ago", "from now"))

	barWidth := width - 4
	if width <= 0 {
		barWidth = defaultBarWidth
	}
	if barWidth < minBarWidth {
		barWidth = minBarWidth
	}
	pct := fixed(s.Percent(), 1) + "%"
	gap := barWidth - len("Training Progress") - len(pct)
	if gap < 1 {
		gap = 1
	}
	fmt.Fprintf(&b, "  Training Progress%s%s\n", strings.Repeat(" ", gap), pct)
	fmt.Fprintf(&b, "  %s\n\n", ProgressBar(s, barWidth))

	fmt.Fprintf(&b, "  %sCurrent Loss[-]  %s%s[-]\n\n", tag(ColorTextMuted), tag(ColorAccent), fixed(s.Loss, 4))

	fmt.Fprintf(&b, "  [::b]Training Logs[::-]\n")
	fmt.Fprintf(&b, "  %s%s[-]  %s\n", tag(ColorTextMuted), now.Format("15:04:05"), tview.Escape(s.LogMessage))

	if s.Done() {
		fmt.Fprintf(&b, "\n  %s[::b]🎉 Training Completed Successfully![::-][-]\n", tag(ColorSuccess))
		fmt.Fprintf(&b, "  Your model has been trained and is ready for deployment.\n")
	}
	return b.String()
}

// ProgressBar renders a bar width cells wide filled to the snapshot's
// progress. The rounded percentage is printed inside the filled part only
// once progress passes 10%.
func ProgressBar(s training.Snapshot, width int) string {
	if width < 1 {
		width = 1
	}
	frac := s.Progress
	if math.IsNaN(frac) || frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	filled := int(math.Round(frac * float64(width)))

	cells := []rune(strings.Repeat(" ", width))
	if s.ShowBarLabel() {
		label := []rune(fixed(s.Percent(), 0) + "%")
		start := (filled - len(label)) / 2
		if start < 0 {
			start = 0
		}
		if start+len(label) > width {
			start = width - len(label)
		}
		if start >= 0 {
			copy(cells[start:], label)
		}
	}

	return fmt.Sprintf("[#%06x:#%06x]%s[#%06x:#%06x]%s[-:-]",
		ColorBackground.Hex(), ColorPrimary.Hex(), string(cells[:filled]),
		ColorText.Hex(), ColorBackgroundElem.Hex(), string(cells[filled:]))
}

// RenderConnection is the header indicator for the channel state.
func RenderConnection(c monitor.ConnState) string {
	label := "Disconnected"
	if c == monitor.Connected {
		label = "Live"
	}
	return fmt.Sprintf("%s%s %s[-]", tag(ConnColor(c)), IconLink, label)
}

// FormatLine is the single-line rendering used when stdout is not a
// terminal.
func FormatLine(st monitor.State, now time.Time) string {
	conn := "Disconnected"
	switch st.Conn {
	case monitor.Connected:
		conn = "Live"
	case monitor.Connecting:
		conn = "Connecting"
	}
	if st.Snapshot == nil {
		return fmt.Sprintf("%s [%s] job %s: waiting for first update", now.Format("15:04:05"), conn, st.JobID)
	}
	s := st.Snapshot
	icon, _ := StatusBadge(s.Status)
	return fmt.Sprintf("%s [%s] %s %s %5s%% loss %s | %s",
		now.Format("15:04:05"), conn, icon, s.Status, fixed(s.Percent(), 1), fixed(s.Loss, 4), s.LogMessage)
}

// fixed formats v with the given number of decimals, resolving ties toward
// the larger value (12.5 → "13") rather than to even.
func fixed(v float64, digits int) string {
	p := math.Pow(10, float64(digits))
	return strconv.FormatFloat(math.Floor(v*p+0.5)/p, 'f', digits, 64)
}
