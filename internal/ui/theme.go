package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/zsprackett/trainwatch/internal/monitor"
	"github.com/zsprackett/trainwatch/internal/training"
)

// Theme colors for the TUI.
var (
	ColorBackground      = tcell.NewHexColor(0x1e1e2e)
	ColorBackgroundPanel = tcell.NewHexColor(0x181825)
	ColorBackgroundElem  = tcell.NewHexColor(0x313244)
	ColorPrimary         = tcell.NewHexColor(0x89b4fa) // blue
	ColorAccent          = tcell.NewHexColor(0xcba6f7) // mauve
	ColorText            = tcell.NewHexColor(0xcdd6f4)
	ColorTextMuted       = tcell.NewHexColor(0x6c7086)
	ColorSuccess         = tcell.NewHexColor(0xa6e3a1) // green
	ColorWarning         = tcell.NewHexColor(0xf9e2af) // yellow
	ColorAmber           = tcell.NewHexColor(0xfab387) // peach
	ColorError           = tcell.NewHexColor(0xf38ba8) // red
	ColorBorder          = tcell.NewHexColor(0x45475a)
)

// Status icons
const (
	IconQueued     = "⏸"
	IconRunning    = "▶"
	IconCompleted  = "✓"
	IconUnknown    = "•"
	IconConnecting = "⟳"
	IconLink       = "●"
)

// StatusBadge maps a job status to its icon and color. Statuses outside the
// known set get the neutral badge.
func StatusBadge(status training.Status) (string, tcell.Color) {
	switch status {
	case training.StatusQueued:
		return IconQueued, ColorAmber
	case training.StatusRunning:
		return IconRunning, ColorPrimary
	case training.StatusCompleted:
		return IconCompleted, ColorSuccess
	default:
		return IconUnknown, ColorTextMuted
	}
}

// ConnColor is the indicator color for a channel state.
func ConnColor(c monitor.ConnState) tcell.Color {
	switch c {
	case monitor.Connected:
		return ColorSuccess
	case monitor.Connecting:
		return ColorWarning
	default:
		return ColorError
	}
}

// tag returns a tview foreground color tag for c.
func tag(c tcell.Color) string {
	return fmt.Sprintf("[#%06x]", c.Hex())
}
