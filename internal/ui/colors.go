package ui

import "github.com/charmbracelet/lipgloss"

const (
	colorAccent  = lipgloss.Color("#7D56F4")
	colorSuccess = lipgloss.Color("#04B575")
	colorFailure = lipgloss.Color("#FF4672")
	colorWarning = lipgloss.Color("#FFA500")
	colorMuted   = lipgloss.Color("#626262")
)

var styles = newPalette()

// palette holds the styles shared by every view.
type palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	muted lipgloss.Style
}

func newPalette() palette {
	return palette{
		title: lipgloss.NewStyle().Foreground(colorAccent).Bold(true).MarginBottom(1),
		ok:    lipgloss.NewStyle().Foreground(colorSuccess).Bold(true),
		err:   lipgloss.NewStyle().Foreground(colorFailure).Bold(true),
		warn:  lipgloss.NewStyle().Foreground(colorWarning),
		muted: lipgloss.NewStyle().Foreground(colorMuted).Italic(true),
	}
}

func (p palette) Title(s string) string { return p.title.Render(s) }
func (p palette) OK(s string) string    { return p.ok.Render(s) }
func (p palette) Err(s string) string   { return p.err.Render(s) }
func (p palette) Warn(s string) string  { return p.warn.Render(s) }
func (p palette) Muted(s string) string { return p.muted.Render(s) }

// State colors a stored run state: committed is success, rollback_failed is failure, a cleanly deleted edit
// is a warning and anything else is muted.
func (p palette) State(state string) string {
	switch state {
	case "committed":
		return p.OK(state)
	case "rollback_failed":
		return p.Err(state)
	case "deleted":
		return p.Warn(state)
	default:
		return p.Muted(state)
	}
}
