package components

import (
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/plexus-ai/plexus-metrics/internal/ui/styles"
)

// StatusSpinner animates while remote counts are in flight.
type StatusSpinner struct {
	model spinner.Model
	label string
}

// NewStatusSpinner creates a spinner that shows label next to the animation.
func NewStatusSpinner(label string) StatusSpinner {
	return StatusSpinner{
		model: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(styles.Primary)),
		),
		label: label,
	}
}

// Update advances the animation on its own tick messages.
func (s StatusSpinner) Update(msg tea.Msg) (StatusSpinner, tea.Cmd) {
	var cmd tea.Cmd
	s.model, cmd = s.model.Update(msg)
	return s, cmd
}

// Tick starts the animation.
func (s StatusSpinner) Tick() tea.Cmd {
	return s.model.Tick
}

// Label returns the text shown next to the animation.
func (s StatusSpinner) Label() string {
	return s.label
}

// Status renders the animation and label. With more than one request
// pending the count is appended; with none it renders nothing.
func (s StatusSpinner) Status(pending int) string {
	switch {
	case pending <= 0:
		return ""
	case pending == 1:
		return s.model.View() + " " + styles.HelpStyle.Render(s.label)
	default:
		return s.model.View() + " " + styles.HelpStyle.Render(fmt.Sprintf("%s (%d)", s.label, pending))
	}
}

// Centered renders the status of a single pending request in the middle of
// a width x height box.
func (s StatusSpinner) Centered(width, height int) string {
	return styles.CenterBoth(s.Status(1), width, height)
}
