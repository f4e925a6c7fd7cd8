// Package styles holds the dashboard palette and shared lipgloss styles.
package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/plexus-ai/plexus-metrics/internal/models"
)

// Palette. Each color has a light-terminal and a dark-terminal variant.
var (
	Primary   = lipgloss.AdaptiveColor{Light: "162", Dark: "205"}
	Secondary = lipgloss.AdaptiveColor{Light: "57", Dark: "63"}
	Subtle    = lipgloss.AdaptiveColor{Light: "250", Dark: "240"}

	Items  = lipgloss.AdaptiveColor{Light: "166", Dark: "208"}
	Scores = lipgloss.AdaptiveColor{Light: "25", Dark: "39"}

	Success = lipgloss.AdaptiveColor{Light: "28", Dark: "42"}
	Error   = lipgloss.AdaptiveColor{Light: "160", Dark: "196"}
	Warning = lipgloss.AdaptiveColor{Light: "136", Dark: "220"}
	Info    = lipgloss.AdaptiveColor{Light: "25", Dark: "39"}

	Surface    = lipgloss.AdaptiveColor{Light: "254", Dark: "237"}
	TextStrong = lipgloss.AdaptiveColor{Light: "235", Dark: "252"}
	TextDim    = lipgloss.AdaptiveColor{Light: "242", Dark: "245"}
	TextFaint  = lipgloss.AdaptiveColor{Light: "248", Dark: "240"}
)

var entityAccents = map[models.EntitySelector]lipgloss.AdaptiveColor{
	models.ItemsCreated:        Items,
	models.ScoreResultsUpdated: Scores,
}

// EntityColor is the accent used for everything describing sel.
func EntityColor(sel models.EntitySelector) lipgloss.AdaptiveColor {
	if c, ok := entityAccents[sel]; ok {
		return c
	}
	return Primary
}

var (
	TitleStyle    = lipgloss.NewStyle().Bold(true).Foreground(Primary)
	SubTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(Secondary)

	// HeaderStyle underlines the top bar.
	HeaderStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.NormalBorder(), false, false, true, false).
			BorderForeground(Subtle)

	ActiveEntityStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.AdaptiveColor{Light: "255", Dark: "229"}).
				Padding(0, 1)
	InactiveEntityStyle = lipgloss.NewStyle().
				Foreground(TextDim).
				Background(Surface).
				Padding(0, 1)

	CardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Subtle).
			Padding(0, 2).
			MarginRight(1)
	CardTitleStyle = lipgloss.NewStyle().Foreground(TextDim)
	CardValueStyle = lipgloss.NewStyle().Bold(true).Foreground(TextStrong)

	ContentStyle     = lipgloss.NewStyle().Padding(1, 2)
	TableHeaderStyle = lipgloss.NewStyle().Bold(true).Underline(true).Foreground(Primary)
	HelpStyle        = lipgloss.NewStyle().Foreground(TextFaint)

	ErrorTextStyle   = lipgloss.NewStyle().Foreground(Error)
	SuccessTextStyle = lipgloss.NewStyle().Foreground(Success)
	WarningTextStyle = lipgloss.NewStyle().Bold(true).Foreground(Warning)
	InfoTextStyle    = lipgloss.NewStyle().Foreground(Info)
)

// CenterBoth places content in the middle of a width x height box.
func CenterBoth(content string, width, height int) string {
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, content)
}
