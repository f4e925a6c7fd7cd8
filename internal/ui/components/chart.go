// Package components provides reusable UI components for the TUI.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/plexus-ai/plexus-metrics/internal/models"
	"github.com/plexus-ai/plexus-metrics/internal/ui/styles"
)

var sparkChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// RenderLineChart creates a single-series ASCII line chart.
func RenderLineChart(data []float64, width, height int, caption string) string {
	if len(data) == 0 {
		return styles.HelpStyle.Render("No data available")
	}

	// Ensure minimum dimensions
	if width < 20 {
		width = 20
	}
	if height < 3 {
		height = 3
	}

	return asciigraph.Plot(data,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
	)
}

// RenderSparkline creates a compact inline sparkline chart.
func RenderSparkline(values []float64, width int) string {
	if len(values) == 0 || width <= 0 {
		return ""
	}

	maxVal := 0.0
	for _, v := range values {
		maxVal = max(maxVal, v)
	}
	if maxVal == 0 {
		maxVal = 1
	}

	// Sample values to fit width
	var result strings.Builder
	step := float64(len(values)) / float64(width)
	if step < 1 {
		step = 1
	}

	for i := 0; i < width && int(float64(i)*step) < len(values); i++ {
		val := values[int(float64(i)*step)]
		normalized := int((val / maxVal) * float64(len(sparkChars)-1))
		normalized = min(max(normalized, 0), len(sparkChars)-1)
		result.WriteRune(sparkChars[normalized])
	}

	return result.String()
}

// RenderStatCard renders a small bordered card with a title and a value.
func RenderStatCard(title, value string, accent lipgloss.TerminalColor) string {
	body := lipgloss.JoinVertical(lipgloss.Left,
		styles.CardTitleStyle.Render(title),
		styles.CardValueStyle.Foreground(accent).Render(value),
	)
	return styles.CardStyle.Render(body)
}

// RenderHourlyTable renders one line per summary slot, newest first, with a
// proportional bar.
func RenderHourlyTable(chart []models.BucketResult, barWidth int) string {
	if len(chart) == 0 {
		return styles.HelpStyle.Render("No data available")
	}
	if barWidth < 10 {
		barWidth = 10
	}

	var peak int64
	for _, p := range chart {
		peak = max(peak, p.Count)
	}
	if peak == 0 {
		peak = 1
	}

	lines := make([]string, 0, len(chart)+1)
	lines = append(lines, styles.TableHeaderStyle.Render(fmt.Sprintf("%-6s %8s", "Hour", "Count")))
	for i := len(chart) - 1; i >= 0; i-- {
		p := chart[i]
		barLen := int(p.Count * int64(barWidth) / peak)
		bar := lipgloss.NewStyle().Foreground(styles.Secondary).Render(strings.Repeat("█", barLen))
		line := fmt.Sprintf("%-6s %8d %s", p.Label, p.Count, bar)
		if p.Partial {
			line += " " + styles.WarningTextStyle.Render("!")
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
