package results

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00d4ff"))
	barFill    = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ffaa"))
	barTrack   = lipgloss.NewStyle().Foreground(lipgloss.Color("#1e2a45"))
	tableStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// Histogram draws Rows(m) as horizontal bars for a terminal of the given
// width.
func Histogram(title string, m Measurement, width int) string {
	if width <= 0 {
		return ""
	}
	rows := Rows(m)
	if len(rows) == 0 {
		return title + "\n(no data)"
	}
	labelW := 0
	for _, r := range rows {
		labelW = max(labelW, lipgloss.Width("|"+r.Label+"⟩"))
	}
	track := max(1, width-labelW-9)
	lines := []string{title}
	for _, r := range rows {
		fill := int(r.Percent / 100 * float64(track))
		label := fmt.Sprintf("%-*s", labelW, "|"+r.Label+"⟩")
		bar := barFill.Render(strings.Repeat("█", fill)) + barTrack.Render(strings.Repeat("░", track-fill))
		lines = append(lines, fmt.Sprintf("%s %s %6s", labelStyle.Render(label), bar, r.Text()))
	}
	return strings.Join(lines, "\n")
}

// Table boxes FormatCounts for display without graphics.
func Table(m Measurement) string {
	if m.Empty() {
		return tableStyle.Render("(no data)")
	}
	return tableStyle.Render(FormatCounts(m.Counts, m.Shots))
}
