package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

var popupStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("#00d4ff")).
	Padding(1, 2)

// renderPopup draws content as a bordered card centered over base. Columns
// of base left and right of the card stay visible.
func renderPopup(base, content string, width, height int) string {
	if width <= 0 || height <= 0 {
		return base
	}
	card := strings.Split(popupStyle.MaxWidth(width).Render(content), "\n")
	if len(card) > height {
		card = card[:height]
	}
	cardWidth := lipgloss.Width(strings.Join(card, "\n"))
	x := (width - cardWidth) / 2
	y := (height - len(card)) / 2

	lines := strings.Split(base, "\n")
	out := make([]string, height)
	for i := range out {
		line := ""
		if i < len(lines) {
			line = lines[i]
		}
		if i >= y && i < y+len(card) {
			line = padTo(ansi.Truncate(line, x, ""), x) + padTo(card[i-y], cardWidth) + ansi.TruncateLeft(line, x+cardWidth, "")
		}
		out[i] = padTo(ansi.Truncate(line, width, ""), width)
	}
	return strings.Join(out, "\n")
}

// padTo right-pads s with spaces to width columns.
func padTo(s string, width int) string {
	if w := ansi.StringWidth(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}
