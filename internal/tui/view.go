package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/qubitpage/qbp/internal/results"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	focusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#00d4ff")).Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6c7a96"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5f87"))
	activeStyle = lipgloss.NewStyle().Reverse(true)
	editorStyle = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(0, 1)
)

func (a *App) View() string {
	width := a.width
	if width <= 0 {
		width = 80
	}
	var sections []string
	for _, s := range []string{
		titleStyle.Render("qbp circuits"),
		a.renderControls(),
		a.renderTabs(),
		a.renderWidgets(),
		a.renderResults(width),
		a.renderHistory(),
		a.renderStatus(),
	} {
		if s != "" {
			sections = append(sections, s)
		}
	}
	body := strings.Join(sections, "\n\n")

	if modal := openModal(a.doc); modal != nil {
		content := strings.TrimSpace(modal.Text()) + "\n\n" + mutedStyle.Render("esc to close")
		if a.height > 0 {
			return renderPopup(body, content, width, a.height)
		}
		body += "\n\n" + popupStyle.Render(content)
	}
	return body
}

func (a *App) focused(kind focusKind, match func(focusItem) bool) bool {
	if a.editing != nil || a.cursor >= len(a.focus) {
		return false
	}
	item := a.focus[a.cursor]
	return item.kind == kind && match(item)
}

func (a *App) renderControls() string {
	if len(a.controls) == 0 {
		return mutedStyle.Render("no run controls on this page")
	}
	lines := []string{titleStyle.Render("Controls")}
	for i, c := range a.controls {
		req := readRequest(c.el)
		label := strings.TrimSpace(c.el.Text())
		if c.state == stateBusy {
			label = a.spinner.View() + " " + label
		} else if label == a.labels.failed {
			label = errorStyle.Render(label)
		}
		detail := fmt.Sprintf("%s %s x%d", req.action, req.circuit, req.shots)
		if req.target != "" {
			detail += " -> " + req.target
		}
		line := fmt.Sprintf("[%s] %s", label, mutedStyle.Render(detail))
		if a.focused(focusControl, func(f focusItem) bool { return f.control == i }) {
			line = focusStyle.Render("> ") + line
		} else {
			line = "  " + line
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (a *App) renderTabs() string {
	var parts []string
	for _, item := range a.focus {
		if item.kind != focusTab {
			continue
		}
		name := strings.TrimSpace(item.tab.Text())
		if item.tab.HasClass(activeClass) {
			name = activeStyle.Render(" " + name + " ")
		} else {
			name = " " + name + " "
		}
		if a.focused(focusTab, func(f focusItem) bool { return f.tab.Same(item.tab) }) {
			name = focusStyle.Render(">") + name
		}
		parts = append(parts, name)
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, " ")
}

func (a *App) renderWidgets() string {
	ids := a.circuits.IDs()
	if len(ids) == 0 {
		return ""
	}
	lines := []string{titleStyle.Render("Circuits")}
	for _, id := range ids {
		w, err := a.circuits.Lookup(id)
		if err != nil {
			continue
		}
		status := ""
		if w.Status != nil {
			status = strings.TrimSpace(w.Status.Text())
		}
		marker := "  "
		if a.focused(focusEditor, func(f focusItem) bool { return f.widget == w }) {
			marker = focusStyle.Render("> ")
		}
		lines = append(lines, fmt.Sprintf("%s%s %s", marker, id, mutedStyle.Render(status)))
		if a.editing == w {
			start, _ := w.Editor.Selection()
			src := []rune(w.Editor.Value())
			start = min(start, len(src))
			text := string(src[:start]) + "▏" + string(src[start:])
			lines = append(lines, editorStyle.Render(text))
		}
	}
	return strings.Join(lines, "\n")
}

func (a *App) renderResults(width int) string {
	if len(a.results) == 0 {
		return ""
	}
	targets := make([]string, 0, len(a.results))
	for t := range a.results {
		targets = append(targets, t)
	}
	sort.Strings(targets)
	blocks := make([]string, 0, len(targets))
	for _, t := range targets {
		blocks = append(blocks, results.Histogram(t, a.results[t], width-2))
	}
	return strings.Join(blocks, "\n\n")
}

func (a *App) renderHistory() string {
	if a.exchanges == nil || len(a.history) == 0 {
		return ""
	}
	lines := []string{titleStyle.Render("Recent exchanges")}
	for _, ex := range a.history {
		outcome := "ok"
		switch {
		case ex.Error != "":
			outcome = errorStyle.Render("error")
		case ex.Failed():
			outcome = errorStyle.Render("failed")
		}
		lines = append(lines, fmt.Sprintf("%s  %-9s %-10s %s %s",
			ex.StartedAt.Local().Format("15:04:05"), ex.Op, ex.Target, outcome,
			mutedStyle.Render(ex.Duration.Round(time.Millisecond).String())))
	}
	return strings.Join(lines, "\n")
}

func (a *App) renderStatus() string {
	help := mutedStyle.Render("tab move  enter run/open  esc close  q quit")
	if a.editing != nil {
		help = mutedStyle.Render("editing " + a.editing.ID + "  esc done")
	}
	if a.status == "" {
		return help
	}
	return a.status + "\n" + help
}
