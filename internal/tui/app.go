// Package tui is the UI orchestrator: a bubbletea program over a host page.
// Its message loop is the event queue; exchanges run as commands and report
// back as ExchangeSettled.
package tui

import (
	"context"
	"encoding/json"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/qubitpage/qbp/internal/backend"
	"github.com/qubitpage/qbp/internal/circuit"
	"github.com/qubitpage/qbp/internal/config"
	"github.com/qubitpage/qbp/internal/database/repository"
	"github.com/qubitpage/qbp/internal/page"
	"github.com/qubitpage/qbp/internal/results"
)

const (
	notifyTTL    = 3700 * time.Millisecond
	historyLimit = 8
)

// Deps are the collaborators of an App. Exchanges and Results may be nil when
// history is disabled.
type Deps struct {
	Doc       *page.Document
	Circuits  *circuit.Registry
	Client    *backend.Client
	Config    config.Config
	Token     string
	Log       *zap.Logger
	Exchanges *repository.ExchangeRepo
	Results   *repository.ResultRepo
}

type labels struct {
	running string
	idle    string
	failed  string
}

type focusKind int

const (
	focusControl focusKind = iota
	focusTab
	focusEditor
)

type focusItem struct {
	kind    focusKind
	control int
	tab     *page.Element
	widget  *circuit.Widget
}

// App ties the page, the registry and the request client together.
type App struct {
	ctx            context.Context
	doc            *page.Document
	circuits       *circuit.Registry
	client         *backend.Client
	exchanges      *repository.ExchangeRepo
	stored         *repository.ResultRepo
	log            *zap.Logger
	compileOptions map[string]any
	labels         labels

	controls []*control
	focus    []focusItem
	cursor   int
	editing  *circuit.Widget

	results   map[string]results.Measurement
	history   []repository.ExchangeRecord
	status    string
	notifySeq int
	spinner   spinner.Model
	width     int
	height    int
}

func New(ctx context.Context, deps Deps) *App {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	circuits := deps.Circuits
	if circuits == nil {
		circuits = circuit.Scan(deps.Doc.Root())
	}
	client := deps.Client
	if client == nil {
		client = backend.New(deps.Config.Backend.BaseURL, circuits, backend.WithLogger(log))
	}
	spin := spinner.New()
	spin.Spinner = spinner.MiniDot

	a := &App{
		ctx:            ctx,
		doc:            deps.Doc,
		circuits:       circuits,
		client:         client,
		exchanges:      deps.Exchanges,
		stored:         deps.Results,
		log:            log,
		compileOptions: deps.Config.CompileOptions(deps.Token),
		labels: labels{
			running: orDefault(deps.Config.UI.RunningLabel, "Running..."),
			idle:    orDefault(deps.Config.UI.IdleLabel, "Run"),
			failed:  orDefault(deps.Config.UI.ErrorLabel, "Error"),
		},
		controls: scanControls(deps.Doc),
		results:  map[string]results.Measurement{},
		spinner:  spin,
	}
	for i := range a.controls {
		a.focus = append(a.focus, focusItem{kind: focusControl, control: i})
	}
	for _, tab := range scanTabs(deps.Doc) {
		a.focus = append(a.focus, focusItem{kind: focusTab, tab: tab})
	}
	for _, id := range circuits.IDs() {
		if w, err := circuits.Lookup(id); err == nil && w.Editor != nil {
			a.focus = append(a.focus, focusItem{kind: focusEditor, widget: w})
		}
	}
	log.Info("page scanned",
		zap.Int("circuits", circuits.Len()),
		zap.Int("controls", len(a.controls)))
	return a
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.loadHistory(), a.loadStoredResults())
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = m.Width, m.Height
	case tea.KeyMsg:
		if a.editing != nil {
			return a, a.handleEditorKey(m)
		}
		return a.handleKey(m)
	case RunRequested:
		return a, a.startRun(m.Control)
	case ExchangeSettled:
		return a, a.settle(m)
	case TabActivated:
		activateTab(m.Tab)
	case BackdropClicked:
		dismissModal(m.Modal, m.Target)
	case spinner.TickMsg:
		if a.busyCount() == 0 {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(m)
		return a, cmd
	case clearNotifyMsg:
		if m.seq == a.notifySeq {
			a.status = ""
		}
	case historyMsg:
		a.history = []repository.ExchangeRecord(m)
	case storedResultsMsg:
		for target, meas := range m {
			if _, seen := a.results[target]; seen {
				continue
			}
			if results.Mount(a.doc, target, meas) {
				a.results[target] = meas
			}
		}
	case errMsg:
		a.log.Error("ui", zap.Error(m.error))
		return a, a.notify("error: " + m.Error())
	}
	return a, nil
}

func (a *App) handleKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "q", "ctrl+c":
		return a, tea.Quit
	case "tab", "down", "j":
		a.moveFocus(1)
	case "shift+tab", "up", "k":
		a.moveFocus(-1)
	case "enter", " ":
		return a, a.activateFocused()
	case "esc":
		if modal := openModal(a.doc); modal != nil {
			return a, func() tea.Msg { return BackdropClicked{Modal: modal, Target: modal} }
		}
	}
	return a, nil
}

func (a *App) moveFocus(delta int) {
	if len(a.focus) == 0 {
		return
	}
	a.cursor = (a.cursor + delta + len(a.focus)) % len(a.focus)
}

func (a *App) activateFocused() tea.Cmd {
	if a.cursor >= len(a.focus) {
		return nil
	}
	item := a.focus[a.cursor]
	switch item.kind {
	case focusControl:
		return func() tea.Msg { return RunRequested{Control: item.control} }
	case focusTab:
		return func() tea.Msg { return TabActivated{Tab: item.tab} }
	case focusEditor:
		a.editing = item.widget
	}
	return nil
}

// handleEditorKey routes keys to the editor being edited. Esc leaves editing;
// keys the editor does not consume fall back to focus navigation.
func (a *App) handleEditorKey(m tea.KeyMsg) tea.Cmd {
	ed := a.editing.Editor
	switch m.Type {
	case tea.KeyEsc:
		a.editing = nil
		return nil
	case tea.KeyCtrlC:
		return tea.Quit
	case tea.KeyRunes:
		if len(m.Runes) > 1 {
			ed.Insert(string(m.Runes))
			return nil
		}
	}
	key, ok := editorKey(m)
	if !ok || !ed.KeyDown(key) {
		switch m.Type {
		case tea.KeyTab:
			a.editing = nil
			a.moveFocus(1)
		case tea.KeyShiftTab:
			a.editing = nil
			a.moveFocus(-1)
		}
	}
	return nil
}

func editorKey(m tea.KeyMsg) (string, bool) {
	switch m.Type {
	case tea.KeyTab:
		return page.KeyTab, true
	case tea.KeyEnter:
		return page.KeyEnter, true
	case tea.KeyBackspace:
		return page.KeyBackspace, true
	case tea.KeyLeft:
		return page.KeyArrowLeft, true
	case tea.KeyRight:
		return page.KeyArrowRight, true
	case tea.KeySpace:
		return " ", true
	case tea.KeyRunes:
		return string(m.Runes), true
	}
	return "", false
}

// notify shows text on the status line until it expires or is replaced.
func (a *App) notify(text string) tea.Cmd {
	a.notifySeq++
	seq := a.notifySeq
	a.status = text
	return tea.Tick(notifyTTL, func(time.Time) tea.Msg { return clearNotifyMsg{seq: seq} })
}

// commands
func (a *App) loadHistory() tea.Cmd {
	if a.exchanges == nil {
		return nil
	}
	return func() tea.Msg {
		list, err := a.exchanges.Recent(a.ctx, historyLimit)
		if err != nil {
			return errMsg{err}
		}
		return historyMsg(list)
	}
}

func (a *App) loadStoredResults() tea.Cmd {
	if a.stored == nil {
		return nil
	}
	return func() tea.Msg {
		list, err := a.stored.List(a.ctx)
		if err != nil {
			return errMsg{err}
		}
		out := make(storedResultsMsg, len(list))
		for _, r := range list {
			var counts results.Counts
			if err := json.Unmarshal([]byte(r.Counts), &counts); err != nil {
				a.log.Warn("stored result unreadable", zap.String("target", r.Target), zap.Error(err))
				continue
			}
			out[r.Target] = results.Measurement{Counts: counts, Shots: r.Shots}
		}
		return out
	}
}

func (a *App) saveResultCmd(target string, m results.Measurement) tea.Cmd {
	if a.stored == nil {
		return nil
	}
	return func() tea.Msg {
		if err := a.stored.Save(a.ctx, target, m); err != nil {
			return errMsg{err}
		}
		return nil
	}
}
