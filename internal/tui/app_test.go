package tui

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/qubitpage/qbp/internal/backend"
	"github.com/qubitpage/qbp/internal/circuit"
	"github.com/qubitpage/qbp/internal/config"
	"github.com/qubitpage/qbp/internal/database"
	"github.com/qubitpage/qbp/internal/database/repository"
	"github.com/qubitpage/qbp/internal/page"
	"github.com/qubitpage/qbp/internal/results"
)

const hostPage = `<html><body>
<div class="qbp-circuit" data-id="bell">
  <textarea class="circuit-editor">H 0</textarea>
  <div class="circuit-status"></div>
</div>
<button class="qbp-button" data-action="simulate" data-circuit="ghz3" data-shots="2048" data-target="out" data-label="Run GHZ">Run GHZ</button>
<button class="qbp-button" data-action="compile" data-widget="bell">Compile</button>
<button class="qbp-button" data-action="simulat">Typo</button>
<div id="out"></div>
<section>
  <nav class="qbp-tabs">
    <a class="qbp-tab active" data-panel="p1">One</a>
    <a class="qbp-tab" data-panel="p2">Two</a>
  </nav>
  <div class="qbp-tab-panel" id="p1">first</div>
  <div class="qbp-tab-panel hidden" id="p2">second</div>
</section>
<div class="qbp-modal" id="dialog"><div id="dialog-body">hello</div></div>
</body></html>`

type request struct {
	Path string
	Body map[string]any
}

type stubService struct {
	mu       sync.Mutex
	requests []request
	status   int
	reply    string
}

func (s *stubService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var body map[string]any
	_ = json.Unmarshal(raw, &body)
	s.mu.Lock()
	s.requests = append(s.requests, request{Path: r.URL.Path, Body: body})
	status, reply := s.status, s.reply
	s.mu.Unlock()
	if status != 0 {
		w.WriteHeader(status)
	}
	_, _ = io.WriteString(w, reply)
}

func (s *stubService) respond(status int, reply string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status, s.reply = status, reply
}

func (s *stubService) all() []request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]request(nil), s.requests...)
}

type fixture struct {
	app     *App
	svc     *stubService
	srv     *httptest.Server
	results *repository.ResultRepo
}

func newFixture(t *testing.T, withHistory bool) *fixture {
	t.Helper()
	doc, err := page.ParseString(hostPage)
	require.NoError(t, err)
	reg := circuit.Scan(doc.Root())

	svc := &stubService{reply: `{"success":true}`}
	srv := httptest.NewServer(svc)
	t.Cleanup(srv.Close)

	log := zaptest.NewLogger(t)
	cfg := config.Config{Compile: config.CompileConfig{Backend: "simulator", Shots: 1024}}
	deps := Deps{Doc: doc, Circuits: reg, Config: cfg, Log: log}
	opts := []backend.Option{backend.WithLogger(log)}

	f := &fixture{svc: svc, srv: srv}
	if withHistory {
		db, err := database.Open(filepath.Join(t.TempDir(), "history.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })
		require.NoError(t, database.RunMigrations(db))
		deps.Exchanges = repository.NewExchangeRepo(db)
		deps.Results = repository.NewResultRepo(db)
		f.results = deps.Results
		opts = append(opts, backend.WithRecorder(deps.Exchanges))
	}
	deps.Client = backend.New(srv.URL, reg, opts...)
	f.app = New(context.Background(), deps)
	return f
}

func (f *fixture) control(t *testing.T, action string) (int, *page.Element) {
	t.Helper()
	for i, c := range f.app.controls {
		if c.el.Data("action") == action {
			return i, c.el
		}
	}
	t.Fatalf("no control with action %q", action)
	return -1, nil
}

// settledFrom runs the command returned by a run request and picks out the
// exchange result.
func settledFrom(t *testing.T, cmd tea.Cmd) ExchangeSettled {
	t.Helper()
	require.NotNil(t, cmd)
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		for _, c := range batch {
			if c == nil {
				continue
			}
			if s, ok := c().(ExchangeSettled); ok {
				return s
			}
		}
		t.Fatalf("batch carried no ExchangeSettled")
	}
	s, ok := msg.(ExchangeSettled)
	if !ok {
		t.Fatalf("unexpected message %T", msg)
	}
	return s
}

func disabled(el *page.Element) bool {
	_, ok := el.Attr("disabled")
	return ok
}

func TestRunControlSimulatesWithDeclaredParams(t *testing.T) {
	f := newFixture(t, false)
	f.svc.respond(0, `{"success":true,"data":{"counts":{"000":1024,"111":1024},"shots":2048}}`)
	i, btn := f.control(t, actionSimulate)

	_, cmd := f.app.Update(RunRequested{Control: i})
	require.True(t, disabled(btn))
	require.Equal(t, "Running...", btn.Text())

	// a busy control ignores further clicks
	_, again := f.app.Update(RunRequested{Control: i})
	require.Nil(t, again)

	settled := settledFrom(t, cmd)
	require.False(t, settled.Failed())

	reqs := f.svc.all()
	require.Len(t, reqs, 1)
	require.Equal(t, backend.PathSimulate, reqs[0].Path)
	require.Equal(t, "ghz3", reqs[0].Body["type"])
	params := reqs[0].Body["params"].(map[string]any)
	require.EqualValues(t, 2048, params["shots"])

	f.app.Update(settled)
	require.False(t, disabled(btn))
	require.Equal(t, "Run GHZ", btn.Text())

	out := f.app.doc.Root().FindID("out")
	rows := out.FindAll(page.Class("qbp-result-row"))
	require.Len(t, rows, 2)
	require.Contains(t, out.Text(), "50.0%")
	require.Contains(t, f.app.results, "out")
}

func TestRunControlFailureShowsError(t *testing.T) {
	cases := []struct {
		name   string
		status int
		reply  string
	}{
		{name: "service failure", reply: `{"success":false,"error":"queue full"}`},
		{name: "http failure", status: http.StatusBadGateway, reply: "bad gateway"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, false)
			f.svc.respond(tc.status, tc.reply)
			i, btn := f.control(t, actionSimulate)

			_, cmd := f.app.Update(RunRequested{Control: i})
			require.True(t, disabled(btn))
			settled := settledFrom(t, cmd)
			require.True(t, settled.Failed())

			f.app.Update(settled)
			require.False(t, disabled(btn))
			require.Equal(t, "Error", btn.Text())
			require.Empty(t, f.app.doc.Root().FindID("out").Children())
			require.Contains(t, f.app.status, "simulate failed")
		})
	}
}

func TestRunControlTransportFailure(t *testing.T) {
	f := newFixture(t, false)
	f.srv.Close()
	i, btn := f.control(t, actionSimulate)

	_, cmd := f.app.Update(RunRequested{Control: i})
	settled := settledFrom(t, cmd)
	require.Error(t, settled.Err)

	f.app.Update(settled)
	require.False(t, disabled(btn))
	require.Equal(t, "Error", btn.Text())
}

func TestCompileControlSendsConfiguredOptions(t *testing.T) {
	f := newFixture(t, false)
	i, btn := f.control(t, actionCompile)

	_, cmd := f.app.Update(RunRequested{Control: i})
	settled := settledFrom(t, cmd)
	f.app.Update(settled)

	reqs := f.svc.all()
	require.Len(t, reqs, 1)
	require.Equal(t, backend.PathCompile, reqs[0].Path)
	require.Equal(t, "H 0", reqs[0].Body["source"])
	require.Equal(t, "simulator", reqs[0].Body["backend"])
	require.EqualValues(t, 1024, reqs[0].Body["shots"])

	w, err := f.app.circuits.Lookup("bell")
	require.NoError(t, err)
	require.Equal(t, backend.StatusCompiled, w.Status.Text())
	require.Equal(t, "Run", btn.Text())
}

func TestUnknownActionIsIgnored(t *testing.T) {
	f := newFixture(t, false)
	i, btn := f.control(t, "simulat")

	_, cmd := f.app.Update(RunRequested{Control: i})
	require.Nil(t, cmd)
	require.False(t, disabled(btn))
	require.Equal(t, "Typo", btn.Text())
	require.Empty(t, f.svc.all())
}

func TestEnterOnFocusedControlRequestsRun(t *testing.T) {
	f := newFixture(t, false)
	_, cmd := f.app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	require.Equal(t, RunRequested{Control: 0}, cmd())
}

func TestTabActivationSwitchesPanels(t *testing.T) {
	f := newFixture(t, false)
	root := f.app.doc.Root()
	tabs := root.FindAll(page.Class(tabClass))
	require.Len(t, tabs, 2)

	f.app.Update(TabActivated{Tab: tabs[1]})
	require.False(t, tabs[0].HasClass(activeClass))
	require.True(t, tabs[1].HasClass(activeClass))
	require.True(t, root.FindID("p1").HasClass(hiddenClass))
	require.False(t, root.FindID("p2").HasClass(hiddenClass))

	f.app.Update(TabActivated{Tab: tabs[0]})
	require.True(t, tabs[0].HasClass(activeClass))
	require.False(t, tabs[1].HasClass(activeClass))
	require.False(t, root.FindID("p1").HasClass(hiddenClass))
	require.True(t, root.FindID("p2").HasClass(hiddenClass))
}

func TestBackdropClickHidesOnlyOnModalItself(t *testing.T) {
	f := newFixture(t, false)
	root := f.app.doc.Root()
	modal := root.FindID("dialog")

	f.app.Update(BackdropClicked{Modal: modal, Target: root.FindID("dialog-body")})
	require.False(t, modal.HasClass(hiddenClass))

	_, cmd := f.app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	f.app.Update(cmd())
	require.True(t, modal.HasClass(hiddenClass))

	_, cmd = f.app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.Nil(t, cmd)
}

func TestEditingModeRoutesKeysToEditor(t *testing.T) {
	f := newFixture(t, false)
	for f.app.focus[f.app.cursor].kind != focusEditor {
		f.app.Update(tea.KeyMsg{Type: tea.KeyTab})
	}
	f.app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, f.app.editing)

	f.app.Update(tea.KeyMsg{Type: tea.KeyTab})
	f.app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("CX")})
	w, err := f.app.circuits.Lookup("bell")
	require.NoError(t, err)
	require.Equal(t, "H 0  CX", w.Editor.Value())
	require.Contains(t, f.app.View(), "editing bell")

	f.app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.Nil(t, f.app.editing)
}

func TestNotifyExpiresOnlyLatest(t *testing.T) {
	f := newFixture(t, false)
	f.app.notify("first")
	first := f.app.notifySeq
	f.app.notify("second")

	f.app.Update(clearNotifyMsg{seq: first})
	require.Equal(t, "second", f.app.status)
	f.app.Update(clearNotifyMsg{seq: f.app.notifySeq})
	require.Empty(t, f.app.status)
}

func TestHistoryAndStoredResults(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	counts := results.Counts{{State: "0", N: 3}, {State: "1", N: 1}}
	require.NoError(t, f.results.Save(ctx, "out", results.Measurement{Counts: counts, Shots: 4}))

	f.app.Update(f.app.loadStoredResults()())
	out := f.app.doc.Root().FindID("out")
	require.Len(t, out.FindAll(page.Class("qbp-result-row")), 2)
	require.Contains(t, out.Text(), "75.0%")

	i, _ := f.control(t, actionCompile)
	_, cmd := f.app.Update(RunRequested{Control: i})
	f.app.Update(settledFrom(t, cmd))

	f.app.Update(f.app.loadHistory()())
	require.Len(t, f.app.history, 1)
	require.Equal(t, "compile", f.app.history[0].Op)

	view := f.app.View()
	require.Contains(t, view, "Recent exchanges")
	require.True(t, strings.Contains(view, "|0⟩"), "histogram missing from view")
}

func TestParseShots(t *testing.T) {
	require.Equal(t, 2048, parseShots("2048", 1024))
	require.Equal(t, 512, parseShots(" 512 shots", 1024))
	require.Equal(t, 1024, parseShots("", 1024))
	require.Equal(t, 1024, parseShots("many", 1024))
	require.Equal(t, 4096, parseShots("+", 4096))
}

func TestPopupKeepsBaseOutsideCard(t *testing.T) {
	base := strings.Repeat(strings.Repeat("x", 40)+"\n", 9) + strings.Repeat("x", 40)
	got := renderPopup(base, "hi", 40, 10)
	lines := strings.Split(got, "\n")
	require.Len(t, lines, 10)
	require.Equal(t, strings.Repeat("x", 40), lines[0])
	require.Contains(t, got, "hi")

	// 8x5 card centered at column 16, row 2
	top := ansi.Strip(lines[2])
	require.True(t, strings.HasPrefix(top, strings.Repeat("x", 16)+"╭"), top)
	require.True(t, strings.HasSuffix(top, "╮"+strings.Repeat("x", 16)), top)
	require.Contains(t, lines[4], "hi")
	require.Equal(t, strings.Repeat("x", 40), lines[7])

	short := strings.Split(renderPopup("", "hi", 40, 10), "\n")
	require.Len(t, short, 10)
	require.True(t, strings.HasPrefix(ansi.Strip(short[2]), strings.Repeat(" ", 16)+"╭"), short[2])
	for _, l := range short {
		require.Equal(t, 40, ansi.StringWidth(l))
	}
}
