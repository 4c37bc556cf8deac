package tui

import (
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/qubitpage/qbp/internal/backend"
	"github.com/qubitpage/qbp/internal/circuit"
	"github.com/qubitpage/qbp/internal/page"
	"github.com/qubitpage/qbp/internal/results"
)

const (
	actionSimulate  = "simulate"
	actionCompile   = "compile"
	actionBenchmark = "benchmark"

	defaultShots = 1024
)

var knownActions = []string{actionBenchmark, actionCompile, actionSimulate}

type controlState string

const (
	stateIdle controlState = "idle"
	stateBusy controlState = "busy"
)

// control is one .qbp-button[data-action] element and its busy/idle state.
type control struct {
	el    *page.Element
	state controlState
}

// runRequest is what a control's attributes said at click time.
type runRequest struct {
	action  string
	circuit string
	shots   int
	target  string
	widget  string
}

func scanControls(doc *page.Document) []*control {
	els := doc.Root().FindAll(page.All(page.Class("qbp-button"), page.HasData("action")))
	out := make([]*control, 0, len(els))
	for _, el := range els {
		out = append(out, &control{el: el, state: stateIdle})
	}
	return out
}

func readRequest(el *page.Element) runRequest {
	req := runRequest{
		action:  strings.TrimSpace(el.Data("action")),
		circuit: strings.TrimSpace(el.Data("circuit")),
		target:  strings.TrimSpace(el.Data("target")),
		widget:  strings.TrimSpace(el.Data("widget")),
	}
	if req.circuit == "" {
		req.circuit = backend.DefaultCircuit
	}
	if req.widget == "" {
		req.widget = strings.TrimSpace(el.Data("circuit"))
	}
	def := defaultShots
	if req.action == actionBenchmark {
		def = backend.DefaultBenchmarkShots
	}
	req.shots = parseShots(el.Data("shots"), def)
	return req
}

// parseShots reads the leading decimal integer of s ("2048 shots" is 2048).
// Anything without one yields def.
func parseShots(s string, def int) int {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return def
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return def
	}
	return n
}

// startRun moves control i to Busy and returns the exchange command. It
// returns nil when the control is already Busy or its action is unknown.
func (a *App) startRun(i int) tea.Cmd {
	if i < 0 || i >= len(a.controls) {
		return nil
	}
	c := a.controls[i]
	if c.state == stateBusy {
		return nil
	}
	req := readRequest(c.el)
	switch req.action {
	case actionSimulate, actionCompile, actionBenchmark:
	default:
		fields := []zap.Field{zap.String("action", req.action)}
		if s := circuit.Suggest(req.action, knownActions); s != "" {
			fields = append(fields, zap.String("did_you_mean", s))
		}
		a.log.Warn("unknown control action", fields...)
		return nil
	}

	c.state = stateBusy
	c.el.SetAttr("disabled", "")
	c.el.SetText(a.labels.running)
	a.log.Debug("run requested",
		zap.String("action", req.action),
		zap.String("circuit", req.circuit),
		zap.Int("shots", req.shots))

	run := a.exchangeCmd(i, req)
	if a.busyCount() == 1 {
		return tea.Batch(run, a.spinner.Tick)
	}
	return run
}

func (a *App) exchangeCmd(i int, req runRequest) tea.Cmd {
	return func() tea.Msg {
		settled := ExchangeSettled{Control: i, Action: req.action, Target: req.target}
		switch req.action {
		case actionSimulate:
			res, err := a.client.Simulate(a.ctx, req.circuit, map[string]any{"shots": req.shots})
			settled.Err = err
			if err == nil {
				m := res.Measurement()
				settled.OK, settled.Message, settled.Measurement = res.OK(), res.Error, &m
			}
		case actionCompile:
			res, err := a.client.Compile(a.ctx, req.widget, a.compileOptions)
			settled.Err = err
			if err == nil {
				settled.OK, settled.Message = res.OK(), res.Error
			}
		case actionBenchmark:
			res, err := a.client.Benchmark(a.ctx, req.circuit, req.shots)
			settled.Err = err
			if err == nil {
				settled.OK = res.OK()
				if msg, ok := res["error"].(string); ok {
					settled.Message = msg
				}
			}
		}
		return settled
	}
}

// settle returns control m.Control to Idle and renders a successful
// measurement into its target.
func (a *App) settle(m ExchangeSettled) tea.Cmd {
	if m.Control < 0 || m.Control >= len(a.controls) {
		return nil
	}
	c := a.controls[m.Control]
	c.state = stateIdle
	c.el.RemoveAttr("disabled")

	var cmds []tea.Cmd
	if m.Failed() {
		c.el.SetText(a.labels.failed)
		cmds = append(cmds, a.notify(failureText(m)))
	} else {
		if m.Target != "" && m.Measurement != nil {
			if results.Mount(a.doc, m.Target, *m.Measurement) {
				a.results[m.Target] = *m.Measurement
				cmds = append(cmds, a.saveResultCmd(m.Target, *m.Measurement))
			} else {
				a.log.Warn("render target not found", zap.String("target", m.Target))
			}
		}
		label := c.el.Data("label")
		if label == "" {
			label = a.labels.idle
		}
		c.el.SetText(label)
		cmds = append(cmds, a.notify(m.Action+" done"))
	}
	cmds = append(cmds, a.loadHistory())
	return tea.Batch(cmds...)
}

func failureText(m ExchangeSettled) string {
	switch {
	case m.Err != nil:
		return m.Action + " failed: " + m.Err.Error()
	case m.Message != "":
		return m.Action + " failed: " + m.Message
	default:
		return m.Action + " failed"
	}
}

func (a *App) busyCount() int {
	n := 0
	for _, c := range a.controls {
		if c.state == stateBusy {
			n++
		}
	}
	return n
}
