package tui

import (
	"github.com/qubitpage/qbp/internal/database/repository"
	"github.com/qubitpage/qbp/internal/page"
	"github.com/qubitpage/qbp/internal/results"
)

// RunRequested is a click on the action control at index Control.
type RunRequested struct {
	Control int
}

// ExchangeSettled reports the end of the exchange started by a control.
// Err is a transport failure; OK is the service's own success flag.
type ExchangeSettled struct {
	Control     int
	Action      string
	Target      string
	OK          bool
	Message     string
	Measurement *results.Measurement
	Err         error
}

// Failed reports either kind of failure.
func (m ExchangeSettled) Failed() bool { return m.Err != nil || !m.OK }

// TabActivated is a click on a .qbp-tab element.
type TabActivated struct {
	Tab *page.Element
}

// BackdropClicked is a click landing on Target inside Modal.
type BackdropClicked struct {
	Modal  *page.Element
	Target *page.Element
}

type clearNotifyMsg struct{ seq int }

type historyMsg []repository.ExchangeRecord

type storedResultsMsg map[string]results.Measurement

type errMsg struct{ error }
