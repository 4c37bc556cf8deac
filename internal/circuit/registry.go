// Package circuit discovers circuit widgets on a host page and keeps the
// registry that the request client and the UI resolve widget ids against.
package circuit

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/agnivade/levenshtein"

	"github.com/qubitpage/qbp/internal/page"
)

// ErrUnknownWidget is matched by every lookup of an id that was never scanned.
var ErrUnknownWidget = errors.New("circuit not found")

// NotFoundError names the missing id and, when one is close, a registered id
// the caller probably meant.
type NotFoundError struct {
	ID         string
	Suggestion string
}

func (e *NotFoundError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("circuit not found: %s (did you mean %q?)", e.ID, e.Suggestion)
	}
	return "circuit not found: " + e.ID
}

func (e *NotFoundError) Is(target error) bool { return target == ErrUnknownWidget }

// Widget is one embedded editor/status unit. Editor and Status are nil when
// the page does not provide them.
type Widget struct {
	ID      string
	Element *page.Element
	Editor  *page.Editor
	Status  *page.Element
}

// Source returns the editor text, "" for widgets without an editor.
func (w *Widget) Source() string {
	if w.Editor == nil {
		return ""
	}
	return w.Editor.Value()
}

// SetStatus writes the status region if the widget has one.
func (w *Widget) SetStatus(text string) {
	if w.Status != nil {
		w.Status.SetText(text)
	}
}

// Registry maps widget ids to widgets for the lifetime of a page session.
type Registry struct {
	mu      sync.RWMutex
	widgets map[string]*Widget
}

func NewRegistry() *Registry {
	return &Registry{widgets: make(map[string]*Widget)}
}

// Register stores w under w.ID, replacing any earlier widget with that id.
func (r *Registry) Register(w *Widget) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.widgets[w.ID] = w
}

// Lookup returns the widget or a *NotFoundError.
func (r *Registry) Lookup(id string) (*Widget, error) {
	r.mu.RLock()
	w, ok := r.widgets[id]
	r.mu.RUnlock()
	if ok {
		return w, nil
	}
	return nil, &NotFoundError{ID: id, Suggestion: Suggest(id, r.IDs())}
}

func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.widgets[id]
	return ok
}

// IDs returns the registered ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.widgets))
	for id := range r.widgets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.widgets)
}

// Suggest returns the candidate closest to name, or "" when nothing is
// within two edits.
func Suggest(name string, candidates []string) string {
	best, bestDist := "", 3
	for _, c := range candidates {
		if d := levenshtein.ComputeDistance(name, c); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}
