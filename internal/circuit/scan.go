package circuit

import (
	"strings"

	"github.com/google/uuid"

	"github.com/qubitpage/qbp/internal/page"
)

// Host-page markers.
const (
	ContainerClass = "qbp-circuit"
	EditorClass    = "circuit-editor"
	StatusClass    = "circuit-status"
)

// Indent is what the Tab key inserts inside a circuit editor.
const Indent = "  "

// Scan builds a registry from every circuit container under root.
func Scan(root *page.Element) *Registry {
	reg := NewRegistry()
	for _, el := range root.FindAll(page.Class(ContainerClass)) {
		id := strings.TrimSpace(el.Data("id"))
		if id == "" {
			id = generateID(reg)
		}
		w := &Widget{ID: id, Element: el}
		if ed := el.Find(page.Class(EditorClass)); ed != nil {
			w.Editor = page.NewEditor(ed)
			w.Editor.Intercept(indentOnTab)
		}
		w.Status = el.Find(page.Class(StatusClass))
		reg.Register(w)
	}
	return reg
}

// generateID returns "circuit-" plus a short random suffix unused in reg.
func generateID(reg *Registry) string {
	for {
		id := "circuit-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
		if !reg.Has(id) {
			return id
		}
	}
}

func indentOnTab(ed *page.Editor, key string) bool {
	if key != page.KeyTab {
		return false
	}
	ed.Insert(Indent)
	return true
}
