package results

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/qubitpage/qbp/internal/page"
)

const (
	rowStyle   = "display:flex;align-items:center;gap:10px;margin-bottom:6px"
	stateStyle = "font-family:monospace;width:60px;color:var(--accent,#00d4ff)"
	trackStyle = "flex:1;height:20px;background:var(--border,#1e2a45);border-radius:4px;overflow:hidden"
	barStyle   = "height:100%;background:linear-gradient(90deg,#00d4ff,#00ffaa);border-radius:4px;transition:width 0.4s ease"
	pctStyle   = "font-family:monospace;font-size:12px;width:45px;text-align:right"
)

// Resolve finds a render target by element id, falling back to
// [data-circuit=target].
func Resolve(doc *page.Document, target string) *page.Element {
	root := doc.Root()
	if el := root.FindID(target); el != nil {
		return el
	}
	return root.Find(page.DataEquals("circuit", target))
}

// Mount replaces the target's content with one histogram row per count.
// It reports false, leaving the page untouched, when no element matches.
func Mount(doc *page.Document, target string, m Measurement) bool {
	el := Resolve(doc, target)
	if el == nil {
		return false
	}
	rows := Rows(m)
	nodes := make([]*html.Node, 0, len(rows))
	for _, r := range rows {
		nodes = append(nodes, rowNode(r))
	}
	el.ReplaceChildren(nodes...)
	return true
}

func rowNode(r Row) *html.Node {
	pct := r.Text()
	return element(atom.Div, rowStyle, "qbp-result-row",
		element(atom.Span, stateStyle, "qbp-result-state", text("|"+r.Label+"⟩")),
		element(atom.Div, trackStyle, "qbp-result-track",
			element(atom.Div, "width:"+pct+";"+barStyle, "qbp-result-bar"),
		),
		element(atom.Span, pctStyle, "qbp-result-pct", text(pct)),
	)
}

func element(tag atom.Atom, style, class string, children ...*html.Node) *html.Node {
	n := &html.Node{
		Type:     html.ElementNode,
		DataAtom: tag,
		Data:     tag.String(),
		Attr: []html.Attribute{
			{Key: "class", Val: class},
			{Key: "style", Val: style},
		},
	}
	for _, c := range children {
		n.AppendChild(c)
	}
	return n
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}
