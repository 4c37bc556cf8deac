// Package page holds the live host-page model: an HTML tree that widgets are
// scanned from and results are rendered into.
//
// Every read and write goes through the owning Document's lock so exchange
// completions may update status and display regions from any goroutine.
// Concurrent writers to the same element are last-writer-wins.
package page

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/net/html"
)

// Document is a parsed host page.
type Document struct {
	mu   sync.Mutex
	root *html.Node
}

// Parse reads an HTML page.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	return &Document{root: root}, nil
}

// ParseString is Parse for in-memory markup.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Root returns the document node as an element handle.
func (d *Document) Root() *Element {
	return &Element{doc: d, node: d.root}
}

// Render writes the current tree back out as HTML.
func (d *Document) Render(w io.Writer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return html.Render(w, d.root)
}

func (d *Document) String() string {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return ""
	}
	return buf.String()
}

// Element is a handle to one node of a Document.
type Element struct {
	doc  *Document
	node *html.Node
}

// Same reports whether both handles point at the same node.
func (e *Element) Same(other *Element) bool {
	if e == nil || other == nil {
		return false
	}
	return e.node == other.node
}

func (e *Element) Tag() string {
	return e.node.Data
}

func (e *Element) ID() string {
	v, _ := e.Attr("id")
	return v
}

func (e *Element) Attr(key string) (string, bool) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return attr(e.node, key)
}

func (e *Element) SetAttr(key, val string) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	setAttr(e.node, key, val)
}

func (e *Element) RemoveAttr(key string) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	removeAttr(e.node, key)
}

// Data reads the data-<key> attribute, "" when absent.
func (e *Element) Data(key string) string {
	v, _ := e.Attr("data-" + key)
	return v
}

func (e *Element) HasClass(name string) bool {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return hasClass(e.node, name)
}

func (e *Element) AddClass(name string) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if hasClass(e.node, name) {
		return
	}
	classes := classList(e.node)
	setAttr(e.node, "class", strings.Join(append(classes, name), " "))
}

func (e *Element) RemoveClass(name string) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	classes := classList(e.node)
	kept := classes[:0]
	for _, c := range classes {
		if c != name {
			kept = append(kept, c)
		}
	}
	if len(kept) == len(classes) {
		return
	}
	setAttr(e.node, "class", strings.Join(kept, " "))
}

// Text returns the concatenated text of the element's subtree.
func (e *Element) Text() string {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	return textOf(e.node)
}

// SetText replaces all children with a single text node.
func (e *Element) SetText(s string) {
	e.ReplaceChildren(&html.Node{Type: html.TextNode, Data: s})
}

// ReplaceChildren swaps the element's children for nodes. The nodes must be
// detached.
func (e *Element) ReplaceChildren(nodes ...*html.Node) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	for c := e.node.FirstChild; c != nil; c = e.node.FirstChild {
		e.node.RemoveChild(c)
	}
	for _, n := range nodes {
		e.node.AppendChild(n)
	}
}

func (e *Element) Parent() *Element {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	if e.node.Parent == nil {
		return nil
	}
	return &Element{doc: e.doc, node: e.node.Parent}
}

// Children returns the direct element children.
func (e *Element) Children() []*Element {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	var out []*Element
	for c := e.node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, &Element{doc: e.doc, node: c})
		}
	}
	return out
}

// FindAll returns every descendant matching m, in document order.
func (e *Element) FindAll(m Matcher) []*Element {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	var out []*Element
	walk(e.node, func(n *html.Node) bool {
		if m(n) {
			out = append(out, &Element{doc: e.doc, node: n})
		}
		return true
	})
	return out
}

// Find returns the first descendant matching m, or nil.
func (e *Element) Find(m Matcher) *Element {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()
	var found *html.Node
	walk(e.node, func(n *html.Node) bool {
		if m(n) {
			found = n
			return false
		}
		return true
	})
	if found == nil {
		return nil
	}
	return &Element{doc: e.doc, node: found}
}

// FindID returns the descendant with the given id attribute, or nil.
func (e *Element) FindID(id string) *Element {
	if id == "" {
		return nil
	}
	return e.Find(AttrEquals("id", id))
}

// walk visits descendants of n depth-first, stopping when visit returns false.
func walk(n *html.Node, visit func(*html.Node) bool) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && !visit(c) {
			return false
		}
		if !walk(c, visit) {
			return false
		}
	}
	return true
}

func textOf(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(textOf(c))
	}
	return b.String()
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			continue
		}
		kept = append(kept, a)
	}
	n.Attr = kept
}

func classList(n *html.Node) []string {
	v, _ := attr(n, "class")
	return strings.Fields(v)
}

func hasClass(n *html.Node, name string) bool {
	for _, c := range classList(n) {
		if c == name {
			return true
		}
	}
	return false
}
