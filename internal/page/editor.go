package page

import (
	"sync"
	"unicode/utf8"
)

// Key names understood by Editor.KeyDown.
const (
	KeyTab        = "Tab"
	KeyEnter      = "Enter"
	KeyBackspace  = "Backspace"
	KeyArrowLeft  = "ArrowLeft"
	KeyArrowRight = "ArrowRight"
)

// KeyInterceptor runs before the editor's default key behavior. Returning
// true marks the key handled and suppresses the default.
type KeyInterceptor func(ed *Editor, key string) bool

// Editor is the text-input handle over an editable element (a textarea).
// Selection offsets count runes.
type Editor struct {
	el *Element

	mu           sync.Mutex
	selStart     int
	selEnd       int
	interceptors []KeyInterceptor
}

// NewEditor wraps el with the caret placed at the end of its text.
func NewEditor(el *Element) *Editor {
	n := utf8.RuneCountInString(el.Text())
	return &Editor{el: el, selStart: n, selEnd: n}
}

func (ed *Editor) Element() *Element { return ed.el }

func (ed *Editor) Value() string {
	return ed.el.Text()
}

// SetValue replaces the text and clamps the selection into range.
func (ed *Editor) SetValue(s string) {
	ed.el.SetText(s)
	ed.mu.Lock()
	defer ed.mu.Unlock()
	n := utf8.RuneCountInString(s)
	ed.selStart = min(ed.selStart, n)
	ed.selEnd = min(ed.selEnd, n)
}

func (ed *Editor) Selection() (start, end int) {
	ed.mu.Lock()
	defer ed.mu.Unlock()
	return ed.selStart, ed.selEnd
}

// Select sets the selection; start == end places the caret.
func (ed *Editor) Select(start, end int) {
	n := utf8.RuneCountInString(ed.Value())
	start = clamp(start, 0, n)
	end = clamp(end, start, n)
	ed.mu.Lock()
	defer ed.mu.Unlock()
	ed.selStart, ed.selEnd = start, end
}

// Intercept installs a key interceptor. Interceptors run in install order.
func (ed *Editor) Intercept(fn KeyInterceptor) {
	ed.mu.Lock()
	defer ed.mu.Unlock()
	ed.interceptors = append(ed.interceptors, fn)
}

// Insert replaces the selection with s and places the caret after it.
func (ed *Editor) Insert(s string) {
	value := []rune(ed.Value())
	start, end := ed.Selection()
	start = clamp(start, 0, len(value))
	end = clamp(end, start, len(value))
	out := make([]rune, 0, len(value)+len(s))
	out = append(out, value[:start]...)
	out = append(out, []rune(s)...)
	out = append(out, value[end:]...)
	ed.el.SetText(string(out))
	caret := start + utf8.RuneCountInString(s)
	ed.mu.Lock()
	ed.selStart, ed.selEnd = caret, caret
	ed.mu.Unlock()
}

// KeyDown delivers a key press. It reports whether the editor consumed the
// key; an unconsumed Tab means focus navigation belongs to the caller.
func (ed *Editor) KeyDown(key string) bool {
	ed.mu.Lock()
	interceptors := append([]KeyInterceptor(nil), ed.interceptors...)
	ed.mu.Unlock()
	for _, fn := range interceptors {
		if fn(ed, key) {
			return true
		}
	}

	switch key {
	case KeyTab:
		return false
	case KeyEnter:
		ed.Insert("\n")
		return true
	case KeyBackspace:
		ed.backspace()
		return true
	case KeyArrowLeft:
		start, _ := ed.Selection()
		ed.Select(start-1, start-1)
		return true
	case KeyArrowRight:
		_, end := ed.Selection()
		ed.Select(end+1, end+1)
		return true
	}
	if utf8.RuneCountInString(key) == 1 {
		ed.Insert(key)
		return true
	}
	return false
}

func (ed *Editor) backspace() {
	start, end := ed.Selection()
	if start == end {
		if start == 0 {
			return
		}
		ed.Select(start-1, end)
	}
	ed.Insert("")
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
