package page

import "golang.org/x/net/html"

// Matcher selects element nodes during a search.
type Matcher func(n *html.Node) bool

// Class matches elements carrying the class name.
func Class(name string) Matcher {
	return func(n *html.Node) bool { return hasClass(n, name) }
}

// AttrEquals matches elements whose attribute key equals val.
func AttrEquals(key, val string) Matcher {
	return func(n *html.Node) bool {
		v, ok := attr(n, key)
		return ok && v == val
	}
}

// DataEquals matches [data-key="val"].
func DataEquals(key, val string) Matcher {
	return AttrEquals("data-"+key, val)
}

// HasData matches elements that carry data-key at all.
func HasData(key string) Matcher {
	return func(n *html.Node) bool {
		_, ok := attr(n, "data-"+key)
		return ok
	}
}

// All matches when every matcher does.
func All(ms ...Matcher) Matcher {
	return func(n *html.Node) bool {
		for _, m := range ms {
			if !m(n) {
				return false
			}
		}
		return true
	}
}
