package dom

import (
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/matzehuels/starmark/pkg/errors"
)

// Selector is a compiled CSS selector group. A comma-separated list matches
// an element if any member does.
type Selector struct {
	raw string
	sel cascadia.Matcher
}

// Compile parses a CSS selector or a comma-separated group of selectors.
func Compile(s string) (Selector, error) {
	sel, err := cascadia.ParseGroup(s)
	if err != nil {
		return Selector{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid selector %q", s)
	}
	return Selector{raw: s, sel: sel}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(s string) Selector {
	sel, err := Compile(s)
	if err != nil {
		panic(err)
	}
	return sel
}

// String returns the source text of the selector.
func (s Selector) String() string { return s.raw }

// Match reports whether n itself matches.
func (s Selector) Match(n *html.Node) bool {
	return n != nil && s.sel != nil && n.Type == html.ElementNode && s.sel.Match(n)
}

// First returns the first descendant of n that matches, or nil.
func (s Selector) First(n *html.Node) *html.Node {
	if n == nil || s.sel == nil {
		return nil
	}
	return cascadia.Query(n, s.sel)
}

// All returns every descendant of n that matches, in document order.
func (s Selector) All(n *html.Node) []*html.Node {
	if n == nil || s.sel == nil {
		return nil
	}
	return cascadia.QueryAll(n, s.sel)
}

// MatchOrContains reports whether n matches or has a matching descendant.
func (s Selector) MatchOrContains(n *html.Node) bool {
	return s.Match(n) || s.First(n) != nil
}
