package parser

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// nodeKind is the structural role a node plays for the section walker.
type nodeKind int

const (
	kindOther nodeKind = iota
	kindText
	kindHeader
	kindSection
	kindParagraph
	kindList
	kindFigure
	kindTable
	kindContainer
)

func classify(n *html.Node) nodeKind {
	switch n.Type {
	case html.TextNode, html.CommentNode:
		return kindText
	case html.ElementNode:
	default:
		return kindOther
	}
	switch n.DataAtom {
	case atom.Header:
		return kindHeader
	case atom.Section:
		return kindSection
	case atom.P:
		return kindParagraph
	case atom.Ul, atom.Ol:
		return kindList
	case atom.Figure:
		return kindFigure
	case atom.Table:
		return kindTable
	case atom.Div:
		return kindContainer
	}
	return kindOther
}

// document indexes every element of a parsed tree by its pre-order position.
// Positions start at 1 and stand in for source lines.
type document struct {
	root  *html.Node
	order []*html.Node
	pos   map[*html.Node]int
}

func indexDocument(root *html.Node) *document {
	d := &document{root: root, pos: make(map[*html.Node]int)}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			d.order = append(d.order, n)
			d.pos[n] = len(d.order)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return d
}

// position returns the source position of n, or 0 if n is not an indexed element.
func (d *document) position(n *html.Node) int {
	return d.pos[n]
}

// findPrevious returns the nearest element before n in document order matching fn.
func (d *document) findPrevious(n *html.Node, fn func(*html.Node) bool) *html.Node {
	for i := d.pos[n] - 2; i >= 0; i-- {
		if fn(d.order[i]) {
			return d.order[i]
		}
	}
	return nil
}

// findNext returns the nearest element after n in document order matching fn.
func (d *document) findNext(n *html.Node, fn func(*html.Node) bool) *html.Node {
	if d.pos[n] == 0 {
		return nil
	}
	for i := d.pos[n]; i < len(d.order); i++ {
		if fn(d.order[i]) {
			return d.order[i]
		}
	}
	return nil
}

// findFirst returns the first descendant of n (n excluded) matching fn.
func findFirst(n *html.Node, fn func(*html.Node) bool) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && fn(c) {
			return c
		}
		if found := findFirst(c, fn); found != nil {
			return found
		}
	}
	return nil
}

// findOwn is findFirst that does not descend into nested sections.
func findOwn(n *html.Node, fn func(*html.Node) bool) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if fn(c) {
			return c
		}
		if c.DataAtom == atom.Section {
			continue
		}
		if found := findOwn(c, fn); found != nil {
			return found
		}
	}
	return nil
}

func isTag(a atom.Atom) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.DataAtom == a
	}
}

func isTagClass(a atom.Atom, class string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.DataAtom == a && hasClass(n, class)
	}
}

func isHeading(n *html.Node) bool {
	switch n.DataAtom {
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		return true
	}
	return false
}

var (
	isSectionNumber = isTagClass(atom.Span, "section-number")
	isTableCaption  = isTagClass(atom.Div, "table-caption")
)

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func attrOr(n *html.Node, key, fallback string) string {
	if v, ok := attr(n, key); ok {
		return v
	}
	return fallback
}

func hasClass(n *html.Node, class string) bool {
	v, ok := attr(n, "class")
	if !ok {
		return false
	}
	for _, c := range strings.Fields(v) {
		if c == class {
			return true
		}
	}
	return false
}

var hiddenStyle = regexp.MustCompile(`(?i)display\s*:\s*none`)

func isHidden(n *html.Node) bool {
	v, ok := attr(n, "style")
	return ok && hiddenStyle.MatchString(v)
}

// textContent concatenates every text node under n without separators.
func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return buf.String()
}

// strippedStrings returns the trimmed, non-empty text nodes under n in document order.
func strippedStrings(n *html.Node) []string {
	var out []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if s := strings.TrimSpace(n.Data); s != "" {
				out = append(out, s)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}
