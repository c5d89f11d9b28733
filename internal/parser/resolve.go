package parser

import (
	"regexp"

	"golang.org/x/net/html"
)

var visualRef = regexp.MustCompile(`(Figure|Table)[\s\p{Z}]+(\d+)`)

// resolver picks the single visual element a block of text is about.
type resolver struct {
	doc *document
	reg *registry
	ids func(*html.Node) string
}

type refCount struct {
	id    string
	count int
}

// mostReferenced applies the textual rules: first figure mention, then first
// table mention, then the most frequently mentioned valid candidate.
func (r *resolver) mostReferenced(text string) (string, bool) {
	var figures, tables []refCount
	firstFigure, firstTable := "", ""

	bump := func(list []refCount, id string) []refCount {
		for i := range list {
			if list[i].id == id {
				list[i].count++
				return list
			}
		}
		return append(list, refCount{id: id, count: 1})
	}

	for _, m := range visualRef.FindAllStringSubmatch(text, -1) {
		if m[1] == "Figure" {
			id := "fig" + m[2]
			if firstFigure == "" {
				firstFigure = id
			}
			if r.reg.has(id) {
				figures = bump(figures, id)
			}
		} else {
			id := "table" + m[2]
			if firstTable == "" {
				firstTable = id
			}
			if r.reg.has(id) {
				tables = bump(tables, id)
			}
		}
	}

	if len(figures) == 0 && len(tables) == 0 {
		return "", false
	}
	if firstFigure != "" && r.reg.has(firstFigure) {
		return firstFigure, true
	}
	if firstTable != "" && r.reg.has(firstTable) {
		return firstTable, true
	}

	// Figures come before tables; within each, first-encounter order breaks ties.
	best := refCount{}
	for _, c := range append(figures, tables...) {
		if c.count > best.count {
			best = c
		}
	}
	return best.id, true
}

// nearest resolves the visual for node n. Text references win; without any,
// the closest preceding sibling figure/table is used, then the latest valid
// element positioned before n.
func (r *resolver) nearest(n *html.Node, text string) *string {
	if text != "" {
		if id, ok := r.mostReferenced(text); ok {
			return &id
		}
	}

	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if k := classify(s); k == kindFigure || k == kindTable {
			if id := r.ids(s); isValidID(id) {
				return &id
			}
		}
	}

	if id, ok := r.reg.latestBefore(r.doc.position(n)); ok {
		return &id
	}
	return nil
}
