package parser

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/dgallion1/paperdoc/internal/doctree"
	"github.com/dgallion1/paperdoc/internal/textnorm"
)

const syntheticSep = doctree.SyntheticSep

var (
	captionTableNum = regexp.MustCompile(`Table[\s\p{Z}]+(\d+)`)
	idTableNum      = regexp.MustCompile(`table(\d+)`)
)

func isValidID(id string) bool {
	return doctree.IsReferenceable(id)
}

// visualExtractor turns figure/table nodes into VisualElements. Identifiers
// synthesized for unlabelled tables live in the assigned side-table so the
// parsed tree is never written to.
type visualExtractor struct {
	doc      *document
	idgen    IDGen
	log      *slog.Logger
	assigned map[*html.Node]string
	taken    map[string]bool
}

func newVisualExtractor(doc *document, idgen IDGen, log *slog.Logger) *visualExtractor {
	x := &visualExtractor{
		doc:      doc,
		idgen:    idgen,
		log:      log,
		assigned: make(map[*html.Node]string),
		taken:    make(map[string]bool),
	}
	for _, n := range doc.order {
		if k := classify(n); k == kindFigure || k == kindTable {
			if id, ok := attr(n, "id"); ok && id != "" {
				x.taken[id] = true
			}
		}
	}
	return x
}

// extractAll extracts every figure and table in document order.
func (x *visualExtractor) extractAll() []doctree.VisualElement {
	var out []doctree.VisualElement
	for _, n := range x.doc.order {
		switch classify(n) {
		case kindFigure:
			out = append(out, x.figure(n))
		case kindTable:
			out = append(out, x.table(n))
		}
	}
	return out
}

// idOf returns the identifier a figure or table node ended up with.
func (x *visualExtractor) idOf(n *html.Node) string {
	if id, ok := x.assigned[n]; ok {
		return id
	}
	return attrOr(n, "id", "")
}

func (x *visualExtractor) figure(n *html.Node) doctree.VisualElement {
	id := attrOr(n, "id", "")
	v := doctree.VisualElement{
		Kind:       doctree.KindFigure,
		ID:         id,
		SourceLine: x.doc.position(n),
		Caption:    emptyBlock(),
	}
	if img := findFirst(n, isTag(atom.Img)); img != nil {
		v.Image = doctree.Image{Src: attrOr(img, "src", ""), Alt: attrOr(img, "alt", "")}
	}
	if fc := findFirst(n, isTag(atom.Figcaption)); fc != nil {
		v.Caption = captionBlock(textnorm.Normalize(textContent(fc)), id, "Figure")
	}
	return v
}

func (x *visualExtractor) table(n *html.Node) doctree.VisualElement {
	id := x.tableID(n)
	v := doctree.VisualElement{
		Kind:       doctree.KindTable,
		ID:         id,
		SourceLine: x.doc.position(n),
		Headers:    []string{},
		Rows:       [][]string{},
		Caption:    emptyBlock(),
	}

	var walk func(*html.Node)
	walk = func(c *html.Node) {
		for c := c.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.DataAtom {
			case atom.Th:
				v.Headers = append(v.Headers, textnorm.Normalize(textContent(c)))
			case atom.Tr:
				v.Rows = append(v.Rows, rowCells(c))
			}
			walk(c)
		}
	}
	walk(n)

	caption := x.doc.findPrevious(n, isTableCaption)
	if caption == nil {
		caption = x.doc.findNext(n, isTableCaption)
	}
	if caption != nil {
		text := textnorm.Normalize(textContent(caption))
		if captionMatches(text, id) {
			v.Caption = captionBlock(text, id, "Table")
		} else {
			x.log.Debug("table caption number mismatch", "table_id", id, "caption", truncate(text, 60))
		}
	}
	return v
}

// tableID returns the table's own id or synthesizes one from a nearby
// caption. Repeated calls for the same node return the same id.
func (x *visualExtractor) tableID(n *html.Node) string {
	if id, ok := x.assigned[n]; ok {
		return id
	}
	if id, ok := attr(n, "id"); ok && id != "" {
		return id
	}

	id := ""
	if num := x.nearbyTableNumber(n); num != "" && !x.taken["table"+num] {
		id = "table" + num
	} else {
		id = "table" + syntheticSep + x.idgen("table", x.doc.position(n))
		x.log.Debug("synthesized table id", "table_id", id, "position", x.doc.position(n))
	}
	x.taken[id] = true
	x.assigned[n] = id
	return id
}

// nearbyTableNumber looks for a "Table N" caption before, then after, n.
func (x *visualExtractor) nearbyTableNumber(n *html.Node) string {
	for _, find := range []func(*html.Node, func(*html.Node) bool) *html.Node{x.doc.findPrevious, x.doc.findNext} {
		if caption := find(n, isTableCaption); caption != nil {
			if m := captionTableNum.FindStringSubmatch(textContent(caption)); m != nil {
				return m[1]
			}
		}
	}
	return ""
}

// captionMatches reports whether the caption names the same table number as id.
func captionMatches(caption, id string) bool {
	c := captionTableNum.FindStringSubmatch(caption)
	t := idTableNum.FindStringSubmatch(id)
	return c != nil && t != nil && c[1] == t[1]
}

func rowCells(tr *html.Node) []string {
	cells := []string{}
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.DataAtom == atom.Td || c.DataAtom == atom.Th) {
			cells = append(cells, textnorm.Normalize(textContent(c)))
		}
	}
	return cells
}

func captionBlock(text, id, label string) doctree.TextBlock {
	var visual *string
	if isValidID(id) {
		visual = &id
	}
	block := doctree.TextBlock{FullText: text, Sentences: []doctree.Sentence{}}
	for i, s := range textnorm.Sentences(text) {
		block.Sentences = append(block.Sentences, doctree.Sentence{
			ID:               fmt.Sprintf("%s_caption_s%d", id, i+1),
			Text:             s,
			Context:          fmt.Sprintf("Caption of %s %s", label, id),
			AssociatedVisual: visual,
		})
	}
	return block
}

func emptyBlock() doctree.TextBlock {
	return doctree.TextBlock{Sentences: []doctree.Sentence{}}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// registry is the read-only lookup built once over all visual elements.
type registry struct {
	elements []doctree.VisualElement // every element, sorted by position
	valid    []doctree.VisualElement // valid ids only, sorted by position
	byID     map[string]int          // id -> index into valid
}

func newRegistry(elements []doctree.VisualElement) *registry {
	r := &registry{
		elements: make([]doctree.VisualElement, len(elements)),
		byID:     make(map[string]int),
	}
	copy(r.elements, elements)
	sort.SliceStable(r.elements, func(i, j int) bool {
		return r.elements[i].SourceLine < r.elements[j].SourceLine
	})
	for _, v := range r.elements {
		if !isValidID(v.ID) {
			continue
		}
		if _, dup := r.byID[v.ID]; dup {
			continue
		}
		r.byID[v.ID] = len(r.valid)
		r.valid = append(r.valid, v)
	}
	return r
}

func (r *registry) has(id string) bool {
	_, ok := r.byID[id]
	return ok
}

// latestBefore returns the last valid element positioned before pos.
func (r *registry) latestBefore(pos int) (string, bool) {
	i := sort.Search(len(r.valid), func(i int) bool { return r.valid[i].SourceLine >= pos })
	if i == 0 {
		return "", false
	}
	return r.valid[i-1].ID, true
}
