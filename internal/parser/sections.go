package parser

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/dgallion1/paperdoc/internal/doctree"
	"github.com/dgallion1/paperdoc/internal/textnorm"
)

// walker descends the section tree. The registry it reads is complete
// before the first section is visited.
type walker struct {
	doc     *document
	res     *resolver
	idgen   IDGen
	numbers map[string]string
	log     *slog.Logger
}

// section parses one <section> and everything nested in it.
func (w *walker) section(n *html.Node, parent string) doctree.Section {
	id := attrOr(n, "id", "")
	if id == "" {
		id = "section" + syntheticSep + w.idgen("section", w.doc.position(n))
	}

	number, title := headingOf(n)
	if forced, ok := w.numbers[id]; ok {
		number = forced
	}

	sec := doctree.Section{
		ID:            id,
		SectionNumber: composeNumber(number, parent),
		Title:         title,
		Paragraphs:    []doctree.TextBlock{},
		Lists:         []doctree.ListItem{},
		Subsections:   []doctree.Section{},
	}
	context := sec.Context()

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch classify(c) {
		case kindSection:
			sub := w.section(c, sec.SectionNumber)
			if sub.HasContent() {
				sec.Subsections = append(sec.Subsections, sub)
			} else {
				w.log.Debug("dropped empty section", "section_id", sub.ID)
			}

		case kindParagraph:
			if isHidden(c) {
				continue
			}
			var block doctree.TextBlock
			var ok bool
			if isInlineTitle(c) {
				block, ok = w.inlineTitleParagraph(c, id, len(sec.Paragraphs)+1, context)
			} else {
				block, ok = w.paragraph(c, id, len(sec.Paragraphs)+1, context)
			}
			if ok {
				sec.Paragraphs = append(sec.Paragraphs, block)
			}

		case kindList:
			sec.Lists = append(sec.Lists, w.list(c)...)
		}
	}
	return sec
}

func (w *walker) paragraph(p *html.Node, sectionID string, ordinal int, context string) (doctree.TextBlock, bool) {
	text := textnorm.Normalize(textContent(p))
	if text == "" {
		return doctree.TextBlock{}, false
	}
	return w.block(text, w.res.nearest(p, text), sectionID, ordinal, context), true
}

// inlineTitleParagraph handles a paragraph that opens with an emphasized
// section title. Only the text after the title is kept.
func (w *walker) inlineTitleParagraph(p *html.Node, sectionID string, ordinal int, context string) (doctree.TextBlock, bool) {
	full := []rune(textnorm.Normalize(textContent(p)))
	em := findFirst(p, isTag(atom.Em))
	emText := []rune(textnorm.Normalize(textContent(em)))

	rest := ""
	if len(emText) < len(full) {
		rest = strings.TrimSpace(string(full[len(emText):]))
	}
	if strings.HasPrefix(rest, ".") {
		rest = strings.TrimSpace(rest[1:])
	}
	if rest == "" {
		return doctree.TextBlock{}, false
	}
	return w.block(rest, w.res.nearest(p, rest), sectionID, ordinal, context), true
}

// block splits text into sentences that all share the paragraph's visual.
func (w *walker) block(text string, visual *string, sectionID string, ordinal int, context string) doctree.TextBlock {
	b := doctree.TextBlock{FullText: text, Sentences: []doctree.Sentence{}}
	for i, s := range textnorm.Sentences(text) {
		b.Sentences = append(b.Sentences, doctree.Sentence{
			ID:               fmt.Sprintf("%s_p%d_s%d", sectionID, ordinal, i+1),
			Text:             s,
			Context:          context,
			AssociatedVisual: visual,
		})
	}
	return b
}

// list turns the direct <li> children of a list into single-sentence items.
func (w *walker) list(n *html.Node) []doctree.ListItem {
	listType := doctree.ListUnordered
	if n.DataAtom == atom.Ol {
		listType = doctree.ListOrdered
	}

	var items []doctree.ListItem
	ordinal := 0
	for li := n.FirstChild; li != nil; li = li.NextSibling {
		if li.Type != html.ElementNode || li.DataAtom != atom.Li {
			continue
		}
		ordinal++
		text := textnorm.Normalize(textContent(li))
		id := "list" + syntheticSep + w.idgen("list", w.doc.position(li))
		items = append(items, doctree.ListItem{
			ID:       id,
			FullText: text,
			ListType: listType,
			Value:    attrOr(li, "value", strconv.Itoa(ordinal)),
			Sentences: []doctree.Sentence{{
				ID:               id + "_s1",
				Text:             text,
				Context:          "List Item",
				AssociatedVisual: w.res.nearest(li, text),
			}},
		})
	}
	return items
}

// isInlineTitle reports whether p opens with an <em> carrying a section number.
func isInlineTitle(p *html.Node) bool {
	em := findFirst(p, isTag(atom.Em))
	return em != nil && findFirst(em, isSectionNumber) != nil
}

// headingOf reads the section's number and title from its own heading, or
// failing that from an emphasized run in its first paragraph.
func headingOf(sec *html.Node) (number, title string) {
	if h := findOwn(sec, isHeading); h != nil {
		if span := findFirst(h, isSectionNumber); span != nil {
			number = strings.TrimSpace(textContent(span))
		}
		return number, removeNumber(textnorm.Normalize(textContent(h)), number)
	}

	p := findOwn(sec, isTag(atom.P))
	if p == nil {
		return "", ""
	}
	em := findFirst(p, isTag(atom.Em))
	if em == nil {
		return "", ""
	}
	span := findFirst(em, isSectionNumber)
	if span == nil {
		return "", ""
	}
	number = strings.TrimSpace(textContent(span))
	title = removeNumber(textnorm.Normalize(textContent(em)), number)
	if i := strings.Index(title, "."); i >= 0 {
		title = strings.TrimSpace(title[:i])
	}
	return number, title
}

func removeNumber(text, number string) string {
	if number == "" {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(strings.ReplaceAll(text, number, ""))
}

// composeNumber qualifies a section number with its parent's. A number that
// already carries the parent prefix has it stripped and re-applied, a bare
// single segment under a purely numeric parent is appended to it, and
// anything else is taken as authoritative.
func composeNumber(number, parent string) string {
	if number == "" || parent == "" {
		return number
	}
	if rel, ok := stripParent(number, parent); ok {
		if rel == "" {
			return number
		}
		return parent + "." + rel
	}
	if isDigits(parent) && !strings.Contains(number, ".") {
		return parent + "." + number
	}
	return number
}

// stripParent removes parent from the front of number when it ends on a
// segment boundary ("3.2" under "3" gives "2"; "31" under "3" does not match).
func stripParent(number, parent string) (string, bool) {
	if !strings.HasPrefix(number, parent) {
		return "", false
	}
	rest := number[len(parent):]
	if rest != "" && rest[0] != '.' {
		return "", false
	}
	return strings.TrimLeft(rest, "."), true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
