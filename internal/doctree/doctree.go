package doctree

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Document is the structured model of one rendered paper page.
type Document struct {
	FrontMatter FrontMatter `json:"front_matter"`
	Abstract    TextBlock   `json:"abstract"`
	Body        Body        `json:"body"`
	References  []Reference `json:"references"`
}

// Body holds the section tree and every figure/table found in the page.
type Body struct {
	Sections       []Section       `json:"sections"`
	VisualElements []VisualElement `json:"visual_elements"` // sorted by SourceLine
}

// Sentence is the smallest addressable unit of text.
type Sentence struct {
	ID               string  `json:"id"`
	Text             string  `json:"text"`
	Context          string  `json:"context"`           // human-readable location label
	AssociatedVisual *string `json:"associated_visual"` // nil when nothing matched
}

// TextBlock is a paragraph or caption split into sentences.
type TextBlock struct {
	FullText  string     `json:"full_text"`
	Sentences []Sentence `json:"sentences"`
}

// ListType is the HTML list flavour an item came from.
type ListType string

const (
	ListOrdered   ListType = "ol"
	ListUnordered ListType = "ul"
)

// ListItem is a single-sentence text block taken from an <li>.
type ListItem struct {
	ID        string     `json:"id"`
	FullText  string     `json:"full_text"`
	ListType  ListType   `json:"list_type"`
	Value     string     `json:"value"`
	Sentences []Sentence `json:"sentences"`
}

// Section is a recursive node of the body.
type Section struct {
	ID            string      `json:"id"`
	SectionNumber string      `json:"section_number"`
	Title         string      `json:"title"`
	Paragraphs    []TextBlock `json:"paragraphs"`
	Lists         []ListItem  `json:"lists"`
	Subsections   []Section   `json:"subsections"`
}

// HasContent reports whether the section carries anything worth emitting.
func (s *Section) HasContent() bool {
	return len(s.Paragraphs) > 0 || len(s.Lists) > 0 || len(s.Subsections) > 0
}

// Context is the label attached to sentences of this section.
func (s *Section) Context() string {
	if s.SectionNumber != "" {
		return "Section " + s.SectionNumber + ": " + s.Title
	}
	return s.Title
}

// SyntheticSep marks identifiers generated by the converter rather than read
// from the page. Such ids are never offered as reference targets.
const SyntheticSep = "_"

// IsReferenceable reports whether a visual id may be the target of a sentence.
func IsReferenceable(id string) bool {
	return id != "" && !strings.Contains(id, SyntheticSep)
}

// VisualKind discriminates the VisualElement variants.
type VisualKind string

const (
	KindFigure VisualKind = "figure"
	KindTable  VisualKind = "table"
)

// Image is the figure's <img> descriptor.
type Image struct {
	Src string `json:"src"`
	Alt string `json:"alt"`
}

// VisualElement is either a figure or a table. Only the fields of the
// active variant are serialized.
type VisualElement struct {
	Kind       VisualKind
	ID         string
	SourceLine int
	Image      Image      // figure
	Headers    []string   // table
	Rows       [][]string // table
	Caption    TextBlock
}

type figureJSON struct {
	Type       VisualKind `json:"type"`
	ID         string     `json:"id"`
	SourceLine int        `json:"sourceline"`
	Image      Image      `json:"image"`
	Caption    TextBlock  `json:"caption"`
}

type tableJSON struct {
	Type       VisualKind `json:"type"`
	ID         string     `json:"id"`
	SourceLine int        `json:"sourceline"`
	Headers    []string   `json:"headers"`
	Rows       [][]string `json:"rows"`
	Caption    TextBlock  `json:"caption"`
}

func (v VisualElement) MarshalJSON() ([]byte, error) {
	if v.Kind == KindTable {
		headers, rows := v.Headers, v.Rows
		if headers == nil {
			headers = []string{}
		}
		if rows == nil {
			rows = [][]string{}
		}
		return json.Marshal(tableJSON{
			Type:       KindTable,
			ID:         v.ID,
			SourceLine: v.SourceLine,
			Headers:    headers,
			Rows:       rows,
			Caption:    v.Caption,
		})
	}
	return json.Marshal(figureJSON{
		Type:       KindFigure,
		ID:         v.ID,
		SourceLine: v.SourceLine,
		Image:      v.Image,
		Caption:    v.Caption,
	})
}

// UnmarshalJSON accepts either variant, keyed by "type".
func (v *VisualElement) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type       VisualKind `json:"type"`
		ID         string     `json:"id"`
		SourceLine int        `json:"sourceline"`
		Image      Image      `json:"image"`
		Headers    []string   `json:"headers"`
		Rows       [][]string `json:"rows"`
		Caption    TextBlock  `json:"caption"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.Type {
	case KindFigure, KindTable:
	default:
		return fmt.Errorf("unknown visual type %q", raw.Type)
	}
	*v = VisualElement{
		Kind:       raw.Type,
		ID:         raw.ID,
		SourceLine: raw.SourceLine,
		Image:      raw.Image,
		Headers:    raw.Headers,
		Rows:       raw.Rows,
		Caption:    raw.Caption,
	}
	return nil
}

// FrontMatter is the title/author/publication block.
type FrontMatter struct {
	Title              string   `json:"title"`
	Authors            []Author `json:"authors"`
	PubInfo            PubInfo  `json:"pubInfo"`
	CCSConcepts        string   `json:"CCSConcepts"`
	Keywords           string   `json:"Keywords"`
	ACMReferenceFormat string   `json:"ACMReferenceFormat"`
}

type Author struct {
	GivenName   string `json:"givenName"`
	SurName     string `json:"surName"`
	Institution string `json:"institution"`
	Email       string `json:"email"`
}

type PubInfo struct {
	DOI            string `json:"DOI"`
	ConferenceInfo string `json:"conference_info"`
}

// Reference is one bibliography entry.
type Reference struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Value    string `json:"value"`
	Citation string `json:"citation"`
}

// Chunk is a sized text segment with structural context, ready for a search index.
type Chunk struct {
	Text       string   `json:"text"`
	Index      int      `json:"index"`      // sequence number within document
	Breadcrumb []string `json:"breadcrumb"` // e.g. ["3 Method", "3.2 Study Design"]
	SectionID  string   `json:"section_id,omitempty"`
	Visuals    []string `json:"visuals,omitempty"` // associated visual ids, first-seen order
}
