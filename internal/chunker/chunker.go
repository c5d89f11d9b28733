package chunker

import (
	"strings"

	"github.com/dgallion1/paperdoc/internal/doctree"
	"github.com/dgallion1/paperdoc/internal/textnorm"
)

// Config controls chunking behavior.
type Config struct {
	ChunkSize    int // Target chunk size in tokens.
	ChunkOverlap int // Overlap between consecutive chunks in tokens.
	MinChunk     int // Minimum chunk size to emit.
}

// DefaultConfig returns sensible defaults. Captions are short, so MinChunk
// stays low enough to keep them.
func DefaultConfig() Config {
	return Config{
		ChunkSize:    1500,
		ChunkOverlap: 200,
		MinChunk:     5,
	}
}

// ChunkDocument walks a paper model and produces structure-aware chunks:
// the abstract, every section in reading order, then figure and table captions.
func ChunkDocument(doc *doctree.Document, cfg Config) []doctree.Chunk {
	def := DefaultConfig()
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = def.ChunkSize
	}
	if cfg.ChunkOverlap <= 0 {
		cfg.ChunkOverlap = def.ChunkOverlap
	}
	if cfg.MinChunk <= 0 {
		cfg.MinChunk = def.MinChunk
	}

	c := &collector{cfg: cfg}

	if doc.Abstract.FullText != "" {
		c.emit(doc.Abstract.FullText, []string{"Abstract"}, "", visualsOf(doc.Abstract.Sentences))
	}

	for i := range doc.Body.Sections {
		c.walkSection(&doc.Body.Sections[i], nil)
	}

	for _, v := range doc.Body.VisualElements {
		if v.Caption.FullText == "" {
			continue
		}
		var visuals []string
		if doctree.IsReferenceable(v.ID) {
			visuals = []string{v.ID}
		}
		c.emit(v.Caption.FullText, []string{"Caption", v.ID}, "", visuals)
	}

	return c.chunks
}

type collector struct {
	cfg    Config
	chunks []doctree.Chunk
}

// walkSection emits one logical text run per section: its paragraphs then
// its list items, separated as paragraphs.
func (c *collector) walkSection(sec *doctree.Section, breadcrumb []string) {
	var bc []string
	bc = append(bc, breadcrumb...)
	if label := sectionLabel(sec); label != "" {
		bc = append(bc, label)
	}

	var parts []string
	var sentences []doctree.Sentence
	for _, p := range sec.Paragraphs {
		parts = append(parts, p.FullText)
		sentences = append(sentences, p.Sentences...)
	}
	for _, li := range sec.Lists {
		parts = append(parts, li.FullText)
		sentences = append(sentences, li.Sentences...)
	}
	if len(parts) > 0 {
		c.emit(strings.Join(parts, "\n\n"), bc, sec.ID, visualsOf(sentences))
	}

	for i := range sec.Subsections {
		c.walkSection(&sec.Subsections[i], bc)
	}
}

// emit chunks text and appends the results, skipping anything below MinChunk.
func (c *collector) emit(text string, bc []string, sectionID string, visuals []string) {
	var pieces []string
	if EstimateTokens(text) <= c.cfg.ChunkSize {
		pieces = []string{text}
	} else {
		pieces = splitText(text, c.cfg.ChunkSize, c.cfg.ChunkOverlap)
	}
	for _, piece := range pieces {
		if EstimateTokens(piece) < c.cfg.MinChunk {
			continue
		}
		c.chunks = append(c.chunks, doctree.Chunk{
			Text:       piece,
			Index:      len(c.chunks),
			Breadcrumb: copyBreadcrumb(bc),
			SectionID:  sectionID,
			Visuals:    visuals,
		})
	}
}

func sectionLabel(sec *doctree.Section) string {
	return strings.TrimSpace(sec.SectionNumber + " " + sec.Title)
}

// visualsOf lists the distinct visuals referenced by sentences, in first-seen order.
func visualsOf(sentences []doctree.Sentence) []string {
	var out []string
	seen := make(map[string]bool)
	for _, s := range sentences {
		if s.AssociatedVisual == nil || seen[*s.AssociatedVisual] {
			continue
		}
		seen[*s.AssociatedVisual] = true
		out = append(out, *s.AssociatedVisual)
	}
	return out
}

// splitText breaks text into chunks of approximately targetTokens, with overlap.
func splitText(text string, targetTokens, overlapTokens int) []string {
	// Split by paragraphs first.
	paragraphs := splitByParagraphs(text)

	var result []string
	var current strings.Builder
	currentTokens := 0

	for _, para := range paragraphs {
		paraTokens := EstimateTokens(para)

		// If a single paragraph exceeds the target, split it further.
		if paraTokens > targetTokens {
			if currentTokens > 0 {
				result = append(result, current.String())
				current.Reset()
				currentTokens = 0
			}
			result = append(result, splitBySentences(para, targetTokens, overlapTokens)...)
			continue
		}

		if currentTokens+paraTokens > targetTokens && currentTokens > 0 {
			result = append(result, current.String())

			// Start next chunk with overlap from end of current.
			overlap := getOverlapText(current.String(), overlapTokens)
			current.Reset()
			currentTokens = 0
			if overlap != "" {
				current.WriteString(overlap)
				currentTokens = EstimateTokens(overlap)
			}
		}

		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
		currentTokens += paraTokens
	}

	if currentTokens > 0 {
		result = append(result, current.String())
	}

	return result
}

// splitByParagraphs splits on double-newlines.
func splitByParagraphs(text string) []string {
	parts := strings.Split(text, "\n\n")
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// splitBySentences breaks a large paragraph into sentence-based chunks.
func splitBySentences(text string, targetTokens, overlapTokens int) []string {
	var result []string
	var current strings.Builder
	currentTokens := 0

	for _, sent := range textnorm.Sentences(text) {
		sentTokens := EstimateTokens(sent)

		if currentTokens+sentTokens > targetTokens && currentTokens > 0 {
			result = append(result, current.String())
			overlap := getOverlapText(current.String(), overlapTokens)
			current.Reset()
			currentTokens = 0
			if overlap != "" {
				current.WriteString(overlap)
				currentTokens = EstimateTokens(overlap)
			}
		}

		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sent)
		currentTokens += sentTokens
	}

	if currentTokens > 0 {
		result = append(result, current.String())
	}

	return result
}

// getOverlapText extracts the last N tokens worth of text for overlap.
func getOverlapText(text string, targetTokens int) string {
	words := strings.Fields(text)
	// Approximate: 1.33 tokens per word.
	targetWords := int(float64(targetTokens) / 1.33)
	if targetWords <= 0 || len(words) <= targetWords {
		return ""
	}
	return strings.Join(words[len(words)-targetWords:], " ")
}

func copyBreadcrumb(bc []string) []string {
	if len(bc) == 0 {
		return nil
	}
	out := make([]string, len(bc))
	copy(out, bc)
	return out
}
