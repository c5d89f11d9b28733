package pipeline

import (
	"bytes"
	"fmt"
	"time"

	"github.com/dgallion1/paperdoc/internal/doctree"
	"github.com/dgallion1/paperdoc/internal/parser"
)

// Converter turns an uploaded page into a document model and records how
// long each conversion took.
type Converter struct {
	opts  parser.Options
	stats *ConvertStats
}

func NewConverter(opts parser.Options, stats *ConvertStats) *Converter {
	if stats == nil {
		stats = NewConvertStats(0)
	}
	return &Converter{opts: opts, stats: stats}
}

// Convert parses data as the page named filename.
func (c *Converter) Convert(data []byte, filename string) (*doctree.Document, error) {
	p, err := parser.ForFile(filename, c.opts)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	doc, err := p.Parse(bytes.NewReader(data), filename)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}
	c.stats.Record(time.Since(start))
	return doc, nil
}

// Stats exposes the latency window.
func (c *Converter) Stats() *ConvertStats {
	return c.stats
}

// countSections counts every section in the tree, subsections included.
func countSections(sections []doctree.Section) int {
	n := len(sections)
	for i := range sections {
		n += countSections(sections[i].Subsections)
	}
	return n
}
