// Command paperjson converts a saved paper page into the JSON files the
// reader front end loads.
//
// Usage:
//
//	paperjson -in webpage_files/index.html -out static/
//	paperjson -in index.html -out static/ -ids random -overrides sections.yaml
//	paperjson -in index.html -out static/ -chunks   # also write chunks.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dgallion1/paperdoc/internal/chunker"
	"github.com/dgallion1/paperdoc/internal/config"
	"github.com/dgallion1/paperdoc/internal/doctree"
	"github.com/dgallion1/paperdoc/internal/parser"
)

type options struct {
	in, out   string
	ids       string
	overrides string
	chunks    bool
}

func main() {
	var opts options
	flag.StringVar(&opts.in, "in", "webpage_files/index.html", "paper page to convert")
	flag.StringVar(&opts.out, "out", "static", "output directory")
	flag.StringVar(&opts.ids, "ids", "hash", "synthesized id strategy: hash or random")
	flag.StringVar(&opts.overrides, "overrides", "", "YAML file with section number overrides")
	flag.BoolVar(&opts.chunks, "chunks", false, "also write search-index chunks")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(logger, opts); err != nil {
		logger.Error("paperjson: fatal", "error", err)
		os.Exit(1)
	}
}

// content is the body file layout: everything except front matter and references.
type content struct {
	Abstract doctree.TextBlock `json:"abstract"`
	Body     doctree.Body      `json:"body"`
}

func run(logger *slog.Logger, opts options) error {
	overrides, err := config.LoadSectionOverrides(opts.overrides)
	if err != nil {
		return err
	}
	popts := parser.Options{SectionNumbers: overrides, Logger: logger}
	switch opts.ids {
	case "hash":
	case "random":
		popts.IDGen = parser.RandomIDs()
	default:
		return fmt.Errorf("unknown id strategy %q", opts.ids)
	}

	p, err := parser.ForFile(opts.in, popts)
	if err != nil {
		return err
	}
	f, err := os.Open(opts.in)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	doc, err := p.Parse(f, filepath.Base(opts.in))
	if err != nil {
		return err
	}

	if err := os.MkdirAll(opts.out, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	files := []struct {
		name  string
		value any
	}{
		{"references.json", doc.References},
		{"title.json", doc.FrontMatter},
		{"content.json", content{Abstract: doc.Abstract, Body: doc.Body}},
	}
	if opts.chunks {
		files = append(files, struct {
			name  string
			value any
		}{"chunks.json", chunker.ChunkDocument(doc, chunker.DefaultConfig())})
	}
	for _, file := range files {
		path := filepath.Join(opts.out, file.name)
		if err := writeJSON(path, file.value); err != nil {
			return err
		}
		logger.Info("wrote", "path", path)
	}

	logger.Info("converted",
		"sections", len(doc.Body.Sections),
		"visuals", len(doc.Body.VisualElements),
		"references", len(doc.References),
	)
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
