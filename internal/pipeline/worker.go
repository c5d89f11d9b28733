package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/paperdoc/internal/chunker"
	"github.com/dgallion1/paperdoc/internal/doctree"
	"github.com/dgallion1/paperdoc/internal/store"
)

// DocumentMeta is the value stored under a document's meta key.
type DocumentMeta struct {
	DocID        string    `json:"doc_id"`
	Filename     string    `json:"filename"`
	Title        string    `json:"title"`
	ContentHash  string    `json:"content_hash"`
	Sections     int       `json:"sections"`
	Visuals      int       `json:"visuals"`
	References   int       `json:"references"`
	TotalChunks  int       `json:"total_chunks"`
	ChunksStored int       `json:"chunks_stored"`
	CreatedAt    time.Time `json:"created_at"`
}

// Worker processes a single document job.
type Worker struct {
	conv     *Converter
	store    store.Store
	log      *slog.Logger
	chunkCfg chunker.Config

	maxConcurrentStore int
	backoff            func(attempt int) time.Duration
}

func NewWorker(conv *Converter, st store.Store, log *slog.Logger, chunkCfg chunker.Config, maxStore int) *Worker {
	if maxStore < 1 {
		maxStore = 1
	}
	return &Worker{
		conv:               conv,
		store:              st,
		log:                log,
		chunkCfg:           chunkCfg,
		maxConcurrentStore: maxStore,
		backoff:            Backoff,
	}
}

// Process runs the full ingest pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "doc_id", job.DocID, "user_id", job.UserID)
	defer job.releaseFileData()

	// Phase 1: Parse
	job.SetStatus(StatusParsing, "parsing")
	doc, err := w.conv.Convert(job.FileData(), job.Filename)
	if err != nil {
		log.Error("parse failed", "error", err)
		job.AddError(fmt.Sprintf("parse: %s", err))
		job.SetStatus(StatusFailed, "parsing")
		return
	}
	job.SetDocumentCounts(countSections(doc.Body.Sections), len(doc.Body.VisualElements), len(doc.References))

	title := job.Title
	if title == "" {
		title = doc.FrontMatter.Title
	}

	// Hash the model, not the upload: markup-only changes dedup.
	content, err := json.Marshal(doc)
	if err != nil {
		log.Error("marshal failed", "error", err)
		job.AddError(fmt.Sprintf("marshal: %s", err))
		job.SetStatus(StatusFailed, "parsing")
		return
	}
	hash := ContentHashHex(content)
	job.SetContentHash(hash)

	// Phase 1.5: Dedup check
	if !job.Force {
		job.SetStatus(StatusDedup, "dedup")
		exists, existingDocID, err := w.checkDuplicate(ctx, job.UserID, hash)
		if err != nil {
			log.Warn("dedup check failed, proceeding", "error", err)
		} else if exists {
			log.Info("duplicate document, skipping", "existing_doc_id", existingDocID)
			job.SetStatus(StatusDupSkipped, "dedup")
			return
		}
	}

	// Phase 2: Chunk
	job.SetStatus(StatusChunking, "chunking")
	chunks := chunker.ChunkDocument(doc, w.chunkConfig(job))
	job.SetTotalChunks(len(chunks))
	log.Info("chunked document", "chunks", len(chunks))

	// Phase 3: Store parts and chunks with bounded concurrency.
	job.SetStatus(StatusStoring, "storing")
	parts := []struct {
		name  string
		value any
	}{
		{store.PartContent, doc},
		{store.PartFrontMatter, doc.FrontMatter},
		{store.PartReferences, doc.References},
	}
	for _, p := range parts {
		key := store.PartKey(job.UserID, job.DocID, p.name)
		if err := w.put(ctx, log, key, p.value); err != nil {
			log.Error("part write failed", "part", p.name, "error", err)
			job.AddError(fmt.Sprintf("store %s: %s", p.name, err))
			job.SetStatus(StatusFailed, "storing")
			return
		}
	}

	type storeResult struct {
		idx int
		err error
	}
	results := make(chan storeResult, len(chunks))
	sem := make(chan struct{}, w.maxConcurrentStore)
	for _, c := range chunks {
		sem <- struct{}{}
		go func(c doctree.Chunk) {
			defer func() { <-sem }()
			key := store.ChunkKey(job.UserID, job.DocID, c.Index)
			results <- storeResult{idx: c.Index, err: w.put(ctx, log, key, c)}
		}(c)
	}

	stored := 0
	hadErrors := false
	for range chunks {
		r := <-results
		if r.err != nil {
			log.Error("chunk write failed", "chunk", r.idx, "error", r.err)
			job.AddError(fmt.Sprintf("chunk %d: %s", r.idx, r.err))
			hadErrors = true
			continue
		}
		stored++
		job.IncrChunksStored()
	}
	log.Info("storage complete", "stored", stored, "total", len(chunks))

	// Write document metadata last so listings only show stored documents.
	meta := DocumentMeta{
		DocID:        job.DocID,
		Filename:     job.Filename,
		Title:        title,
		ContentHash:  hash,
		Sections:     countSections(doc.Body.Sections),
		Visuals:      len(doc.Body.VisualElements),
		References:   len(doc.References),
		TotalChunks:  len(chunks),
		ChunksStored: stored,
		CreatedAt:    job.CreatedAt,
	}
	if err := w.put(ctx, log, store.PartKey(job.UserID, job.DocID, store.PartMeta), meta); err != nil {
		log.Error("meta write failed", "error", err)
		job.AddError(fmt.Sprintf("meta: %s", err))
		job.SetStatus(StatusFailed, "storing")
		return
	}

	// Write hash index for dedup.
	hashKey := store.HashKey(job.UserID, hash, job.DocID)
	if err := w.put(ctx, log, hashKey, map[string]any{
		"filename":   job.Filename,
		"created_at": job.CreatedAt.Format(time.RFC3339),
	}); err != nil {
		log.Error("hash index write failed", "error", err)
	}

	if hadErrors {
		job.SetStatus(StatusPartial, "done")
	} else {
		job.SetStatus(StatusCompleted, "done")
	}
}

func (w *Worker) chunkConfig(job *Job) chunker.Config {
	cfg := w.chunkCfg
	if job.ChunkSize > 0 {
		cfg.ChunkSize = job.ChunkSize
	}
	if job.ChunkOverlap > 0 {
		cfg.ChunkOverlap = job.ChunkOverlap
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = cfg.ChunkSize / 4
	}
	return cfg
}

// put writes one node, retrying transient store failures.
func (w *Worker) put(ctx context.Context, log *slog.Logger, key string, value any) error {
	return withRetry(ctx, func(n int) time.Duration {
		d := w.backoff(n)
		log.Warn("retryable store error", "key", key, "attempt", n, "backoff", d)
		return d
	}, func() error {
		return w.store.PutNode(ctx, key, value)
	})
}

// checkDuplicate checks if this content hash already exists for the user.
func (w *Worker) checkDuplicate(ctx context.Context, userID, hash string) (bool, string, error) {
	children, err := w.store.ListChildren(ctx, store.HashPrefix(userID, hash), 1)
	if err != nil {
		return false, "", err
	}
	if len(children) > 0 {
		return true, store.LastSegment(children[0].Key), nil
	}
	return false, "", nil
}
