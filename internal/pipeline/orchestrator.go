package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/paperdoc/internal/chunker"
	"github.com/dgallion1/paperdoc/internal/config"
	"github.com/dgallion1/paperdoc/internal/store"
)

// Orchestrator manages the paper ingestion pipeline.
type Orchestrator struct {
	jobs     *JobStore
	queue    chan *Job
	conv     *Converter
	store    store.Store
	log      *slog.Logger
	cfg      config.Config
	chunkCfg chunker.Config

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates the pipeline; call Start to run workers.
func NewOrchestrator(cfg config.Config, conv *Converter, st store.Store, log *slog.Logger) *Orchestrator {
	chunkCfg := chunker.DefaultConfig()
	if cfg.DefaultChunkSize > 0 {
		chunkCfg.ChunkSize = cfg.DefaultChunkSize
	}
	if cfg.DefaultChunkOverlap > 0 {
		chunkCfg.ChunkOverlap = cfg.DefaultChunkOverlap
	}
	return &Orchestrator{
		jobs:     NewJobStore(cfg.JobTTL),
		queue:    make(chan *Job, cfg.MaxQueueSize),
		conv:     conv,
		store:    st,
		log:      log,
		cfg:      cfg,
		chunkCfg: chunkCfg,
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range o.cfg.WorkerCount {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := NewWorker(o.conv, o.store, o.log, o.chunkCfg, o.cfg.MaxConcurrentStore)
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					w.Process(workerCtx, job)
				}
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop gracefully shuts down the pipeline.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.wg.Wait()
}

// Submit queues a new job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		job.releaseFileData()
		return fmt.Errorf("job queue is full (%d)", o.cfg.MaxQueueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// Store returns the backing store for direct use by API handlers.
func (o *Orchestrator) Store() store.Store {
	return o.store
}

// Converter returns the converter shared by the workers.
func (o *Orchestrator) Converter() *Converter {
	return o.conv
}
