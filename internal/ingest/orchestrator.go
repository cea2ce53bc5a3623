// Package ingest sequences the write path: raw source files are normalized
// into document drafts, their descriptive text is embedded in batches, and
// the resulting documents are inserted into the configured store.
//
// Per-record and per-batch failures are local: they are counted and
// collected, and the run proceeds. A run always completes with a Report;
// only startup configuration problems abort ingestion.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pitwall/pitwall/internal/document"
	"github.com/pitwall/pitwall/internal/embedding"
	"github.com/pitwall/pitwall/internal/record"
	"github.com/pitwall/pitwall/internal/store"
)

// BatchEmbedder is the slice of the embedding client the orchestrator needs.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string, batchSize int) ([]embedding.BatchItem, []embedding.BatchError)
}

// Inserter is the slice of the document store the orchestrator needs.
type Inserter interface {
	Insert(ctx context.Context, docs []document.Document) (store.InsertResult, error)
}

// Options tune one ingestion run. All fields are pass-through configuration.
type Options struct {
	// MaxRecordsPerSource caps how many records of each source are taken.
	// Zero means no cap.
	MaxRecordsPerSource int

	// MinPriority skips sources whose priority is below it.
	MinPriority int

	// BatchSize is the embedding and insert batch size. Zero uses the
	// embedding default.
	BatchSize int

	// InterBatchDelay pauses between insert batches into the store.
	InterBatchDelay time.Duration

	// ValidateOnly normalizes and validates without calling the embedding
	// service or the store.
	ValidateOnly bool
}

// FailureStage names the pipeline stage a record or batch failed in.
type FailureStage string

const (
	StageValidation FailureStage = "validation"
	StageEmbedding  FailureStage = "embedding"
	StageInsert     FailureStage = "insert"
)

// RunError records one local failure within a run.
type RunError struct {
	Source  string
	Stage   FailureStage
	Index   int
	Message string
}

// Report is the outcome of one ingestion run.
type Report struct {
	Attempted        int
	Succeeded        int
	ValidationFailed int
	EmbeddingFailed  int
	InsertFailed     int
	Errors           []RunError
	Duration         time.Duration
}

// Orchestrator runs the ingestion pipeline.
type Orchestrator struct {
	normalizer *record.Normalizer
	embedder   BatchEmbedder
	store      Inserter
	dims       int
	logger     *slog.Logger
}

// New creates an Orchestrator. dims is the vector dimension used for the
// validate-only path, where no embedding exists to measure.
func New(normalizer *record.Normalizer, embedder BatchEmbedder, st Inserter, dims int, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		normalizer: normalizer,
		embedder:   embedder,
		store:      st,
		dims:       dims,
		logger:     logger,
	}
}

// Run ingests all sources and returns the aggregated report. It never
// aborts on per-record or per-batch failures; the error return is reserved
// for unreadable source files.
func (o *Orchestrator) Run(ctx context.Context, sources []Source, opts Options) (Report, error) {
	started := time.Now()
	var report Report

	for _, src := range sources {
		if src.Priority < opts.MinPriority {
			o.logger.Debug("skipping low-priority source",
				"source", src.Name, "priority", src.Priority, "min", opts.MinPriority)
			continue
		}
		if err := o.runSource(ctx, src, opts, &report); err != nil {
			return report, fmt.Errorf("source %s: %w", src.Name, err)
		}
	}

	report.Duration = time.Since(started)
	o.logger.Info("ingestion run complete",
		"attempted", report.Attempted,
		"succeeded", report.Succeeded,
		"validation_failed", report.ValidationFailed,
		"embedding_failed", report.EmbeddingFailed,
		"insert_failed", report.InsertFailed,
		"duration", report.Duration)
	return report, nil
}

func (o *Orchestrator) runSource(ctx context.Context, src Source, opts Options, report *Report) error {
	raws, err := readRecords(src)
	if err != nil {
		return err
	}
	if opts.MaxRecordsPerSource > 0 && len(raws) > opts.MaxRecordsPerSource {
		raws = raws[:opts.MaxRecordsPerSource]
	}
	report.Attempted += len(raws)

	// Normalize everything first; drafts that fail document validation are
	// excluded before any network call.
	drafts := make([]document.Document, 0, len(raws))
	for i, raw := range raws {
		season := src.Season
		if s := record.Field(raw, "season", ""); s != "" {
			season = s
		}
		draft := o.normalizer.Normalize(raw, src.Category, season, src.Name)

		if err := o.validateDraft(draft); err != nil {
			report.ValidationFailed++
			report.Errors = append(report.Errors, RunError{
				Source: src.Name, Stage: StageValidation, Index: i, Message: err.Error(),
			})
			continue
		}
		drafts = append(drafts, draft)
	}

	if opts.ValidateOnly {
		report.Succeeded += len(drafts)
		o.logger.Info("validate-only source complete",
			"source", src.Name, "valid", len(drafts), "invalid", report.ValidationFailed)
		return nil
	}

	// Embed the descriptive text of every surviving draft. Individual
	// failures drop only their record.
	texts := make([]string, len(drafts))
	for i, draft := range drafts {
		texts[i] = draft.Text
	}
	items, batchErrs := o.embedder.EmbedBatch(ctx, texts, opts.BatchSize)
	for _, be := range batchErrs {
		report.EmbeddingFailed++
		report.Errors = append(report.Errors, RunError{
			Source: src.Name, Stage: StageEmbedding, Index: be.Index, Message: be.Message,
		})
	}

	docs := make([]document.Document, 0, len(items))
	for _, item := range items {
		draft := drafts[item.Index]
		draft.Embedding = item.Vector
		draft.CreatedAt = time.Now().UTC()
		docs = append(docs, draft)
	}

	o.insertBatches(ctx, src, docs, opts, report)
	return nil
}

// insertBatches sends documents to the store in sequential batches with an
// inter-batch delay. A failed batch is recorded and the run moves on to the
// next batch.
func (o *Orchestrator) insertBatches(ctx context.Context, src Source, docs []document.Document, opts Options, report *Report) {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = embedding.DefaultBatchSize
	}

	for start := 0; start < len(docs); start += batchSize {
		end := min(start+batchSize, len(docs))
		batch := docs[start:end]

		if start > 0 && opts.InterBatchDelay > 0 {
			select {
			case <-time.After(opts.InterBatchDelay):
			case <-ctx.Done():
			}
		}

		result, err := o.store.Insert(ctx, batch)
		if err != nil {
			report.InsertFailed += len(batch)
			report.Errors = append(report.Errors, RunError{
				Source: src.Name, Stage: StageInsert, Index: start, Message: err.Error(),
			})
			o.logger.Warn("insert batch failed, continuing",
				"source", src.Name, "offset", start, "error", err)
			continue
		}

		report.Succeeded += len(result.Stored)
		for _, rej := range result.Rejected {
			report.ValidationFailed++
			report.Errors = append(report.Errors, RunError{
				Source: src.Name, Stage: StageValidation, Index: start + rej.Index, Message: rej.Reason,
			})
		}
	}
}

// validateDraft applies the document invariants that hold before an
// embedding exists: text length, category, season, position and points.
func (o *Orchestrator) validateDraft(draft document.Document) error {
	probe := draft
	probe.Embedding = make([]float32, o.dims)
	return probe.Validate(o.dims)
}
