package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xhad/distill/internal/models"
	"github.com/xhad/distill/internal/types"
	"github.com/xhad/distill/pkg/chunker"
	"github.com/xhad/distill/pkg/classifier"
	"github.com/xhad/distill/pkg/extractor"
	"github.com/xhad/distill/pkg/filter"
	"github.com/xhad/distill/pkg/formatter"
	"github.com/xhad/distill/pkg/generator"
	"github.com/xhad/distill/pkg/governor"
	"github.com/xhad/distill/pkg/modelclient"
	"github.com/xhad/distill/pkg/source"
	"go.uber.org/zap"
)

// Stage names reported to the status store and progress sink.
const (
	StageChunking       = "chunking"
	StageExtraction     = "extraction"
	StageClassification = "classification"
	StageFiltering      = "filtering"
	StageGeneration     = "generation"
	StageComplete       = "complete"
	StageFailed         = "failed"
)

const interBatchPause = 250 * time.Millisecond

type PipelineConfig struct {
	JobID               string
	ClassFilter         string
	OutputFormat        string
	PrioritizeImportant bool
	MaxClauses          int
	MaxVariants         int
	StageTimeout        time.Duration
	DocumentTimeout     time.Duration
	StageConcurrency    int
}

// Pipeline wires chunking, extraction, classification, filtering, and variant
// generation into one staged run over a document, reporting progress along
// the way and batching oversized documents through the governor.
type Pipeline struct {
	config   PipelineConfig
	client   types.ModelClient
	chunker  types.Chunker
	filter   filter.Filter
	governor *governor.Governor
	status   types.StatusStore
	progress types.ProgressFunc
	logger   *zap.Logger
}

type Option func(*Pipeline)

func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithStatusStore attaches a job-status store. Writes are best-effort.
func WithStatusStore(s types.StatusStore) Option {
	return func(p *Pipeline) { p.status = s }
}

// WithProgress attaches a progress sink invoked at stage transitions.
func WithProgress(fn types.ProgressFunc) Option {
	return func(p *Pipeline) { p.progress = fn }
}

func WithGovernor(g *governor.Governor) Option {
	return func(p *Pipeline) { p.governor = g }
}

func NewWithConfig(client types.ModelClient, chunkerConfig chunker.ChunkerConfig, config PipelineConfig, opts ...Option) *Pipeline {
	if config.JobID == "" {
		config.JobID = uuid.NewString()
	}
	if config.ClassFilter == "" {
		config.ClassFilter = "all"
	}
	if config.OutputFormat == "" {
		config.OutputFormat = "jsonl"
	}
	if config.MaxClauses == 0 {
		config.MaxClauses = 100
	}
	if config.MaxVariants == 0 {
		config.MaxVariants = 3
	}
	if config.StageTimeout == 0 {
		config.StageTimeout = 5 * time.Minute
	}
	if config.DocumentTimeout == 0 {
		config.DocumentTimeout = 30 * time.Minute
	}
	if config.StageConcurrency == 0 {
		config.StageConcurrency = 4
	}

	p := &Pipeline{
		config:  config,
		client:  client,
		chunker: chunker.NewWithConfig(chunkerConfig),
		filter: filter.NewWithConfig(filter.FilterConfig{
			ClassFilter:         config.ClassFilter,
			PrioritizeImportant: config.PrioritizeImportant,
			MaxClauses:          config.MaxClauses,
		}),
		governor: governor.NewWithConfig(governor.GovernorConfig{}),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Result carries the final records, the serialized output, and the run's
// stats. Stats are populated even when the run partially failed, so callers
// can tell degraded coverage from outright failure.
type Result struct {
	JobID   string
	Records []models.VariantRecord
	Output  string
	Stats   models.ProcessingStats
}

// Run processes one document's text end to end. Documents too large to
// process whole are split into sequential batches whose partial results are
// merged; a failed batch is logged and skipped rather than aborting the run.
func (p *Pipeline) Run(ctx context.Context, text string) (*Result, error) {
	start := time.Now()
	result := &Result{JobID: p.config.JobID}

	if len(strings.TrimSpace(text)) < source.MinDocumentLength {
		p.report(ctx, StageComplete, 100, "document has no usable text, skipped", &result.Stats)
		return result, modelclient.ErrEmptyInput
	}

	ctx, cancel := context.WithTimeout(ctx, p.config.DocumentTimeout)
	defer cancel()

	batches := p.governor.BatchCount(text)

	var err error
	if batches == 1 {
		result.Records, result.Stats, err = p.runBatch(ctx, text, 0, 1)
		if err != nil {
			p.report(ctx, StageFailed, 0, err.Error(), &result.Stats)
			result.Stats.ProcessingTimeMs = time.Since(start).Milliseconds()
			return result, err
		}
	} else {
		result.Records = p.runBatched(ctx, text, batches, &result.Stats)
		if ctx.Err() != nil {
			err = fmt.Errorf("document processing timed out: %w", ctx.Err())
			p.report(ctx, StageFailed, 0, err.Error(), &result.Stats)
			result.Stats.ProcessingTimeMs = time.Since(start).Milliseconds()
			return result, err
		}
		if len(result.Records) == 0 && result.Stats.FailedBatches > 0 {
			err = fmt.Errorf("all %d batches failed", result.Stats.FailedBatches)
			p.report(ctx, StageFailed, 0, err.Error(), &result.Stats)
			result.Stats.ProcessingTimeMs = time.Since(start).Milliseconds()
			return result, err
		}
	}

	result.Output = formatter.Format(result.Records, p.config.OutputFormat)
	result.Stats.ProcessingTimeMs = time.Since(start).Milliseconds()
	p.report(ctx, StageComplete, 100, fmt.Sprintf("generated %d records", len(result.Records)), &result.Stats)

	return result, nil
}

// runBatched runs each batch independently and merges partial results,
// deduplicating records by their original clause. A short pause and a memory
// reclaim separate batches.
func (p *Pipeline) runBatched(ctx context.Context, text string, batches int, stats *models.ProcessingStats) []models.VariantRecord {
	pieces := p.governor.SplitBatches(text, batches)

	var merged []models.VariantRecord
	seen := make(map[string]bool)

	for i, piece := range pieces {
		if ctx.Err() != nil {
			stats.FailedBatches += len(pieces) - i
			return merged
		}

		records, batchStats, err := p.runBatch(ctx, piece, i, len(pieces))
		stats.Merge(batchStats)
		if err != nil {
			stats.FailedBatches++
			p.logger.Warn("batch failed, continuing with remaining batches",
				zap.Int("batch", i),
				zap.Error(err))
			continue
		}

		for _, record := range records {
			if seen[record.Original] {
				continue
			}
			seen[record.Original] = true
			merged = append(merged, record)
		}

		if i < len(pieces)-1 {
			p.governor.Reclaim()
			select {
			case <-ctx.Done():
			case <-time.After(interBatchPause):
			}
		}
	}

	return merged
}

// runBatch runs the staged flow over one piece of text.
func (p *Pipeline) runBatch(ctx context.Context, text string, batch, totalBatches int) ([]models.VariantRecord, models.ProcessingStats, error) {
	var stats models.ProcessingStats
	span := func(stage int) int {
		// Map a stage index to overall progress, scaled to this batch's
		// share of the document.
		base := batch * 100 / totalBatches
		return base + stage*20/totalBatches
	}

	concurrency := p.governor.ConcurrencyFor(p.config.StageConcurrency)

	p.report(ctx, StageChunking, span(0), "splitting document into chunks", nil)
	chunks := p.chunkText(text)
	stats.TotalChunks = len(chunks)
	if len(chunks) == 0 {
		return nil, stats, fmt.Errorf("chunking produced no usable chunks")
	}

	p.report(ctx, StageExtraction, span(1), fmt.Sprintf("extracting clauses from %d chunks", len(chunks)), &stats)
	ext := extractor.NewWithConfig(p.client, extractor.ExtractorConfig{Concurrency: concurrency}, extractor.WithLogger(p.logger))
	clauses, err := withStageTimeout(ctx, p.config.StageTimeout, func(ctx context.Context) ([]string, error) {
		return ext.Extract(ctx, toChunks(chunks))
	})
	if err != nil {
		return nil, stats, fmt.Errorf("extraction: %w", err)
	}
	clauses = p.filter.Validate(clauses)
	stats.ExtractedClauses = len(clauses)
	if len(clauses) == 0 {
		return nil, stats, nil
	}

	p.report(ctx, StageClassification, span(2), fmt.Sprintf("classifying %d clauses", len(clauses)), &stats)
	cls := classifier.NewWithConfig(p.client, classifier.ClassifierConfig{Concurrency: concurrency}, classifier.WithLogger(p.logger))
	classified, err := withStageTimeout(ctx, p.config.StageTimeout, func(ctx context.Context) ([]models.ClassifiedClause, error) {
		return cls.Classify(ctx, clauses)
	})
	if err != nil {
		return nil, stats, fmt.Errorf("classification: %w", err)
	}
	stats.ClassifiedClauses = len(classified)

	p.report(ctx, StageFiltering, span(3), "selecting and prioritizing clauses", &stats)
	selected := p.filter.Cap(p.filter.Select(classified))
	if len(selected) == 0 {
		return nil, stats, nil
	}

	p.report(ctx, StageGeneration, span(4), fmt.Sprintf("generating variants for %d clauses", len(selected)), &stats)
	gen := generator.NewWithConfig(p.client, generator.GeneratorConfig{
		MaxVariants: p.config.MaxVariants,
		Concurrency: variantConcurrency(concurrency),
	}, generator.WithLogger(p.logger))
	records, err := withStageTimeout(ctx, p.config.StageTimeout, func(ctx context.Context) ([]models.VariantRecord, error) {
		return gen.Generate(ctx, selected)
	})
	if err != nil {
		return nil, stats, fmt.Errorf("generation: %w", err)
	}

	for _, record := range records {
		stats.GeneratedVariants += len(record.Variants)
	}

	return records, stats, nil
}

// chunkText falls back to a single whole-text chunk when the boundary-seeking
// chunker yields nothing for a short but usable document.
func (p *Pipeline) chunkText(text string) []string {
	chunks := p.chunker.Chunk(text)
	if len(chunks) == 0 {
		if trimmed := strings.TrimSpace(text); trimmed != "" {
			return []string{trimmed}
		}
	}
	return chunks
}

func toChunks(texts []string) []models.Chunk {
	chunks := make([]models.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = models.Chunk{Text: text, Index: i}
	}
	return chunks
}

// withStageTimeout bounds one stage. On expiry the stage's in-flight work is
// abandoned and the error surfaces as a stage failure.
func withStageTimeout[R any](ctx context.Context, timeout time.Duration, fn func(context.Context) (R, error)) (R, error) {
	stageCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	out, err := fn(stageCtx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		err = fmt.Errorf("stage timed out after %s: %w", timeout, err)
	}
	return out, err
}

// report pushes a status update and fires the progress callback. Both are
// best-effort: a failing store or sink never aborts processing.
func (p *Pipeline) report(ctx context.Context, stage string, progress int, message string, stats *models.ProcessingStats) {
	if progress > 100 {
		progress = 100
	}

	if p.status != nil {
		err := p.status.UpdateStatus(ctx, models.JobUpdate{
			JobID:    p.config.JobID,
			Stage:    stage,
			Progress: progress,
			Message:  message,
			Stats:    stats,
		})
		if err != nil {
			p.logger.Warn("status update failed", zap.String("stage", stage), zap.Error(err))
		}
	}

	if p.progress != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					p.logger.Warn("progress sink panicked", zap.Any("panic", r))
				}
			}()
			p.progress(stage, progress, message)
		}()
	}
}

func variantConcurrency(base int) int {
	if base/2 < 1 {
		return 1
	}
	return base / 2
}
