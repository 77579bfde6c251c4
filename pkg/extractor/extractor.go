package extractor

import (
	"context"
	"strings"
	"time"

	"github.com/xhad/distill/internal/models"
	"github.com/xhad/distill/internal/pool"
	"github.com/xhad/distill/internal/types"
	"go.uber.org/zap"
)

const systemPrompt = "You extract self-contained clauses from the provided text. " +
	"Return each clause exactly as it appears in the text, one per line. " +
	"Do not rewrite, summarize, or number them. Return nothing else."

// Lines longer than this are degenerate model output, not clauses.
const maxClauseLength = 500

type ExtractorConfig struct {
	Concurrency int
	GroupDelay  time.Duration
}

// Extractor asks the model for verbatim clauses, one chunk per request.
type Extractor struct {
	config ExtractorConfig
	client types.ModelClient
	runner *pool.Runner
	logger *zap.Logger
}

type Option func(*Extractor)

func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

func NewWithConfig(client types.ModelClient, config ExtractorConfig, opts ...Option) *Extractor {
	if config.Concurrency == 0 {
		config.Concurrency = 4
	}
	if config.GroupDelay == 0 {
		config.GroupDelay = 200 * time.Millisecond
	}

	e := &Extractor{
		config: config,
		client: client,
		runner: pool.NewRunner(config.Concurrency, config.GroupDelay),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract processes chunks in bounded concurrent groups and returns the
// deduplicated clauses in first-seen order. A failed chunk contributes zero
// clauses; it never aborts the batch.
func (e *Extractor) Extract(ctx context.Context, chunks []models.Chunk) ([]string, error) {
	results, errs := pool.Map(ctx, e.runner, chunks, func(ctx context.Context, _ int, chunk models.Chunk) ([]string, error) {
		completion, err := e.client.Complete(ctx, []types.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: chunk.Text},
		})
		if err != nil {
			return nil, err
		}
		return parseClauseLines(completion.Content), nil
	})

	for i, err := range errs {
		if err != nil {
			e.logger.Warn("chunk extraction failed",
				zap.Int("chunk", chunks[i].Index),
				zap.Error(err))
		}
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	return dedupe(results), nil
}

// parseClauseLines splits a model response into clauses, dropping empty and
// implausibly long lines.
func parseClauseLines(content string) []string {
	var clauses []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || len(line) > maxClauseLength {
			continue
		}
		clauses = append(clauses, line)
	}
	return clauses
}

// dedupe flattens per-chunk results into one list with each distinct clause
// appearing once, preserving first-seen order.
func dedupe(results [][]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, clauses := range results {
		for _, clause := range clauses {
			if seen[clause] {
				continue
			}
			seen[clause] = true
			out = append(out, clause)
		}
	}
	return out
}
