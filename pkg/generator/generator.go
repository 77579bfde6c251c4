package generator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xhad/distill/internal/models"
	"github.com/xhad/distill/internal/pool"
	"github.com/xhad/distill/internal/types"
	"go.uber.org/zap"
)

const maxVariantLength = 500

type GeneratorConfig struct {
	MaxVariants int
	Concurrency int
	GroupDelay  time.Duration
}

// Generator asks the model for alternative phrasings of each classified
// clause. Variant prompts and responses are larger than the other stages', so
// the default concurrency is tighter.
type Generator struct {
	config GeneratorConfig
	client types.ModelClient
	runner *pool.Runner
	logger *zap.Logger
}

type Option func(*Generator)

func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

func NewWithConfig(client types.ModelClient, config GeneratorConfig, opts ...Option) *Generator {
	if config.MaxVariants == 0 {
		config.MaxVariants = 3
	}
	if config.Concurrency == 0 {
		config.Concurrency = 2
	}
	if config.GroupDelay == 0 {
		config.GroupDelay = 300 * time.Millisecond
	}

	g := &Generator{
		config: config,
		client: client,
		runner: pool.NewRunner(config.Concurrency, config.GroupDelay),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns one VariantRecord per classified clause, order preserved.
// A clause whose generation fails keeps its record with zero variants so
// downstream formatting and stats still see it.
func (g *Generator) Generate(ctx context.Context, classified []models.ClassifiedClause) ([]models.VariantRecord, error) {
	prompt := fmt.Sprintf("Rewrite the clause below in up to %d alternative phrasings that preserve its exact meaning. "+
		"Return one phrasing per line and nothing else.", g.config.MaxVariants)

	results, errs := pool.Map(ctx, g.runner, classified, func(ctx context.Context, _ int, clause models.ClassifiedClause) ([]string, error) {
		completion, err := g.client.Complete(ctx, []types.Message{
			{Role: "system", Content: prompt},
			{Role: "user", Content: clause.Text},
		})
		if err != nil {
			return nil, err
		}
		return g.parseVariants(completion.Content), nil
	})

	records := make([]models.VariantRecord, len(classified))
	for i, clause := range classified {
		variants := results[i]
		if errs[i] != nil {
			g.logger.Warn("variant generation failed, keeping clause with no variants",
				zap.Error(errs[i]))
			variants = nil
		}
		records[i] = models.VariantRecord{
			Original:       clause.Text,
			Classification: clause.Classification,
			Variants:       variants,
		}
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	return records, nil
}

// parseVariants splits the response into lines, drops empty or degenerate
// ones, and clamps the result to MaxVariants.
func (g *Generator) parseVariants(content string) []string {
	var variants []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || len(line) > maxVariantLength {
			continue
		}
		variants = append(variants, line)
		if len(variants) == g.config.MaxVariants {
			break
		}
	}
	return variants
}
