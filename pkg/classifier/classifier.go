package classifier

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

const systemPrompt = "You assess how important a clause is. " +
	"Reply with exactly one label, Critical, Important, or Standard, followed by a one-sentence justification."

type ClassifierConfig struct {
	Concurrency int
	GroupDelay  time.Duration
}

// Classifier labels each clause Critical, Important, or Standard. Every input
// clause produces exactly one output: parse and request failures both fall
// back to Standard rather than dropping the clause.
type Classifier struct {
	config ClassifierConfig
	client types.ModelClient
	runner *pool.Runner
	logger *zap.Logger
}

type Option func(*Classifier)

func WithLogger(l *zap.Logger) Option {
	return func(c *Classifier) { c.logger = l }
}

func NewWithConfig(client types.ModelClient, config ClassifierConfig, opts ...Option) *Classifier {
	if config.Concurrency == 0 {
		config.Concurrency = 4
	}
	if config.GroupDelay == 0 {
		config.GroupDelay = 200 * time.Millisecond
	}

	c := &Classifier{
		config: config,
		client: client,
		runner: pool.NewRunner(config.Concurrency, config.GroupDelay),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify returns one ClassifiedClause per input clause, order preserved.
func (c *Classifier) Classify(ctx context.Context, clauses []string) ([]models.ClassifiedClause, error) {
	results, errs := pool.Map(ctx, c.runner, clauses, func(ctx context.Context, _ int, clause string) (models.Classification, error) {
		completion, err := c.client.Complete(ctx, []types.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf("Clause: %s", clause)},
		})
		if err != nil {
			return models.Standard, err
		}
		return ParseClassification(completion.Content), nil
	})

	classified := make([]models.ClassifiedClause, len(clauses))
	for i, clause := range clauses {
		classification := results[i]
		if errs[i] != nil {
			c.logger.Warn("clause classification failed, defaulting to Standard",
				zap.Error(errs[i]))
			classification = models.Standard
		}
		classified[i] = models.ClassifiedClause{
			Text:           clause,
			Classification: classification,
		}
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	return classified, nil
}

// ParseClassification reads a label out of free-form model text by substring
// search. The model answers in natural language, so this deliberately favors
// the Standard default over brittle structured parsing. Kept as the single
// place the heuristic lives so it can be swapped for structured output.
func ParseClassification(response string) models.Classification {
	switch {
	case strings.Contains(response, string(models.Critical)):
		return models.Critical
	case strings.Contains(response, string(models.Important)):
		return models.Important
	default:
		return models.Standard
	}
}
