package extractor_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/distill/internal/models"
	"github.com/xhad/distill/internal/types"
	"github.com/xhad/distill/pkg/extractor"
)

type mockClient struct {
	respond func(messages []types.Message) (*types.Completion, error)
}

func (m *mockClient) Complete(_ context.Context, messages []types.Message) (*types.Completion, error) {
	return m.respond(messages)
}

func TestExtractor_DedupesFirstSeenOrder(t *testing.T) {
	client := &mockClient{respond: func(messages []types.Message) (*types.Completion, error) {
		switch messages[1].Content {
		case "chunk one":
			return &types.Completion{Content: "alpha clause\nbeta clause\n\nalpha clause"}, nil
		case "chunk two":
			return &types.Completion{Content: "beta clause\ngamma clause"}, nil
		}
		return &types.Completion{Content: ""}, nil
	}}

	e := extractor.NewWithConfig(client, extractor.ExtractorConfig{Concurrency: 1, GroupDelay: 1})
	clauses, err := e.Extract(context.Background(), []models.Chunk{
		{Text: "chunk one", Index: 0},
		{Text: "chunk two", Index: 1},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"alpha clause", "beta clause", "gamma clause"}, clauses)
}

func TestExtractor_FailedChunkYieldsNothing(t *testing.T) {
	client := &mockClient{respond: func(messages []types.Message) (*types.Completion, error) {
		if messages[1].Content == "bad chunk" {
			return nil, errors.New("service unavailable")
		}
		return &types.Completion{Content: "surviving clause"}, nil
	}}

	e := extractor.NewWithConfig(client, extractor.ExtractorConfig{Concurrency: 1, GroupDelay: 1})
	clauses, err := e.Extract(context.Background(), []models.Chunk{
		{Text: "bad chunk", Index: 0},
		{Text: "good chunk", Index: 1},
	})

	require.NoError(t, err, "a failed chunk must not abort the batch")
	assert.Equal(t, []string{"surviving clause"}, clauses)
}

func TestExtractor_RejectsDegenerateLines(t *testing.T) {
	long := strings.Repeat("x", 600)
	client := &mockClient{respond: func(_ []types.Message) (*types.Completion, error) {
		return &types.Completion{Content: "  good clause  \n" + long + "\n\n   \nanother clause"}, nil
	}}

	e := extractor.NewWithConfig(client, extractor.ExtractorConfig{Concurrency: 1, GroupDelay: 1})
	clauses, err := e.Extract(context.Background(), []models.Chunk{{Text: "chunk", Index: 0}})

	require.NoError(t, err)
	assert.Equal(t, []string{"good clause", "another clause"}, clauses)
}
