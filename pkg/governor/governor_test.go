package governor_test

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/distill/pkg/governor"
)

func TestEstimateComplexity(t *testing.T) {
	c := governor.EstimateComplexity("Short words here. More short words now.")
	assert.Equal(t, 39, c.Chars)
	assert.Greater(t, c.AvgWordLength, 3.0)
	assert.Less(t, c.AvgSentenceLength, 25.0)
	assert.Greater(t, c.Score, 0.0)

	// No sentence enders: the whole text counts as one sentence.
	flat := governor.EstimateComplexity("no enders at all in this text")
	assert.Equal(t, float64(29), flat.AvgSentenceLength)
}

func TestGovernor_BatchCount(t *testing.T) {
	g := governor.NewWithConfig(governor.GovernorConfig{
		LengthCeiling:    50000,
		TargetBatchChars: 25000,
	})

	small := strings.Repeat("A short sentence. ", 100)
	assert.Equal(t, 1, g.BatchCount(small), "small documents are processed whole")

	big := strings.Repeat("A sentence that pads the document out. ", 2000) // ~78k chars
	count := g.BatchCount(big)
	assert.GreaterOrEqual(t, count, 2)
	assert.LessOrEqual(t, count, 10)

	huge := strings.Repeat("A sentence that pads the document out. ", 20000) // ~780k chars
	assert.Equal(t, 10, g.BatchCount(huge), "batch count is capped")
}

func TestGovernor_SplitBatches(t *testing.T) {
	g := governor.NewWithConfig(governor.GovernorConfig{})

	text := strings.TrimSpace(strings.Repeat("alpha beta gamma delta. ", 50))
	batches := g.SplitBatches(text, 4)

	require.Len(t, batches, 4)
	for _, batch := range batches {
		// No batch starts or ends mid-word.
		assert.NotEmpty(t, batch)
		assert.Equal(t, batch, strings.TrimSpace(batch))
		first := strings.SplitN(batch, " ", 2)[0]
		assert.Contains(t, []string{"alpha", "beta", "gamma", "delta."}, first)
	}

	// All input words survive the split.
	assert.Equal(t, len(strings.Fields(text)), len(strings.Fields(strings.Join(batches, " "))))
}

func TestGovernor_SplitBatchesSingle(t *testing.T) {
	g := governor.NewWithConfig(governor.GovernorConfig{})
	batches := g.SplitBatches("whole document", 1)
	assert.Equal(t, []string{"whole document"}, batches)
}

func TestGovernor_ConcurrencyUnderPressure(t *testing.T) {
	tests := []struct {
		name      string
		heapAlloc uint64
		base      int
		want      int
	}{
		{"normal pressure keeps base", 100 << 20, 4, 4},
		{"elevated pressure halves", 400 << 20, 4, 2},
		{"critical pressure serializes", 500 << 20, 4, 1},
		{"never below one", 400 << 20, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := governor.NewWithConfig(governor.GovernorConfig{
				MemoryCeilingBytes: 512 << 20,
			}, governor.WithMemStatsFunc(func(stats *runtime.MemStats) {
				stats.HeapAlloc = tt.heapAlloc
			}))

			assert.Equal(t, tt.want, g.ConcurrencyFor(tt.base))
		})
	}
}
