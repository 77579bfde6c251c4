package governor

import (
	"runtime"
	"strings"

	"go.uber.org/zap"
)

// Pressure buckets the process's heap usage against the configured ceiling.
type Pressure int

const (
	PressureNormal Pressure = iota
	PressureElevated
	PressureCritical
)

func (p Pressure) String() string {
	switch p {
	case PressureElevated:
		return "elevated"
	case PressureCritical:
		return "critical"
	default:
		return "normal"
	}
}

type GovernorConfig struct {
	// LengthCeiling is the raw character count above which a document is
	// always batched.
	LengthCeiling int
	// ComplexityCeiling is the complexity score above which a document is
	// batched even when shorter than LengthCeiling.
	ComplexityCeiling float64
	// TargetBatchChars bounds the estimated per-batch footprint.
	TargetBatchChars int
	MinBatches       int
	MaxBatches       int
	// MemoryCeilingBytes is the heap size treated as full pressure.
	MemoryCeilingBytes uint64
}

// Governor decides whether a document must be split into sequential batches
// and how much stage concurrency the process can currently afford.
type Governor struct {
	config GovernorConfig
	logger *zap.Logger

	// readMemStats is swapped out by tests.
	readMemStats func(*runtime.MemStats)
}

type Option func(*Governor)

func WithLogger(l *zap.Logger) Option {
	return func(g *Governor) { g.logger = l }
}

func WithMemStatsFunc(fn func(*runtime.MemStats)) Option {
	return func(g *Governor) { g.readMemStats = fn }
}

func NewWithConfig(config GovernorConfig, opts ...Option) *Governor {
	if config.LengthCeiling == 0 {
		config.LengthCeiling = 50000
	}
	if config.ComplexityCeiling == 0 {
		config.ComplexityCeiling = 120000
	}
	if config.TargetBatchChars == 0 {
		config.TargetBatchChars = 25000
	}
	if config.MinBatches == 0 {
		config.MinBatches = 2
	}
	if config.MaxBatches == 0 {
		config.MaxBatches = 10
	}
	if config.MemoryCeilingBytes == 0 {
		config.MemoryCeilingBytes = 512 << 20
	}

	g := &Governor{
		config:       config,
		logger:       zap.NewNop(),
		readMemStats: runtime.ReadMemStats,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Complexity captures the document traits that drive batching: longer
// sentences and longer words both mean more model tokens per character.
type Complexity struct {
	Chars             int
	AvgSentenceLength float64
	AvgWordLength     float64
	Score             float64
}

func EstimateComplexity(text string) Complexity {
	c := Complexity{Chars: len(text)}

	words := strings.Fields(text)
	if len(words) > 0 {
		total := 0
		for _, w := range words {
			total += len(w)
		}
		c.AvgWordLength = float64(total) / float64(len(words))
	}

	sentences := 0
	for _, r := range text {
		if r == '.' || r == '!' || r == '?' {
			sentences++
		}
	}
	if sentences > 0 {
		c.AvgSentenceLength = float64(len(text)) / float64(sentences)
	} else {
		c.AvgSentenceLength = float64(len(text))
	}

	c.Score = float64(c.Chars) * (1 + c.AvgSentenceLength/200 + c.AvgWordLength/20)
	return c
}

// BatchCount returns 1 when the document can be processed whole, otherwise a
// batch count in [MinBatches, MaxBatches] keeping each batch's estimated
// footprint under TargetBatchChars.
func (g *Governor) BatchCount(text string) int {
	c := EstimateComplexity(text)

	if c.Chars <= g.config.LengthCeiling && c.Score <= g.config.ComplexityCeiling {
		return 1
	}

	batches := (c.Chars + g.config.TargetBatchChars - 1) / g.config.TargetBatchChars
	if batches < g.config.MinBatches {
		batches = g.config.MinBatches
	}
	if batches > g.config.MaxBatches {
		batches = g.config.MaxBatches
	}

	g.logger.Info("document will be batched",
		zap.Int("chars", c.Chars),
		zap.Float64("complexity", c.Score),
		zap.Int("batches", batches))

	return batches
}

// SplitBatches cuts the text into count pieces of roughly equal size,
// shifting each cut forward to the next whitespace so no batch starts or ends
// mid-word.
func (g *Governor) SplitBatches(text string, count int) []string {
	if count <= 1 {
		return []string{text}
	}

	size := len(text) / count
	var batches []string
	start := 0

	for i := 0; i < count-1; i++ {
		cut := start + size
		if cut >= len(text) {
			break
		}
		for cut < len(text) && text[cut] != ' ' && text[cut] != '\n' {
			cut++
		}
		if piece := strings.TrimSpace(text[start:cut]); piece != "" {
			batches = append(batches, piece)
		}
		start = cut
	}

	if piece := strings.TrimSpace(text[start:]); piece != "" {
		batches = append(batches, piece)
	}

	return batches
}

// MemoryPressure samples the heap against the configured ceiling.
func (g *Governor) MemoryPressure() Pressure {
	var stats runtime.MemStats
	g.readMemStats(&stats)

	used := float64(stats.HeapAlloc) / float64(g.config.MemoryCeilingBytes)
	switch {
	case used >= 0.9:
		return PressureCritical
	case used >= 0.7:
		return PressureElevated
	default:
		return PressureNormal
	}
}

// ConcurrencyFor tightens a stage's configured concurrency under memory
// pressure: halved when elevated, serialized when critical.
func (g *Governor) ConcurrencyFor(base int) int {
	switch g.MemoryPressure() {
	case PressureCritical:
		return 1
	case PressureElevated:
		if base/2 < 1 {
			return 1
		}
		return base / 2
	default:
		return base
	}
}

// Reclaim nudges the runtime to return memory between batches. Called at
// batch boundaries only, where the previous batch's buffers are dead.
func (g *Governor) Reclaim() {
	runtime.GC()
}
