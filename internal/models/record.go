package models

// Classification labels a clause by how much it matters for training data.
type Classification string

const (
	Critical  Classification = "Critical"
	Important Classification = "Important"
	Standard  Classification = "Standard"
)

// Rank orders classifications for prioritization: higher means more important.
func (c Classification) Rank() int {
	switch c {
	case Critical:
		return 2
	case Important:
		return 1
	default:
		return 0
	}
}

type Chunk struct {
	Text  string
	Index int
}

type ClassifiedClause struct {
	Text           string
	Classification Classification
}

type VariantRecord struct {
	Original       string         `json:"original"`
	Classification Classification `json:"classification"`
	Variants       []string       `json:"variants"`
}

type ProcessingStats struct {
	TotalChunks       int   `json:"total_chunks"`
	ExtractedClauses  int   `json:"extracted_clauses"`
	ClassifiedClauses int   `json:"classified_clauses"`
	GeneratedVariants int   `json:"generated_variants"`
	FailedBatches     int   `json:"failed_batches"`
	ProcessingTimeMs  int64 `json:"processing_time_ms"`
}

// Merge folds the counters of another run segment into this one.
func (s *ProcessingStats) Merge(other ProcessingStats) {
	s.TotalChunks += other.TotalChunks
	s.ExtractedClauses += other.ExtractedClauses
	s.ClassifiedClauses += other.ClassifiedClauses
	s.GeneratedVariants += other.GeneratedVariants
	s.FailedBatches += other.FailedBatches
	s.ProcessingTimeMs += other.ProcessingTimeMs
}

type JobUpdate struct {
	JobID    string
	Stage    string
	Progress int // 0-100
	Message  string
	Stats    *ProcessingStats
}
