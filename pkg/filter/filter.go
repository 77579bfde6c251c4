package filter

import (
	"sort"
	"strings"

	"github.com/xhad/distill/internal/models"
)

type FilterConfig struct {
	ClassFilter         string
	PrioritizeImportant bool
	MaxClauses          int
	MinLength           int
	MaxLength           int
	SimilarityThreshold float64
}

// Filter applies classification-based selection, prioritization and capping,
// and an optional validation pass that rejects out-of-bounds and
// near-duplicate clauses.
type Filter struct {
	config FilterConfig
}

func NewWithConfig(config FilterConfig) Filter {
	if config.ClassFilter == "" {
		config.ClassFilter = "all"
	}
	if config.MaxClauses == 0 {
		config.MaxClauses = 100
	}
	if config.MinLength == 0 {
		config.MinLength = 10
	}
	if config.MaxLength == 0 {
		config.MaxLength = 500
	}
	if config.SimilarityThreshold == 0 {
		config.SimilarityThreshold = 0.85
	}

	return Filter{
		config: config,
	}
}

// Select retains clauses matching the configured class filter: "all",
// "critical_only", "important_plus", or an explicit comma-separated label
// list.
func (f *Filter) Select(clauses []models.ClassifiedClause) []models.ClassifiedClause {
	allowed := f.allowedLabels()
	if allowed == nil {
		return clauses
	}

	var out []models.ClassifiedClause
	for _, clause := range clauses {
		if allowed[clause.Classification] {
			out = append(out, clause)
		}
	}
	return out
}

func (f *Filter) allowedLabels() map[models.Classification]bool {
	switch f.config.ClassFilter {
	case "all":
		return nil
	case "critical_only":
		return map[models.Classification]bool{models.Critical: true}
	case "important_plus":
		return map[models.Classification]bool{models.Critical: true, models.Important: true}
	}

	allowed := make(map[models.Classification]bool)
	for _, label := range strings.Split(f.config.ClassFilter, ",") {
		allowed[models.Classification(strings.TrimSpace(label))] = true
	}
	return allowed
}

// Cap truncates to MaxClauses, stable-sorting by classification rank first
// when prioritization is on so the highest-priority clauses survive the cut.
func (f *Filter) Cap(clauses []models.ClassifiedClause) []models.ClassifiedClause {
	out := clauses
	if f.config.PrioritizeImportant {
		out = make([]models.ClassifiedClause, len(clauses))
		copy(out, clauses)
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Classification.Rank() > out[j].Classification.Rank()
		})
	}

	if len(out) > f.config.MaxClauses {
		out = out[:f.config.MaxClauses]
	}
	return out
}

// Validate rejects clauses outside the configured length bounds and clauses
// that are near-duplicates of an earlier kept clause. Near-duplicate here
// means token-overlap similarity, which catches paraphrase-level repeats the
// model produced across chunks; exact-match dedupe happens at extraction.
func (f *Filter) Validate(clauses []string) []string {
	var kept []string
	var keptSets []map[string]bool

	for _, clause := range clauses {
		if len(clause) < f.config.MinLength || len(clause) > f.config.MaxLength {
			continue
		}

		set := wordSet(clause)
		duplicate := false
		for _, prev := range keptSets {
			if jaccard(set, prev) >= f.config.SimilarityThreshold {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}

		kept = append(kept, clause)
		keptSets = append(keptSets, set)
	}

	return kept
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, word := range strings.Fields(strings.ToLower(s)) {
		set[word] = true
	}
	return set
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}

	intersection := 0
	for word := range a {
		if b[word] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
