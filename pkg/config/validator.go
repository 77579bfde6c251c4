package config

import (
	"fmt"
	"net/url"
	"strings"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var knownFormats = []string{"jsonl", "json", "openai-jsonl", "csv"}

var knownFilters = []string{"all", "critical_only", "important_plus"}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate LLM config
	if c.LLM.BaseURL == "" {
		errors = append(errors, ValidationError{
			Field:   "llm.base_url",
			Message: "model service base URL is required",
		})
	}

	if _, err := url.Parse(c.LLM.BaseURL); err != nil {
		errors = append(errors, ValidationError{
			Field:   "llm.base_url",
			Message: "invalid model service base URL",
		})
	}

	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 8192 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be between 1 and 8192",
		})
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	// Validate rate limit config
	if c.RateLimit.RequestsPerMinute < 1 {
		errors = append(errors, ValidationError{
			Field:   "rate_limit.requests_per_minute",
			Message: "requests_per_minute must be positive",
		})
	}

	if c.RateLimit.TokensPerMinute < 1 {
		errors = append(errors, ValidationError{
			Field:   "rate_limit.tokens_per_minute",
			Message: "tokens_per_minute must be positive",
		})
	}

	if c.RateLimit.MaxRetries < 0 {
		errors = append(errors, ValidationError{
			Field:   "rate_limit.max_retries",
			Message: "max_retries cannot be negative",
		})
	}

	// Validate chunker config
	if c.Chunker.ChunkSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "chunker.chunk_size",
			Message: "chunk_size must be positive",
		})
	}

	if c.Chunker.ChunkOverlap < 0 || c.Chunker.ChunkOverlap >= c.Chunker.ChunkSize {
		errors = append(errors, ValidationError{
			Field:   "chunker.chunk_overlap",
			Message: "chunk_overlap must be non-negative and less than chunk_size",
		})
	}

	if c.Chunker.MinLength < 1 || c.Chunker.MinLength > c.Chunker.ChunkSize {
		errors = append(errors, ValidationError{
			Field:   "chunker.min_length",
			Message: "min_length must be positive and at most chunk_size",
		})
	}

	// Validate pipeline config
	if !isKnownFilter(c.Pipeline.ClassFilter) {
		errors = append(errors, ValidationError{
			Field:   "pipeline.class_filter",
			Message: fmt.Sprintf("unknown class filter: %s", c.Pipeline.ClassFilter),
		})
	}

	validFormat := false
	for _, f := range knownFormats {
		if c.Pipeline.OutputFormat == f {
			validFormat = true
			break
		}
	}
	if !validFormat {
		errors = append(errors, ValidationError{
			Field:   "pipeline.output_format",
			Message: fmt.Sprintf("unknown output format: %s", c.Pipeline.OutputFormat),
		})
	}

	if c.Pipeline.MaxClauses < 1 {
		errors = append(errors, ValidationError{
			Field:   "pipeline.max_clauses",
			Message: "max_clauses must be positive",
		})
	}

	if c.Pipeline.MaxVariants < 1 {
		errors = append(errors, ValidationError{
			Field:   "pipeline.max_variants",
			Message: "max_variants must be positive",
		})
	}

	// Validate database config
	if c.Database.URL != "" {
		if _, err := url.Parse(c.Database.URL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "database.url",
				Message: "invalid database URL",
			})
		}
	}

	return errors
}

// isKnownFilter accepts the named policies plus an explicit comma-separated
// list of labels, e.g. "Critical,Important".
func isKnownFilter(filter string) bool {
	for _, f := range knownFilters {
		if filter == f {
			return true
		}
	}

	for _, label := range strings.Split(filter, ",") {
		switch strings.TrimSpace(label) {
		case "Critical", "Important", "Standard":
		default:
			return false
		}
	}
	return true
}
