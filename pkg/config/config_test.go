package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	// Create temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configData := `
llm:
  base_url: "http://localhost:8080/v1"
  model: "gpt-4o"
  max_tokens: 1000
  temperature: 0.5

rate_limit:
  requests_per_minute: 30
  tokens_per_minute: 40000
  max_retries: 5

chunker:
  chunk_size: 800
  chunk_overlap: 80
  min_length: 40

pipeline:
  class_filter: "important_plus"
  output_format: "csv"
  prioritize_important: true
  max_clauses: 50
  max_variants: 2

database:
  url: "postgres://localhost:5432/distill"
  table_name: "test_jobs"
`
	require.NoError(t, os.WriteFile(configPath, []byte(configData), 0o644))

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080/v1", cfg.LLM.BaseURL)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, 1000, cfg.LLM.MaxTokens)
	assert.Equal(t, 0.5, cfg.LLM.Temperature)

	assert.Equal(t, 30, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, 40000, cfg.RateLimit.TokensPerMinute)
	assert.Equal(t, 5, cfg.RateLimit.MaxRetries)

	assert.Equal(t, 800, cfg.Chunker.ChunkSize)
	assert.Equal(t, 80, cfg.Chunker.ChunkOverlap)
	assert.Equal(t, 40, cfg.Chunker.MinLength)

	assert.Equal(t, "important_plus", cfg.Pipeline.ClassFilter)
	assert.Equal(t, "csv", cfg.Pipeline.OutputFormat)
	assert.True(t, cfg.Pipeline.PrioritizeImportant)
	assert.Equal(t, 50, cfg.Pipeline.MaxClauses)
	assert.Equal(t, 2, cfg.Pipeline.MaxVariants)

	assert.Equal(t, "test_jobs", cfg.Database.TableName)

	// Defaults fill in what the file left unset.
	assert.Equal(t, 1000, cfg.RateLimit.RetryBaseDelayMs)
	assert.Equal(t, 300000, cfg.Pipeline.StageTimeoutMs)
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
	assert.Nil(t, cfg)

	cfg, err = getDefaultConfig()
	require.NoError(t, err)
	assert.Equal(t, "jsonl", cfg.Pipeline.OutputFormat)
	assert.Equal(t, "all", cfg.Pipeline.ClassFilter)
	assert.Equal(t, 1000, cfg.Chunker.ChunkSize)
	assert.Equal(t, 100, cfg.Chunker.ChunkOverlap)
	assert.Equal(t, 60, cfg.RateLimit.RequestsPerMinute)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("MODEL_BASE_URL", "http://model.internal:9000/v1")
	t.Setenv("DATABASE_URL", "postgres://env-host:5432/distill")

	cfg, err := getDefaultConfig()
	require.NoError(t, err)
	assert.Equal(t, "http://model.internal:9000/v1", cfg.LLM.BaseURL)
	assert.Equal(t, "postgres://env-host:5432/distill", cfg.Database.URL)
}

func TestValidate(t *testing.T) {
	cfg, err := getDefaultConfig()
	require.NoError(t, err)
	assert.Empty(t, cfg.Validate())

	cfg.LLM.MaxTokens = 0
	cfg.Chunker.ChunkOverlap = 2000
	cfg.Pipeline.OutputFormat = "xml"
	cfg.Pipeline.ClassFilter = "critical_and_then_some"

	errs := cfg.Validate()
	fields := make([]string, 0, len(errs))
	for _, e := range errs {
		fields = append(fields, e.Field)
	}

	assert.Contains(t, fields, "llm.max_tokens")
	assert.Contains(t, fields, "chunker.chunk_overlap")
	assert.Contains(t, fields, "pipeline.output_format")
	assert.Contains(t, fields, "pipeline.class_filter")
}

func TestValidate_ExplicitLabelList(t *testing.T) {
	cfg, err := getDefaultConfig()
	require.NoError(t, err)

	cfg.Pipeline.ClassFilter = "Critical, Important"
	assert.Empty(t, cfg.Validate())

	cfg.Pipeline.ClassFilter = "Critical, Bogus"
	errs := cfg.Validate()
	require.Len(t, errs, 1)
	assert.Equal(t, "pipeline.class_filter", errs[0].Field)
}
