package main

import (
	"flag"
	"log"
	"os"

	cfgPkg "github.com/xhad/distill/pkg/config"
)

type Config struct {
	ConfigPath       string
	InputPath        string
	OutputPath       string
	BaseURL          string
	Model            string
	APIKeyEnv        string
	DBUrl            string
	TableName        string
	ChunkSize        int
	ChunkOverlap     int
	ClassFilter      string
	Format           string
	Prioritize       bool
	MaxClauses       int
	MaxVariants      int
	RPM              int
	TPM              int
	MaxRetries       int
	RetryBaseDelayMs int
	StageTimeoutMs   int
	MaxTokens        int
	Temperature      float64
	Verbose          bool
}

func main() {
	config := parseFlags()

	if err := run(config); err != nil {
		log.Fatal(err)
	}
}

func parseFlags() Config {
	var config Config

	flag.StringVar(&config.ConfigPath, "config", "", "Path to config file")
	flag.StringVar(&config.InputPath, "input", "", "Document to process (.txt, .md, .html)")
	flag.StringVar(&config.OutputPath, "output", "dataset.jsonl", "Output file")
	flag.StringVar(&config.BaseURL, "model-url", os.Getenv("MODEL_BASE_URL"), "Model service base URL")
	flag.StringVar(&config.Model, "model", "", "Model to use")
	flag.StringVar(&config.DBUrl, "db-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string for job status")
	flag.IntVar(&config.ChunkSize, "chunk-size", 0, "Size of text chunks")
	flag.IntVar(&config.ChunkOverlap, "chunk-overlap", 0, "Overlap between chunks")
	flag.StringVar(&config.ClassFilter, "class-filter", "", "Clause filter: all, critical_only, important_plus, or labels")
	flag.StringVar(&config.Format, "format", "", "Output format: jsonl, json, openai-jsonl, csv")
	flag.BoolVar(&config.Prioritize, "prioritize", false, "Prioritize Critical and Important clauses")
	flag.IntVar(&config.MaxClauses, "max-clauses", 0, "Maximum clauses to process")
	flag.IntVar(&config.MaxVariants, "max-variants", 0, "Maximum variants per clause")
	flag.IntVar(&config.RPM, "rpm", 0, "Requests per minute budget")
	flag.IntVar(&config.TPM, "tpm", 0, "Tokens per minute budget")
	flag.BoolVar(&config.Verbose, "verbose", false, "Enable debug logging")
	flag.Parse()

	// Load config file and fill in everything the flags left unset.
	if cfg, err := cfgPkg.LoadConfig(config.ConfigPath); err == nil {
		applyFileConfig(&config, cfg)
	}

	return config
}

// applyFileConfig fills flag-backed fields only when the flag was left unset;
// options without a flag always come from the file.
func applyFileConfig(config *Config, cfg *cfgPkg.Config) {
	if config.BaseURL == "" {
		config.BaseURL = cfg.LLM.BaseURL
	}
	if config.Model == "" {
		config.Model = cfg.LLM.Model
	}
	if config.DBUrl == "" {
		config.DBUrl = cfg.Database.URL
	}
	if config.ChunkSize == 0 {
		config.ChunkSize = cfg.Chunker.ChunkSize
	}
	if config.ChunkOverlap == 0 {
		config.ChunkOverlap = cfg.Chunker.ChunkOverlap
	}
	if config.ClassFilter == "" {
		config.ClassFilter = cfg.Pipeline.ClassFilter
	}
	if config.Format == "" {
		config.Format = cfg.Pipeline.OutputFormat
	}
	if !config.Prioritize {
		config.Prioritize = cfg.Pipeline.PrioritizeImportant
	}
	if config.MaxClauses == 0 {
		config.MaxClauses = cfg.Pipeline.MaxClauses
	}
	if config.MaxVariants == 0 {
		config.MaxVariants = cfg.Pipeline.MaxVariants
	}
	if config.RPM == 0 {
		config.RPM = cfg.RateLimit.RequestsPerMinute
	}
	if config.TPM == 0 {
		config.TPM = cfg.RateLimit.TokensPerMinute
	}

	config.APIKeyEnv = cfg.LLM.APIKeyEnv
	config.TableName = cfg.Database.TableName
	config.MaxTokens = cfg.LLM.MaxTokens
	config.Temperature = cfg.LLM.Temperature
	config.MaxRetries = cfg.RateLimit.MaxRetries
	config.RetryBaseDelayMs = cfg.RateLimit.RetryBaseDelayMs
	config.StageTimeoutMs = cfg.Pipeline.StageTimeoutMs
}
