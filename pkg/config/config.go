package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LLM struct {
		BaseURL     string  `yaml:"base_url"`
		Model       string  `yaml:"model"`
		APIKeyEnv   string  `yaml:"api_key_env"`
		MaxTokens   int     `yaml:"max_tokens"`
		Temperature float64 `yaml:"temperature"`
	} `yaml:"llm"`

	RateLimit struct {
		RequestsPerMinute int `yaml:"requests_per_minute"`
		TokensPerMinute   int `yaml:"tokens_per_minute"`
		MaxRetries        int `yaml:"max_retries"`
		RetryBaseDelayMs  int `yaml:"retry_base_delay_ms"`
	} `yaml:"rate_limit"`

	Chunker struct {
		ChunkSize    int `yaml:"chunk_size"`
		ChunkOverlap int `yaml:"chunk_overlap"`
		MinLength    int `yaml:"min_length"`
	} `yaml:"chunker"`

	Pipeline struct {
		ClassFilter         string `yaml:"class_filter"`
		OutputFormat        string `yaml:"output_format"`
		PrioritizeImportant bool   `yaml:"prioritize_important"`
		MaxClauses          int    `yaml:"max_clauses"`
		MaxVariants         int    `yaml:"max_variants"`
		StageTimeoutMs      int    `yaml:"stage_timeout_ms"`
	} `yaml:"pipeline"`

	Database struct {
		URL       string `yaml:"url"`
		TableName string `yaml:"table_name"`
	} `yaml:"database"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"distill.yaml",
			"distill.yml",
			filepath.Join(os.Getenv("HOME"), ".config/distill/config.yaml"),
			"/etc/distill/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}

	// Merge with environment variables
	mergeWithEnv(&config)

	// Apply defaults for unset values
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	applyDefaults(config)
	mergeWithEnv(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.LLM.Model == "" {
		config.LLM.Model = "gpt-4o-mini"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2000
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.3
	}
	if config.LLM.BaseURL == "" {
		config.LLM.BaseURL = "https://api.openai.com/v1"
	}
	if config.LLM.APIKeyEnv == "" {
		config.LLM.APIKeyEnv = "OPENAI_API_KEY"
	}

	if config.RateLimit.RequestsPerMinute == 0 {
		config.RateLimit.RequestsPerMinute = 60
	}
	if config.RateLimit.TokensPerMinute == 0 {
		config.RateLimit.TokensPerMinute = 90000
	}
	if config.RateLimit.MaxRetries == 0 {
		config.RateLimit.MaxRetries = 3
	}
	if config.RateLimit.RetryBaseDelayMs == 0 {
		config.RateLimit.RetryBaseDelayMs = 1000
	}

	if config.Chunker.ChunkSize == 0 {
		config.Chunker.ChunkSize = 1000
	}
	if config.Chunker.ChunkOverlap == 0 {
		config.Chunker.ChunkOverlap = 100
	}
	if config.Chunker.MinLength == 0 {
		config.Chunker.MinLength = 50
	}

	if config.Pipeline.ClassFilter == "" {
		config.Pipeline.ClassFilter = "all"
	}
	if config.Pipeline.OutputFormat == "" {
		config.Pipeline.OutputFormat = "jsonl"
	}
	if config.Pipeline.MaxClauses == 0 {
		config.Pipeline.MaxClauses = 100
	}
	if config.Pipeline.MaxVariants == 0 {
		config.Pipeline.MaxVariants = 3
	}
	if config.Pipeline.StageTimeoutMs == 0 {
		config.Pipeline.StageTimeoutMs = 300000
	}

	if config.Database.TableName == "" {
		config.Database.TableName = "jobs"
	}
}

func mergeWithEnv(config *Config) {
	if baseURL := os.Getenv("MODEL_BASE_URL"); baseURL != "" {
		config.LLM.BaseURL = baseURL
	}
	if model := os.Getenv("MODEL_NAME"); model != "" {
		config.LLM.Model = model
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
}
