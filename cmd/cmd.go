package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/xhad/distill/internal/types"
	"github.com/xhad/distill/pkg/chunker"
	"github.com/xhad/distill/pkg/modelclient"
	"github.com/xhad/distill/pkg/pipeline"
	"github.com/xhad/distill/pkg/source"
	"github.com/xhad/distill/pkg/store"
	"go.uber.org/zap"
)

func getProgressBar(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(100,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func clientConfig(config Config) modelclient.ClientConfig {
	return modelclient.ClientConfig{
		BaseURL:           config.BaseURL,
		Model:             config.Model,
		APIKeyEnv:         config.APIKeyEnv,
		Temperature:       config.Temperature,
		MaxTokens:         config.MaxTokens,
		RequestsPerMinute: config.RPM,
		TokensPerMinute:   config.TPM,
		MaxRetries:        config.MaxRetries,
		RetryBaseDelay:    time.Duration(config.RetryBaseDelayMs) * time.Millisecond,
	}
}

func pipelineConfig(config Config) pipeline.PipelineConfig {
	return pipeline.PipelineConfig{
		ClassFilter:         config.ClassFilter,
		OutputFormat:        config.Format,
		PrioritizeImportant: config.Prioritize,
		MaxClauses:          config.MaxClauses,
		MaxVariants:         config.MaxVariants,
		StageTimeout:        time.Duration(config.StageTimeoutMs) * time.Millisecond,
	}
}

func run(config Config) error {
	if config.InputPath == "" {
		return fmt.Errorf("no input document given (use -input)")
	}

	logger := zap.NewNop()
	if config.Verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %v", err)
		}
		logger = l
		defer logger.Sync()
	}

	client, err := modelclient.NewWithConfig(clientConfig(config), modelclient.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to initialize model client: %v", err)
	}

	var statusStore types.StatusStore = store.NewMemoryStore()
	if config.DBUrl != "" {
		js, err := store.NewWithConfig(store.JobStoreConfig{
			ConnString: config.DBUrl,
			TableName:  config.TableName,
		})
		if err != nil {
			color.Yellow("Job store unavailable, continuing without it: %v\n", err)
		} else {
			statusStore = js
		}
	}
	defer statusStore.Close()

	// Load the document text
	var src types.DocumentSource = source.New()
	doc, err := src.Load(config.InputPath)
	if err != nil {
		return err
	}
	if !source.Usable(doc) {
		color.Yellow("Document %s has no usable text, nothing to do\n", config.InputPath)
		return nil
	}

	color.Cyan("Processing %s (%d characters)\n", doc.Title, len(doc.Content))

	bar := getProgressBar(" Starting pipeline...")

	p := pipeline.NewWithConfig(client,
		chunker.ChunkerConfig{
			ChunkSize:    config.ChunkSize,
			ChunkOverlap: config.ChunkOverlap,
		},
		pipelineConfig(config),
		pipeline.WithLogger(logger),
		pipeline.WithStatusStore(statusStore),
		pipeline.WithProgress(func(stage string, progress int, message string) {
			bar.Set(progress)
			bar.Describe(color.BlueString(" %s: %s", stage, message))
		}),
	)

	result, err := p.Run(context.Background(), doc.Content)
	bar.Finish()
	fmt.Println()

	if err != nil {
		if errors.Is(err, modelclient.ErrEmptyInput) {
			color.Yellow("Document skipped: %v\n", err)
			return nil
		}
		if result != nil {
			color.Red("Run failed after %d chunks, %d clauses\n",
				result.Stats.TotalChunks, result.Stats.ExtractedClauses)
		}
		return err
	}

	if err := os.WriteFile(config.OutputPath, []byte(result.Output), 0o644); err != nil {
		return fmt.Errorf("failed to write output: %v", err)
	}

	color.Green("✓ Wrote %d records to %s\n", len(result.Records), config.OutputPath)
	color.Green("  chunks: %d  clauses: %d  classified: %d  variants: %d",
		result.Stats.TotalChunks,
		result.Stats.ExtractedClauses,
		result.Stats.ClassifiedClauses,
		result.Stats.GeneratedVariants)
	if result.Stats.FailedBatches > 0 {
		color.Yellow("  %d batch(es) failed, coverage is partial", result.Stats.FailedBatches)
	}
	color.Green("  took %dms (job %s)\n", result.Stats.ProcessingTimeMs, result.JobID)

	return nil
}
