package types

import (
	"context"

	"github.com/xhad/distill/internal/models"
)

// Core interfaces
type Message struct {
	Role    string
	Content string
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

type Completion struct {
	Content string
	Usage   Usage
}

// ModelClient issues a single chat-completion request to the model service.
type ModelClient interface {
	Complete(ctx context.Context, messages []Message) (*Completion, error)
}

// StatusStore receives job progress writes. Writes are best-effort: the
// pipeline logs and ignores their errors.
type StatusStore interface {
	UpdateStatus(ctx context.Context, update models.JobUpdate) error
	Close()
}

// DocumentSource yields already-extracted plain text for a document.
type DocumentSource interface {
	Load(path string) (*models.Document, error)
}

type Chunker interface {
	Chunk(text string) []string
}

// ProgressFunc is invoked at stage transitions.
type ProgressFunc func(stage string, progress int, message string)
