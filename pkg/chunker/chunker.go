package chunker

import (
	"strings"
)

type ChunkerConfig struct {
	ChunkSize    int
	ChunkOverlap int
	MinLength    int
}

// Chunker splits raw document text into overlapping segments, cutting at
// natural language boundaries instead of fixed offsets so that the model
// never receives input split mid-sentence.
type Chunker struct {
	config ChunkerConfig
}

func NewWithConfig(config ChunkerConfig) *Chunker {
	if config.ChunkSize == 0 {
		config.ChunkSize = 1000
	}
	if config.ChunkOverlap == 0 {
		config.ChunkOverlap = 100
	}
	if config.MinLength == 0 {
		config.MinLength = 50
	}
	if config.ChunkOverlap >= config.ChunkSize {
		config.ChunkOverlap = config.ChunkSize / 2
	}

	return &Chunker{
		config: config,
	}
}

func New() *Chunker {
	return NewWithConfig(ChunkerConfig{})
}

// Chunk scans the text once, accumulating a current chunk and remembering the
// most recent position that is safe to cut at. When the chunk reaches
// ChunkSize it is cut at that position, and the next chunk starts ChunkOverlap
// characters earlier so trailing context carries over. Texts shorter than
// MinLength yield no chunks.
func (c *Chunker) Chunk(text string) []string {
	var chunks []string

	start := 0
	lastBreak := -1

	i := start
	for i < len(text) {
		if pos := c.breakPointAt(text, i, i-start); pos > lastBreak {
			lastBreak = pos
		}

		if i-start+1 >= c.config.ChunkSize {
			cut := lastBreak
			if cut <= start {
				// No break point inside this chunk: cut at the size
				// limit so the scan always makes forward progress.
				cut = i + 1
			}

			piece := strings.TrimSpace(text[start:cut])
			if len(piece) >= c.config.MinLength {
				chunks = append(chunks, piece)
			}

			next := cut - c.config.ChunkOverlap
			if next <= start {
				next = cut
			}
			start = next
			lastBreak = -1
			i = start
			continue
		}

		i++
	}

	if piece := strings.TrimSpace(text[start:]); len(piece) >= c.config.MinLength {
		chunks = append(chunks, piece)
	}

	return chunks
}

// breakPointAt reports the cut position ending at text[i] if it qualifies as a
// break point, or -1. Sentence enders followed by a space always qualify;
// clause enders only once the accumulated chunk exceeds MinLength.
func (c *Chunker) breakPointAt(text string, i, accumulated int) int {
	ch := text[i]

	switch ch {
	case '.', '!', '?':
		if i+1 < len(text) && (text[i+1] == ' ' || text[i+1] == '\n') {
			return i + 1
		}
	case '\n':
		// A blank line ends a paragraph, which always qualifies.
		if i+1 < len(text) && text[i+1] == '\n' {
			return i + 1
		}
		if accumulated >= c.config.MinLength {
			return i + 1
		}
	case ';', ':':
		if accumulated >= c.config.MinLength {
			return i + 1
		}
	}

	return -1
}
