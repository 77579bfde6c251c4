package source

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/xhad/distill/internal/models"
)

// MinDocumentLength is the shortest text worth processing. Shorter documents
// are reported as empty, a warning outcome rather than an error.
const MinDocumentLength = 25

type SourceConfig struct {
	PreserveLineBreaks bool
}

// Source loads already-extracted plain text from local files. HTML is reduced
// to its visible text; everything else is treated as plain text. PDF and OCR
// extraction happen upstream and are not handled here.
type Source struct {
	config SourceConfig
}

func NewWithConfig(config SourceConfig) *Source {
	return &Source{
		config: config,
	}
}

func New() *Source {
	return NewWithConfig(SourceConfig{PreserveLineBreaks: true})
}

func (s *Source) Load(path string) (*models.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}

	content := string(data)
	title := filepath.Base(path)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		content, title, err = s.extractHTML(content, title)
		if err != nil {
			return nil, err
		}
	}

	content = s.cleanContent(content)

	return &models.Document{
		ID:      uuid.NewString(),
		Path:    path,
		Title:   title,
		Content: content,
		Metadata: map[string]interface{}{
			"time":      time.Now(),
			"extension": filepath.Ext(path),
			"bytes":     len(data),
		},
	}, nil
}

// Usable reports whether the document carries enough text to process.
func Usable(doc *models.Document) bool {
	return doc != nil && len(strings.TrimSpace(doc.Content)) >= MinDocumentLength
}

func (s *Source) extractHTML(raw, fallbackTitle string) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return "", "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	title := strings.TrimSpace(doc.Find("title").Text())
	if title == "" {
		title = fallbackTitle
	}

	doc.Find("script, style, nav, header, footer").Remove()

	// Prefer a main content area when the page marks one up.
	selectors := []string{
		"main",
		"article",
		".content",
		"#content",
	}

	var content string
	for _, selector := range selectors {
		if selected := doc.Find(selector); selected.Length() > 0 {
			content = selected.Text()
			break
		}
	}

	if content == "" {
		content = doc.Find("body").Text()
	}

	return content, title, nil
}

func (s *Source) cleanContent(content string) string {
	if s.config.PreserveLineBreaks {
		var lines []string
		for _, line := range strings.Split(content, "\n") {
			lines = append(lines, strings.Join(strings.Fields(line), " "))
		}
		content = strings.Join(lines, "\n")
	} else {
		content = strings.Join(strings.Fields(content), " ")
	}

	return strings.TrimSpace(content)
}
