package formatter

import (
	"encoding/csv"
	"encoding/json"
	"strings"

	"github.com/xhad/distill/internal/models"
)

// TrainingSystemPrompt is the fixed system instruction emitted in
// openai-jsonl training examples.
const TrainingSystemPrompt = "Paraphrase the user's text while preserving its exact meaning."

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatExample struct {
	Messages []chatMessage `json:"messages"`
}

// Format serializes records into the named interchange format: "jsonl",
// "json", "openai-jsonl", or "csv". Unrecognized names fall back to the
// pretty JSON array; formatting always succeeds on well-formed input.
func Format(records []models.VariantRecord, format string) string {
	switch format {
	case "jsonl":
		return formatJSONL(records)
	case "openai-jsonl":
		return formatTrainingJSONL(records)
	case "csv":
		return formatCSV(records)
	default:
		return formatJSON(records)
	}
}

// formatJSONL emits one {original, classification, variants} object per line.
func formatJSONL(records []models.VariantRecord) string {
	var b strings.Builder
	for _, record := range records {
		line, err := json.Marshal(record)
		if err != nil {
			continue
		}
		b.Write(line)
		b.WriteByte('\n')
	}
	return b.String()
}

func formatJSON(records []models.VariantRecord) string {
	if records == nil {
		records = []models.VariantRecord{}
	}
	out, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(out)
}

// formatTrainingJSONL emits one three-message chat example per variant.
// Records with no variants produce no lines.
func formatTrainingJSONL(records []models.VariantRecord) string {
	var b strings.Builder
	for _, record := range records {
		for _, variant := range record.Variants {
			example := chatExample{Messages: []chatMessage{
				{Role: "system", Content: TrainingSystemPrompt},
				{Role: "user", Content: record.Original},
				{Role: "assistant", Content: variant},
			}}
			line, err := json.Marshal(example)
			if err != nil {
				continue
			}
			b.Write(line)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// formatCSV emits one row per variant; a record with no variants still gets
// one row with an empty variant field.
func formatCSV(records []models.VariantRecord) string {
	var b strings.Builder
	w := csv.NewWriter(&b)

	w.Write([]string{"original", "classification", "variant"})
	for _, record := range records {
		if len(record.Variants) == 0 {
			w.Write([]string{record.Original, string(record.Classification), ""})
			continue
		}
		for _, variant := range record.Variants {
			w.Write([]string{record.Original, string(record.Classification), variant})
		}
	}

	w.Flush()
	return b.String()
}
