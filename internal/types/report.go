package types

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// ParsedFile is a successfully decoded document
type ParsedFile struct {
	Filename string `json:"filename"`
	Text     string `json:"content"`
	Length   int    `json:"length"`
}

// NewParsedFile builds a ParsedFile with its length derived from the text
func NewParsedFile(filename, text string) ParsedFile {
	return ParsedFile{
		Filename: filename,
		Text:     text,
		Length:   utf8.RuneCountInString(text),
	}
}

// FailedFile is a discovered document that could not be fetched or decoded
type FailedFile struct {
	Filename string `json:"filename"`
	Reason   string `json:"error"`
}

// IngestionReport is the aggregated record of one pipeline run
type IngestionReport struct {
	RunID           string           `json:"run_id"`
	Source          string           `json:"source"`
	FolderRef       string           `json:"folder_ref"`
	Discipline      string           `json:"discipline"`
	StartedAt       time.Time        `json:"started_at"`
	CompletedAt     time.Time        `json:"completed_at"`
	Parsed          []ParsedFile     `json:"parsed_files"`
	Failed          []FailedFile     `json:"failed_files"`
	TotalDiscovered int              `json:"total_discovered"`
	SkippedSubtrees []SkippedSubtree `json:"skipped_subtrees,omitempty"`
}

// Accounted reports whether every discovered entry landed in parsed or failed
func (r *IngestionReport) Accounted() bool {
	return len(r.Parsed)+len(r.Failed) == r.TotalDiscovered
}

// Summary renders the short outcome line handed back to the caller
func (r *IngestionReport) Summary(label string) string {
	return fmt.Sprintf("Successfully processed %d files from %s. %d failed.", len(r.Parsed), label, len(r.Failed))
}

// PromptText renders the report as a plain-text block for prompt templates
func (r *IngestionReport) PromptText() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "SOURCE: %s\n", r.Source)
	for _, p := range r.Parsed {
		fmt.Fprintf(&sb, "\n--- FILE: %s ---\n", p.Filename)
		sb.WriteString(p.Text)
		if !strings.HasSuffix(p.Text, "\n") {
			sb.WriteString("\n")
		}
	}
	if len(r.Failed) > 0 {
		sb.WriteString("\nFAILED FILES:\n")
		for _, f := range r.Failed {
			fmt.Fprintf(&sb, "- %s: %s\n", f.Filename, f.Reason)
		}
	}
	return sb.String()
}

// Headers implements TableRenderer
func (r *IngestionReport) Headers() []string {
	return []string{"File", "Status", "Length", "Detail"}
}

// Rows implements TableRenderer
func (r *IngestionReport) Rows() [][]string {
	rows := make([][]string, 0, len(r.Parsed)+len(r.Failed))
	for _, p := range r.Parsed {
		rows = append(rows, []string{p.Filename, "parsed", fmt.Sprintf("%d", p.Length), ""})
	}
	for _, f := range r.Failed {
		rows = append(rows, []string{f.Filename, "failed", "-", f.Reason})
	}
	return rows
}

// EmptyMessage implements TableRenderer
func (r *IngestionReport) EmptyMessage() string {
	return "No files in report"
}

// ErrorResult is the structured shape returned for fatal ingest failures
type ErrorResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// NewErrorResult builds an ErrorResult with status "error"
func NewErrorResult(message string) ErrorResult {
	return ErrorResult{Status: "error", Message: message}
}
