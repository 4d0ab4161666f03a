// Package extract turns raw uploaded bytes into plain text and format metadata.
//
// Extraction never fails outright: unsupported types, corrupt files and
// decoding problems are logged and degrade to an empty string. Callers treat
// empty text as a failed ingestion.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/parser"
)

// Kind is the extraction path selected for a declared file type.
type Kind string

const (
	KindPDF         Kind = "pdf"
	KindWord        Kind = "word"
	KindTabular     Kind = "tabular"
	KindMarkdown    Kind = "markdown"
	KindText        Kind = "text"
	KindUnsupported Kind = "unsupported"
)

// kindMatchers is checked in order; the first substring hit wins.
// Tabular types come before plain text so "text/csv" is parsed as a table.
var kindMatchers = []struct {
	kind    Kind
	needles []string
}{
	{KindPDF, []string{"pdf"}},
	{KindWord, []string{"word", "docx", "wordprocessingml"}},
	{KindTabular, []string{"csv", "tab-separated-values", "tsv"}},
	{KindMarkdown, []string{"markdown"}},
	{KindText, []string{"text", "txt"}},
}

// KindOf maps a declared MIME-like type onto an extraction path.
// Matching is a case-insensitive substring test.
func KindOf(declaredType string) Kind {
	t := strings.ToLower(declaredType)
	for _, m := range kindMatchers {
		for _, needle := range m.needles {
			if strings.Contains(t, needle) {
				return m.kind
			}
		}
	}
	return KindUnsupported
}

// Extractor dispatches raw bytes to a format-specific extractor.
type Extractor struct {
	logger *slog.Logger
	runner CommandRunner
	md     goldmark.Markdown
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithCommandRunner replaces the runner used for external tools such as pdftotext.
func WithCommandRunner(r CommandRunner) Option {
	return func(e *Extractor) {
		e.runner = r
	}
}

// New creates an Extractor. A nil logger uses slog.Default().
func New(logger *slog.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Extractor{
		logger: logger,
		runner: ExecRunner{},
		md: goldmark.New(
			goldmark.WithParserOptions(
				parser.WithAutoHeadingID(),
			),
		),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the text content of data, or "" when nothing can be extracted.
func (e *Extractor) Extract(ctx context.Context, data []byte, declaredType string) (text string) {
	kind := KindOf(declaredType)

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("text extraction panicked", "kind", kind, "panic", fmt.Sprint(r))
			text = ""
		}
	}()

	var err error
	switch kind {
	case KindPDF:
		text, err = e.extractPDF(ctx, data)
	case KindWord:
		text, err = extractDocx(data)
	case KindTabular:
		text = e.extractTabular(data)
	case KindMarkdown:
		text = e.extractMarkdown(data)
	case KindText:
		text = DecodeText(data)
	default:
		e.logger.Warn("unsupported file type", "file_type", declaredType)
		return ""
	}

	if err != nil {
		e.logger.Error("text extraction failed", "kind", kind, "error", err)
		return ""
	}
	return text
}

// Metadata collects generic file facts plus format-specific keys.
// Format probes that fail are logged and leave only the generic keys.
func (e *Extractor) Metadata(ctx context.Context, data []byte, filename, declaredType string) (meta map[string]any) {
	meta = map[string]any{
		"filename":       filename,
		"file_type":      declaredType,
		"file_size":      len(data),
		"file_extension": strings.ToLower(filepath.Ext(filename)),
	}

	kind := KindOf(declaredType)
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("metadata extraction panicked", "kind", kind, "panic", fmt.Sprint(r))
		}
	}()

	var (
		extra map[string]any
		err   error
	)
	switch kind {
	case KindPDF:
		extra, err = pdfMetadata(data)
	case KindWord:
		extra, err = docxMetadata(data)
	case KindTabular:
		extra = tabularMetadata(data)
	case KindMarkdown:
		extra, err = e.markdownMetadata(data)
	}
	if err != nil {
		e.logger.Warn("metadata extraction failed", "kind", kind, "filename", filename, "error", err)
		return meta
	}
	for k, v := range extra {
		meta[k] = v
	}
	return meta
}
