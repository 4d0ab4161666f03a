package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

const pdftotextBin = "pdftotext"

var errNoPDFText = errors.New("no text in pdf")

// extractPDF tries the layout-aware pdftotext tool first and falls back to
// pure-Go page text extraction when it is missing or yields nothing.
func (e *Extractor) extractPDF(ctx context.Context, data []byte) (string, error) {
	pages, err := e.pdftotextPages(ctx, data)
	if err != nil {
		e.logger.Debug("pdftotext unavailable, using page text fallback", "error", err)
	}
	if text := joinPages(pages); text != "" {
		return text, nil
	}

	pages, err = plainTextPages(data)
	if err != nil {
		return "", fmt.Errorf("read pdf pages: %w", err)
	}
	return joinPages(pages), nil
}

// pdftotextPages runs "pdftotext -layout" over a temp copy and splits its output on form feeds.
func (e *Extractor) pdftotextPages(ctx context.Context, data []byte) ([]string, error) {
	tmp, err := os.CreateTemp("", "docqa-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close temp file: %w", err)
	}

	out, err := e.runner.Run(ctx, pdftotextBin, "-layout", "-enc", "UTF-8", tmp.Name(), "-")
	if err != nil {
		return nil, err
	}
	return strings.Split(string(out), "\f"), nil
}

// plainTextPages reads each page's text with the pure-Go reader.
func plainTextPages(data []byte) (pages []string, err error) {
	// The reader panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	if len(pages) == 0 {
		return nil, errNoPDFText
	}
	return pages, nil
}

// joinPages keeps non-blank pages separated by a blank line.
func joinPages(pages []string) string {
	var kept []string
	for _, p := range pages {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}

var pdfInfoKeys = map[string]string{
	"Title":    "title",
	"Author":   "author",
	"Subject":  "subject",
	"Creator":  "creator",
	"Producer": "producer",
}

// pdfMetadata reports page count, header version and Info dictionary fields.
func pdfMetadata(data []byte) (meta map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			meta, err = nil, fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	meta = map[string]any{
		"page_count": r.NumPage(),
	}
	if v := pdfVersion(data); v != "" {
		meta["pdf_version"] = v
	}

	info := r.Trailer().Key("Info")
	if !info.IsNull() {
		for key, name := range pdfInfoKeys {
			if v := strings.TrimSpace(info.Key(key).Text()); v != "" {
				meta[name] = v
			}
		}
	}
	return meta, nil
}

// pdfVersion reads the "%PDF-x.y" header line.
func pdfVersion(data []byte) string {
	const magic = "%PDF-"
	if !bytes.HasPrefix(data, []byte(magic)) {
		return ""
	}
	line := data[len(magic):]
	if i := bytes.IndexAny(line, "\r\n "); i >= 0 {
		line = line[:i]
	}
	if len(line) > 8 {
		return ""
	}
	return string(line)
}
