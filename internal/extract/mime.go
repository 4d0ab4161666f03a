package extract

import (
	"mime"
	"path/filepath"
	"strings"
)

const (
	TypePDF      = "application/pdf"
	TypeDocx     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	TypeText     = "text/plain"
	TypeCSV      = "text/csv"
	TypeTSV      = "text/tab-separated-values"
	TypeMarkdown = "text/markdown"
	TypeUnknown  = "application/octet-stream"
)

var extensionTypes = map[string]string{
	".pdf":      TypePDF,
	".docx":     TypeDocx,
	".txt":      TypeText,
	".csv":      TypeCSV,
	".tsv":      TypeTSV,
	".md":       TypeMarkdown,
	".markdown": TypeMarkdown,
}

// DetectType guesses a declared type from a file name.
func DetectType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if t, ok := extensionTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return TypeUnknown
}

// Supported reports whether a file name has an extension with a text extraction path.
func Supported(filename string) bool {
	_, ok := extensionTypes[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// SupportedExtensions lists the extensions with a dedicated extraction path.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(extensionTypes))
	for ext := range extensionTypes {
		exts = append(exts, ext)
	}
	return exts
}
