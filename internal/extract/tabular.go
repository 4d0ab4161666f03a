package extract

import (
	"encoding/csv"
	"fmt"
	"strings"
)

// MaxTableRows bounds how many data rows of a table are rendered.
const MaxTableRows = 1000

// separators are tried in order; the first consistent multi-column parse wins.
var separators = []rune{',', ';', '\t', '|'}

type table struct {
	Separator rune
	Header    []string
	Rows      [][]string
}

// parseTable decodes text as delimited records with the first workable separator.
func parseTable(text string) (*table, bool) {
	for _, sep := range separators {
		r := csv.NewReader(strings.NewReader(text))
		r.Comma = sep
		r.LazyQuotes = true
		r.TrimLeadingSpace = true

		records, err := r.ReadAll()
		if err != nil || len(records) == 0 || len(records[0]) < 2 {
			continue
		}
		return &table{Separator: sep, Header: records[0], Rows: records[1:]}, true
	}
	return nil, false
}

// extractTabular renders rows as "column: value" pairs, falling back to
// plain text when no separator parses.
func (e *Extractor) extractTabular(data []byte) string {
	text := DecodeText(data)
	t, ok := parseTable(text)
	if !ok {
		e.logger.Debug("no usable table separator, reading as plain text")
		return text
	}

	lines := []string{
		"CSV Data:",
		"Columns: " + strings.Join(t.Header, ", "),
		"",
	}

	rows := t.Rows
	if len(rows) > MaxTableRows {
		rows = rows[:MaxTableRows]
	}
	for _, row := range rows {
		var pairs []string
		for i, value := range row {
			if strings.TrimSpace(value) == "" || i >= len(t.Header) {
				continue
			}
			pairs = append(pairs, fmt.Sprintf("%s: %s", t.Header[i], value))
		}
		if len(pairs) > 0 {
			lines = append(lines, strings.Join(pairs, " | "))
		}
	}
	return strings.Join(lines, "\n")
}

func tabularMetadata(data []byte) map[string]any {
	t, ok := parseTable(DecodeText(data))
	if !ok {
		return nil
	}
	return map[string]any{
		"row_count":    len(t.Rows),
		"column_count": len(t.Header),
		"separator":    string(t.Separator),
	}
}
