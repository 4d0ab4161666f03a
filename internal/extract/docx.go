package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	docxBodyPart = "word/document.xml"
	docxCorePart = "docProps/core.xml"
)

var errMissingPart = errors.New("docx part not found")

// docxContent is the readable structure of word/document.xml.
type docxContent struct {
	Paragraphs []string   // Non-empty body paragraphs, table cells excluded
	Rows       [][]string // Table rows as non-empty trimmed cell texts
	Tables     int
	Sections   int
}

// extractDocx renders body paragraphs followed by table rows, each part
// separated by a blank line.
func extractDocx(data []byte) (string, error) {
	content, err := readDocx(data)
	if err != nil {
		return "", err
	}

	parts := make([]string, 0, len(content.Paragraphs)+len(content.Rows))
	parts = append(parts, content.Paragraphs...)
	for _, row := range content.Rows {
		parts = append(parts, strings.Join(row, " | "))
	}
	return strings.Join(parts, "\n\n"), nil
}

func readDocx(data []byte) (*docxContent, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}
	rc, err := openPart(zr, docxBodyPart)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	content, err := parseDocumentXML(rc)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", docxBodyPart, err)
	}
	return content, nil
}

func openPart(zr *zip.Reader, name string) (io.ReadCloser, error) {
	for _, f := range zr.File {
		if f.Name == name {
			return f.Open()
		}
	}
	return nil, fmt.Errorf("%w: %s", errMissingPart, name)
}

// parseDocumentXML streams WordprocessingML tokens. Text inside tables
// (including nested ones) is attributed to the enclosing top-level cell.
func parseDocumentXML(r io.Reader) (*docxContent, error) {
	dec := xml.NewDecoder(r)
	content := &docxContent{}

	var (
		tableDepth int
		inText     bool
		para       strings.Builder
		cell       strings.Builder
		row        []string
	)

	write := func(s string) {
		if tableDepth > 0 {
			cell.WriteString(s)
		} else {
			para.WriteString(s)
		}
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "tbl":
				tableDepth++
			case "tr":
				if tableDepth == 1 {
					row = nil
				}
			case "tc":
				if tableDepth == 1 {
					cell.Reset()
				}
			case "p":
				if tableDepth == 0 {
					para.Reset()
				}
			case "t":
				inText = true
			case "tab":
				write(" ")
			case "br", "cr":
				write("\n")
			case "sectPr":
				content.Sections++
			}
		case xml.CharData:
			if inText {
				write(string(el))
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "t":
				inText = false
			case "p":
				if tableDepth > 0 {
					cell.WriteString(" ")
				} else if text := strings.TrimSpace(para.String()); text != "" {
					content.Paragraphs = append(content.Paragraphs, para.String())
				}
			case "tc":
				if tableDepth == 1 {
					if text := strings.Join(strings.Fields(cell.String()), " "); text != "" {
						row = append(row, text)
					}
				}
			case "tr":
				if tableDepth == 1 && len(row) > 0 {
					content.Rows = append(content.Rows, row)
				}
			case "tbl":
				tableDepth--
				if tableDepth == 0 {
					content.Tables++
				}
			}
		}
	}

	return content, nil
}

// coreProperties is docProps/core.xml. Element names match in any namespace.
type coreProperties struct {
	Title          string `xml:"title"`
	Creator        string `xml:"creator"`
	Subject        string `xml:"subject"`
	Keywords       string `xml:"keywords"`
	Description    string `xml:"description"`
	LastModifiedBy string `xml:"lastModifiedBy"`
	Created        string `xml:"created"`
	Modified       string `xml:"modified"`
}

// docxMetadata counts structure and copies core document properties.
func docxMetadata(data []byte) (map[string]any, error) {
	content, err := readDocx(data)
	if err != nil {
		return nil, err
	}

	sections := content.Sections
	if sections == 0 {
		sections = 1
	}
	meta := map[string]any{
		"paragraph_count": len(content.Paragraphs),
		"table_count":     content.Tables,
		"section_count":   sections,
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return meta, nil
	}
	rc, err := openPart(zr, docxCorePart)
	if err != nil {
		return meta, nil
	}
	defer rc.Close()

	var core coreProperties
	if err := xml.NewDecoder(rc).Decode(&core); err != nil {
		return meta, nil
	}

	for key, v := range map[string]string{
		"title":            core.Title,
		"author":           core.Creator,
		"subject":          core.Subject,
		"keywords":         core.Keywords,
		"comments":         core.Description,
		"last_modified_by": core.LastModifiedBy,
		"created":          core.Created,
		"modified":         core.Modified,
	} {
		if v = strings.TrimSpace(v); v != "" {
			meta[key] = v
		}
	}
	return meta, nil
}
