package extract

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

var (
	utf8BOM    = []byte{0xEF, 0xBB, 0xBF}
	utf16LEBOM = []byte{0xFF, 0xFE}
	utf16BEBOM = []byte{0xFE, 0xFF}
)

// DecodeText decodes plain text bytes, trying UTF-8, BOM-marked UTF-16,
// Windows-1252 and ISO-8859-1 in that order. It never fails; the last
// resort replaces invalid sequences.
func DecodeText(data []byte) string {
	if len(data) == 0 {
		return ""
	}

	if utf8.Valid(data) {
		return string(bytes.TrimPrefix(data, utf8BOM))
	}

	if bytes.HasPrefix(data, utf16LEBOM) || bytes.HasPrefix(data, utf16BEBOM) {
		dec := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
		if out, err := dec.Bytes(data); err == nil {
			return string(out)
		}
	}

	if validWindows1252(data) {
		if out, err := charmap.Windows1252.NewDecoder().Bytes(data); err == nil {
			return string(out)
		}
	}

	if out, err := charmap.ISO8859_1.NewDecoder().Bytes(data); err == nil {
		return string(out)
	}

	return strings.ToValidUTF8(string(data), "")
}

// validWindows1252 reports whether data avoids the five bytes Windows-1252
// leaves undefined. x/text decodes them to C1 controls instead of failing.
func validWindows1252(data []byte) bool {
	for _, c := range data {
		switch c {
		case 0x81, 0x8D, 0x8F, 0x90, 0x9D:
			return false
		}
	}
	return true
}
