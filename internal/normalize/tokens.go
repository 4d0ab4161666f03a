package normalize

import (
	"regexp"
	"strings"
)

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// Words lowercases and cleans text, then returns its word tokens in order.
func Words(text string) []string {
	if text == "" {
		return nil
	}
	return wordPattern.FindAllString(Clean(strings.ToLower(text)), -1)
}
