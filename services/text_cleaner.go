package services

import (
	"regexp"
	"strings"
)

var (
	boldPattern      = regexp.MustCompile(`\*\*(.*?)\*\*`)
	italicPattern    = regexp.MustCompile(`\*(.*?)\*`)
	underlinePattern = regexp.MustCompile(`_(.*?)_`)
	codePattern      = regexp.MustCompile("`(.*?)`")
	htmlTagPattern   = regexp.MustCompile(`<.*?>`)
)

// CleanText strips markup artifacts from model-generated text while
// preserving the actual content. Cleaning already-clean text is a no-op.
func CleanText(text string) string {
	text = boldPattern.ReplaceAllString(text, "$1")
	text = italicPattern.ReplaceAllString(text, "$1")
	text = underlinePattern.ReplaceAllString(text, "$1")
	text = codePattern.ReplaceAllString(text, "$1")
	text = htmlTagPattern.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}
