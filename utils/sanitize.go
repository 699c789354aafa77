package utils

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	sanitizer = bluemonday.UGCPolicy()
	strict    = bluemonday.StrictPolicy()
)

// Sanitize cleans HTML content to prevent XSS attacks, keeping a user generated content subset.
func Sanitize(input string) string {
	return sanitizer.Sanitize(input)
}

// StripTags removes every tag, leaving plain text.
func StripTags(input string) string {
	return html.UnescapeString(strict.Sanitize(input))
}

// Linebreaks escapes plain text and turns blank-line separated blocks into paragraphs
// and single newlines into <br>.
func Linebreaks(text string) string {
	text = strings.ReplaceAll(strings.TrimSpace(text), "\r\n", "\n")
	if text == "" {
		return ""
	}
	var b strings.Builder
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(strings.ReplaceAll(html.EscapeString(para), "\n", "<br>"))
		b.WriteString("</p>")
	}
	return sanitizer.Sanitize(b.String())
}
