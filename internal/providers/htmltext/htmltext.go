// Package htmltext converts provider HTML fragments into plain text for
// normalization and storage.
package htmltext

import (
	"html"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
)

var (
	converter = md.NewConverter("", true, nil)
	tagRe     = regexp.MustCompile(`<[^>]*>`)
	spaceRe   = regexp.MustCompile(`[ \t]+`)
	blankRe   = regexp.MustCompile(`\n{3,}`)
)

// Convert renders an HTML fragment as markdown-flavored plain text. When
// conversion fails the tags are stripped instead, so a mapper never loses
// a description to a malformed fragment.
func Convert(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}
	decoded := html.UnescapeString(fragment)
	text, err := converter.ConvertString(decoded)
	if err != nil {
		text = tagRe.ReplaceAllString(decoded, " ")
	}
	text = spaceRe.ReplaceAllString(text, " ")
	text = blankRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// Truncate cuts text at max runes on a rune boundary
func Truncate(text string, max int) string {
	if max <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}
