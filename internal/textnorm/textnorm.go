// Package textnorm converts free text into the deterministic token sequence
// shared by the matcher, the repost detector and the content fingerprint.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Tokens normalizes text into an ordered token sequence: lowercase, strip
// combining diacritics, split on the separator class, drop empties, then
// augment currency and region tokens. Repeated tokens are never collapsed.
func Tokens(text string) []string {
	if text == "" {
		return nil
	}
	lowered := strings.ToLower(text)
	stripped := stripDiacritics(lowered)
	return augment(split(stripped))
}

// stripDiacritics decomposes to NFD and drops combining marks
func stripDiacritics(s string) string {
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// isSeparator reports whether a rune splits tokens. Alphanumerics and the
// characters +, $, £, € are never separators, which preserves tokens like
// "c++" and currency amounts.
func isSeparator(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	case '/', '\\', '-', '_', '(', ')', '[', ']', '{', '}', ',', ';', '.', ':', '!', '?', '|':
		return true
	case '\'', '"', '‘', '’', '“', '”':
		return true
	}
	return false
}

func split(s string) []string {
	var tokens []string
	var current strings.Builder
	for _, r := range s {
		if isSeparator(r) {
			if current.Len() > 0 {
				tokens = append(tokens, current.String())
				current.Reset()
			}
			continue
		}
		current.WriteRune(r)
	}
	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}
	return tokens
}

// augment emits additional recall tokens after their trigger position.
// Original tokens are always preserved.
func augment(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for i, tok := range tokens {
		out = append(out, tok)
		if strings.ContainsRune(tok, '$') {
			out = append(out, "usd")
		}
		if strings.ContainsRune(tok, '£') {
			out = append(out, "gbp")
		}
		if strings.ContainsRune(tok, '€') {
			out = append(out, "eur")
		}
		switch tok {
		case "s":
			// "u. s." / "u.s." arrives here as the pair u, s
			if i > 0 && tokens[i-1] == "u" {
				out = append(out, "us", "usa")
			}
		case "k":
			if i > 0 && tokens[i-1] == "u" {
				out = append(out, "uk")
			}
		case "eeuu":
			out = append(out, "us", "usa")
		case "latinoamerica":
			out = append(out, "latam")
		}
	}
	return out
}
