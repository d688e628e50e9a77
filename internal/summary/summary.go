// Package summary turns feed and page text into short plain-text blurbs.
package summary

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	DefaultMaxChars     = 220
	DefaultMaxSentences = 2

	ellipsis = "..."
)

var tagRe = regexp.MustCompile(`<[^<]+?>`)

// StripTags removes markup tags and decodes HTML entities.
func StripTags(text string) string {
	text = tagRe.ReplaceAllString(text, "")
	return strings.TrimSpace(html.UnescapeString(text))
}

// Clean strips markup and collapses every whitespace run to a single space.
func Clean(text string) string {
	return strings.Join(strings.Fields(StripTags(text)), " ")
}

// Summarize keeps the first maxSentences sentences of text and shortens the
// result to maxChars characters on a word boundary, appending "..." when cut.
func Summarize(text string, maxChars, maxSentences int) string {
	cleaned := Clean(text)
	if cleaned == "" {
		return ""
	}

	sentences := splitSentences(cleaned)
	if maxSentences > 0 && len(sentences) > maxSentences {
		sentences = sentences[:maxSentences]
	}

	return truncateWords(strings.Join(sentences, " "), maxChars)
}

// Default summarizes with DefaultMaxChars and DefaultMaxSentences.
func Default(text string) string {
	return Summarize(text, DefaultMaxChars, DefaultMaxSentences)
}

// splitSentences expects whitespace already collapsed to single spaces.
func splitSentences(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s)-1; i++ {
		switch s[i] {
		case '.', '!', '?':
			if s[i+1] == ' ' {
				out = append(out, s[start:i+1])
				start = i + 2
			}
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

func truncateWords(s string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(s) <= maxChars {
		return s
	}

	runes := []rune(s)
	cut := string(runes[:maxChars])
	// The limit landing right before a space already sits on a word boundary.
	if runes[maxChars] != ' ' {
		// A single word longer than the limit has no boundary; it gets hard-cut.
		if i := strings.LastIndexByte(cut, ' '); i > 0 {
			cut = cut[:i]
		}
	}

	return strings.TrimRight(cut, " ") + ellipsis
}
