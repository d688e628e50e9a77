// Package digest renders collected items into a single Telegram message.
package digest

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/deusflow/techdigest/internal/news"
)

const (
	DefaultTitle     = "📰 Top Tech & Movie Updates"
	DefaultMaxLength = 3900

	NoUpdates       = "No new updates right now."
	TruncatedMarker = "\n\n... (truncated)"
)

// IST is the fixed UTC+05:30 zone the header timestamp is printed in.
var IST = time.FixedZone("IST", 5*60*60+30*60)

type Composer struct {
	Title     string
	MaxLength int // in characters
}

func NewComposer(title string, maxLength int) *Composer {
	if title == "" {
		title = DefaultTitle
	}
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	return &Composer{Title: title, MaxLength: maxLength}
}

// Header returns the first line of the digest for the given time.
func (c *Composer) Header(now time.Time) string {
	return c.Title + " — " + now.In(IST).Format("2006-01-02 15:04 MST")
}

// Compose builds the digest. The result is never longer than MaxLength
// characters; an oversized digest is cut and ends with TruncatedMarker.
func (c *Composer) Compose(items []news.Item, now time.Time) string {
	var b strings.Builder

	b.WriteString(c.Header(now))
	b.WriteString("\n\n")

	if len(items) == 0 {
		b.WriteString(NoUpdates)
		return c.bound(b.String())
	}

	for i, it := range items {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(formatItem(it))
	}

	return c.bound(b.String())
}

func formatItem(it news.Item) string {
	var b strings.Builder
	b.WriteString("• ")
	b.WriteString(it.Title)
	b.WriteString("\n")
	if it.Summary != "" {
		b.WriteString(it.Summary)
		b.WriteString("\n")
	}
	b.WriteString(it.Link)
	return b.String()
}

func (c *Composer) bound(msg string) string {
	if utf8.RuneCountInString(msg) <= c.MaxLength {
		return msg
	}

	keep := c.MaxLength - utf8.RuneCountInString(TruncatedMarker)
	if keep < 0 {
		keep = 0
	}
	return string([]rune(msg)[:keep]) + TruncatedMarker
}
