// Package scraper extracts a short description from an article page when the
// feed itself does not carry a usable summary.
package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/deusflow/techdigest/internal/logger"
	"github.com/deusflow/techdigest/internal/summary"
)

const (
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/100 Safari/537.36"

	// A paragraph at least this long is taken as soon as it is seen.
	longParagraphRunes = 80
	// The longest paragraph is only used when it beats this length.
	fallbackParagraphRunes = 40
)

// Config controls page fetching.
type Config struct {
	Timeout       time.Duration
	UserAgent     string
	MaxBodySize   int64
	FetchInterval time.Duration // minimum spacing between page requests, 0 disables pacing

	MaxChars     int
	MaxSentences int
}

func DefaultConfig() Config {
	return Config{
		Timeout:       8 * time.Second,
		UserAgent:     DefaultUserAgent,
		MaxBodySize:   5 * 1024 * 1024,
		FetchInterval: 500 * time.Millisecond,
		MaxChars:      summary.DefaultMaxChars,
		MaxSentences:  summary.DefaultMaxSentences,
	}
}

// strategy is one way of pulling a description out of a parsed page.
type strategy struct {
	name    string
	extract func(doc *goquery.Document) (string, bool)
}

var strategies = []strategy{
	{name: "meta", extract: metaDescription},
	{name: "first-long-paragraph", extract: firstLongParagraph},
	{name: "longest-paragraph", extract: longestParagraph},
}

// Resolver fetches article pages and summarizes them.
type Resolver struct {
	client  *http.Client
	cfg     Config
	limiter *rate.Limiter
	log     *slog.Logger
}

func NewResolver(cfg Config, log *slog.Logger) *Resolver {
	limit := rate.Inf
	if cfg.FetchInterval > 0 {
		limit = rate.Every(cfg.FetchInterval)
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	return &Resolver{
		client:  &http.Client{Timeout: cfg.Timeout},
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		log:     logger.OrDefault(log),
	}
}

// Resolve returns a short summary of the page at pageURL, or "" when the page
// cannot be fetched or offers nothing usable. It never fails.
func (r *Resolver) Resolve(ctx context.Context, pageURL string) string {
	pageURL = strings.TrimSpace(pageURL)
	if pageURL == "" {
		return ""
	}

	doc, err := r.fetch(ctx, pageURL)
	if err != nil {
		r.log.Debug("page summary unavailable", "url", pageURL, "error", err)
		return ""
	}

	for _, s := range strategies {
		text, ok := s.extract(doc)
		if !ok {
			continue
		}
		r.log.Debug("page summary resolved", "url", pageURL, "strategy", s.name)
		return summary.Summarize(text, r.cfg.MaxChars, r.cfg.MaxSentences)
	}

	return ""
}

func (r *Resolver) fetch(ctx context.Context, pageURL string) (*goquery.Document, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", r.cfg.UserAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error loading page: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("HTTP error: %d", resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if r.cfg.MaxBodySize > 0 {
		body = io.LimitReader(resp.Body, r.cfg.MaxBodySize)
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("error parsing HTML: %w", err)
	}
	return doc, nil
}

var metaSelectors = []string{
	`meta[name="description"]`,
	`meta[property="og:description"]`,
	`meta[name="og:description"]`,
}

func metaDescription(doc *goquery.Document) (string, bool) {
	for _, selector := range metaSelectors {
		var content string
		doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if c, ok := s.Attr("content"); ok && strings.TrimSpace(c) != "" {
				content = c
				return false
			}
			return true
		})
		if content != "" {
			return content, true
		}
	}
	return "", false
}

func firstLongParagraph(doc *goquery.Document) (string, bool) {
	for _, text := range paragraphs(doc) {
		if utf8.RuneCountInString(text) >= longParagraphRunes {
			return text, true
		}
	}
	return "", false
}

func longestParagraph(doc *goquery.Document) (string, bool) {
	longest, longestLen := "", 0
	for _, text := range paragraphs(doc) {
		if n := utf8.RuneCountInString(text); n > longestLen {
			longest, longestLen = text, n
		}
	}
	if longestLen > fallbackParagraphRunes {
		return longest, true
	}
	return "", false
}

// paragraphs returns the non-empty visible text of every <p>, in document order.
func paragraphs(doc *goquery.Document) []string {
	var out []string
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		if text := visibleText(s); text != "" {
			out = append(out, text)
		}
	})
	return out
}

// visibleText joins descendant text nodes with single spaces, skipping
// script and style content.
func visibleText(s *goquery.Selection) string {
	var parts []string
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		switch goquery.NodeName(c) {
		case "#text":
			parts = append(parts, c.Text())
		case "script", "style", "#comment":
		default:
			parts = append(parts, visibleText(c))
		}
	})
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}
