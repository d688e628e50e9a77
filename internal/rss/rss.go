package rss

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"gopkg.in/yaml.v3"
)

// FeedsConfig is YAML config structure
// feeds:
//   - https://...
//
// keywords:
//   - launch
type FeedsConfig struct {
	Feeds    []string `yaml:"feeds"`
	Keywords []string `yaml:"keywords"`
}

var defaultFeeds = []string{
	"https://www.theverge.com/rss/index.xml",
	"https://www.engadget.com/rss.xml",
	"https://www.gsmarena.com/rss-news-reviews.php3",
	"https://9to5google.com/feed/",
	"https://www.macrumors.com/macrumors.xml",
	"https://www.techradar.com/rss",
	"https://www.xda-developers.com/feed/",
	"https://www.imdb.com/news/movie/?ref_=nv_nw_mv",
	"https://variety.com/feed/",
	"https://www.bollywoodhungama.com/feed/",
}

var defaultKeywords = []string{
	"launch", "review", "update", "leak", "AI", "movie", "trailer", "Apple", "Samsung", "Android",
}

// DefaultFeedsConfig returns the built-in sources and keywords.
func DefaultFeedsConfig() FeedsConfig {
	return FeedsConfig{
		Feeds:    append([]string(nil), defaultFeeds...),
		Keywords: append([]string(nil), defaultKeywords...),
	}
}

// LoadFeeds reads the feeds and keywords lists from a YAML file. A list left
// out of the file falls back to the built-in one.
func LoadFeeds(path string) (FeedsConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return FeedsConfig{}, err
	}
	defer f.Close()

	var cfg FeedsConfig
	dec := yaml.NewDecoder(f)
	// An empty or comment-only file decodes to io.EOF.
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return FeedsConfig{}, fmt.Errorf("parse %s: %w", path, err)
	}

	defaults := DefaultFeedsConfig()
	if len(cfg.Feeds) == 0 {
		cfg.Feeds = defaults.Feeds
	}
	if len(cfg.Keywords) == 0 {
		cfg.Keywords = defaults.Keywords
	}
	return cfg, nil
}

// Entry is one unprocessed feed item.
type Entry struct {
	Title   string
	Link    string
	ID      string // feed-native guid, may be empty
	Summary string // feed-native summary or description, may contain markup
}

// Fetcher downloads and parses syndication feeds.
type Fetcher struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
}

func NewFetcher(timeout time.Duration, userAgent string) *Fetcher {
	return &Fetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		timeout:   timeout,
	}
}

// Fetch downloads and parses one feed, returning its entries in feed order.
func (f *Fetcher) Fetch(ctx context.Context, feedURL string) ([]Entry, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	parser := gofeed.NewParser()
	parser.Client = f.client
	if f.userAgent != "" {
		parser.UserAgent = f.userAgent
	}

	feed, err := parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(feed.Items))
	for _, it := range feed.Items {
		if it == nil {
			continue
		}
		entries = append(entries, toEntry(it))
	}
	return entries, nil
}

func toEntry(it *gofeed.Item) Entry {
	text := it.Description
	if strings.TrimSpace(text) == "" {
		text = it.Content
	}
	return Entry{
		Title:   strings.TrimSpace(it.Title),
		Link:    strings.TrimSpace(it.Link),
		ID:      strings.TrimSpace(it.GUID),
		Summary: text,
	}
}
