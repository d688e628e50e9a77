package news

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/samber/lo"

	"github.com/deusflow/techdigest/internal/logger"
	"github.com/deusflow/techdigest/internal/rss"
	"github.com/deusflow/techdigest/internal/summary"
)

const (
	DefaultPerSourceLimit = 8
	// Native summaries shorter than this (after stripping markup) are not
	// trusted and the article page is consulted instead.
	DefaultMinNativeSummary = 60
)

// Item is a relevant, not yet delivered feed entry with its resolved summary.
type Item struct {
	Title   string
	Link    string
	GUID    string
	Summary string
}

// FeedFetcher returns the entries of one feed in feed order.
type FeedFetcher interface {
	Fetch(ctx context.Context, feedURL string) ([]rss.Entry, error)
}

// PageResolver returns a short description of an article page, "" if none.
type PageResolver interface {
	Resolve(ctx context.Context, pageURL string) string
}

// SeenChecker reports whether an id was delivered by an earlier run.
type SeenChecker interface {
	Contains(id string) bool
}

type Options struct {
	Keywords         []string
	PerSourceLimit   int
	MinNativeSummary int
	MaxChars         int
	MaxSentences     int
}

func DefaultOptions(keywords []string) Options {
	return Options{
		Keywords:         keywords,
		PerSourceLimit:   DefaultPerSourceLimit,
		MinNativeSummary: DefaultMinNativeSummary,
		MaxChars:         summary.DefaultMaxChars,
		MaxSentences:     summary.DefaultMaxSentences,
	}
}

// Stats counts what happened during one Collect call.
type Stats struct {
	SourcesOK      int
	SourcesFailed  int
	EntriesScanned int
	Irrelevant     int
	Duplicates     int
	PageLookups    int
}

type Result struct {
	Items    []Item
	NewGUIDs []string
	Stats    Stats
}

// Aggregator walks the configured feeds and picks the entries worth sending.
type Aggregator struct {
	fetcher  FeedFetcher
	resolver PageResolver
	opts     Options
	keywords []string
	log      *slog.Logger
}

func NewAggregator(fetcher FeedFetcher, resolver PageResolver, opts Options, log *slog.Logger) *Aggregator {
	if opts.PerSourceLimit <= 0 {
		opts.PerSourceLimit = DefaultPerSourceLimit
	}
	if opts.MinNativeSummary <= 0 {
		opts.MinNativeSummary = DefaultMinNativeSummary
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = summary.DefaultMaxChars
	}
	if opts.MaxSentences <= 0 {
		opts.MaxSentences = summary.DefaultMaxSentences
	}

	keywords := lo.FilterMap(opts.Keywords, func(k string, _ int) (string, bool) {
		k = strings.ToLower(strings.TrimSpace(k))
		return k, k != ""
	})

	return &Aggregator{
		fetcher:  fetcher,
		resolver: resolver,
		opts:     opts,
		keywords: keywords,
		log:      logger.OrDefault(log),
	}
}

// Collect goes through sources in order and returns at most maxItems new,
// relevant items together with their ids. A feed that cannot be fetched is
// skipped. seen is only read.
func (a *Aggregator) Collect(ctx context.Context, sources []string, seen SeenChecker, maxItems int) Result {
	var res Result
	if maxItems <= 0 {
		return res
	}

	emitted := make(map[string]struct{})

	for _, src := range sources {
		if ctx.Err() != nil {
			a.log.Warn("aggregation interrupted", "error", ctx.Err())
			break
		}

		entries, err := a.fetcher.Fetch(ctx, src)
		if err != nil {
			res.Stats.SourcesFailed++
			a.log.Warn("feed fetch failed, skipping source", "url", src, "error", err)
			continue
		}
		res.Stats.SourcesOK++
		a.log.Info("feed loaded", "url", src, "entries", len(entries))

		if len(entries) > a.opts.PerSourceLimit {
			entries = entries[:a.opts.PerSourceLimit]
		}

		for _, e := range entries {
			res.Stats.EntriesScanned++

			if !a.isRelevant(e) {
				res.Stats.Irrelevant++
				continue
			}

			guid := CanonicalID(e)
			if guid == "" {
				continue
			}
			if _, dup := emitted[guid]; dup || seen.Contains(guid) {
				res.Stats.Duplicates++
				continue
			}

			item := Item{
				Title:   e.Title,
				Link:    e.Link,
				GUID:    guid,
				Summary: a.resolveSummary(ctx, e, &res.Stats),
			}
			res.Items = append(res.Items, item)
			res.NewGUIDs = append(res.NewGUIDs, guid)
			emitted[guid] = struct{}{}

			if len(res.Items) >= maxItems {
				break
			}
		}

		if len(res.Items) >= maxItems {
			break
		}
	}

	return res
}

// isRelevant reports whether any keyword occurs in the entry's title or
// native summary, ignoring case.
func (a *Aggregator) isRelevant(e rss.Entry) bool {
	text := strings.ToLower(e.Title + " " + e.Summary)
	return lo.SomeBy(a.keywords, func(k string) bool {
		return strings.Contains(text, k)
	})
}

// resolveSummary prefers a long enough native summary, then the article
// page, then the title.
func (a *Aggregator) resolveSummary(ctx context.Context, e rss.Entry, stats *Stats) string {
	native := summary.StripTags(e.Summary)
	if utf8.RuneCountInString(native) >= a.opts.MinNativeSummary {
		return summary.Summarize(native, a.opts.MaxChars, a.opts.MaxSentences)
	}

	stats.PageLookups++
	if s := a.resolver.Resolve(ctx, e.Link); s != "" {
		return s
	}

	return summary.Summarize(e.Title, a.opts.MaxChars, a.opts.MaxSentences)
}

// CanonicalID is the dedup key of an entry: its link, else its feed id,
// else its title.
func CanonicalID(e rss.Entry) string {
	if link := strings.TrimSpace(e.Link); link != "" {
		return link
	}
	if id := strings.TrimSpace(e.ID); id != "" {
		return id
	}
	return strings.TrimSpace(e.Title)
}
