package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/deusflow/techdigest/internal/config"
	"github.com/deusflow/techdigest/internal/digest"
	"github.com/deusflow/techdigest/internal/logger"
	"github.com/deusflow/techdigest/internal/metrics"
	"github.com/deusflow/techdigest/internal/news"
	"github.com/deusflow/techdigest/internal/rss"
	"github.com/deusflow/techdigest/internal/scraper"
	"github.com/deusflow/techdigest/internal/storage"
	"github.com/deusflow/techdigest/internal/telegram"
)

// Sender delivers one composed digest.
type Sender interface {
	SendMessage(ctx context.Context, text string) error
}

// Pipeline is one digest run: load the ledger, collect, compose, deliver and
// only then remember what was delivered.
type Pipeline struct {
	Store      *storage.SeenStore
	Aggregator *news.Aggregator
	Composer   *digest.Composer
	Sender     Sender
	Metrics    *metrics.Metrics
	Log        *slog.Logger

	Sources  []string
	MaxItems int

	// DryRun prints the digest to Out instead of sending it. The ledger is
	// left alone.
	DryRun bool
	Out    io.Writer

	Now func() time.Time
}

func (p *Pipeline) Run(ctx context.Context) error {
	log := logger.OrDefault(p.Log)
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	start := time.Now()

	seen := p.Store.Load()
	log.Info("seen ledger loaded", "path", p.Store.Path(), "ids", seen.Len())

	res := p.Aggregator.Collect(ctx, p.Sources, seen, p.MaxItems)
	if p.Metrics != nil {
		p.Metrics.RecordCollect(res)
	}
	log.Info("collection finished",
		"items", len(res.Items),
		"sources_ok", res.Stats.SourcesOK,
		"sources_failed", res.Stats.SourcesFailed,
		"duplicates", res.Stats.Duplicates,
		"page_lookups", res.Stats.PageLookups,
	)

	if err := ctx.Err(); err != nil {
		p.finish(start, false)
		return fmt.Errorf("run interrupted: %w", err)
	}

	msg := p.Composer.Compose(res.Items, now())
	log.Info("digest composed", "items", len(res.Items), "chars", utf8.RuneCountInString(msg))

	if p.DryRun {
		out := p.Out
		if out == nil {
			out = os.Stdout
		}
		if _, err := fmt.Fprintln(out, msg); err != nil {
			p.finish(start, false)
			return fmt.Errorf("print digest: %w", err)
		}
		log.Info("dry run, nothing sent and seen ledger untouched")
		p.finish(start, true)
		return nil
	}

	if p.Sender == nil {
		p.finish(start, false)
		return errors.New("no sender configured")
	}

	err := p.Sender.SendMessage(ctx, msg)
	if p.Metrics != nil {
		p.Metrics.RecordDelivery(err)
	}
	if err != nil {
		log.Error("delivery failed, seen ledger left untouched", "kind", fmt.Sprintf("%T", err), "error", err)
		p.finish(start, false)
		return fmt.Errorf("deliver digest: %w", err)
	}

	if len(res.NewGUIDs) == 0 {
		p.setLedgerSize(seen.Len())
		p.finish(start, true)
		return nil
	}

	updated := seen.Append(res.NewGUIDs...).Trim(p.Store.Capacity())
	if err := p.Store.Commit(updated); err != nil {
		// Delivered already, so this is not a run failure.
		log.Error("failed to save seen ledger", "path", p.Store.Path(), "error", err)
	} else {
		log.Info("seen ledger updated", "added", len(res.NewGUIDs), "ids", updated.Len())
		p.setLedgerSize(updated.Len())
	}

	p.finish(start, true)
	return nil
}

func (p *Pipeline) setLedgerSize(n int) {
	if p.Metrics != nil {
		p.Metrics.SetLedgerSize(n)
	}
}

func (p *Pipeline) finish(start time.Time, success bool) {
	if p.Metrics != nil {
		p.Metrics.Finish(time.Since(start), success)
	}
}

// Run wires the production components from cfg and executes one pipeline run.
func Run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	log = logger.OrDefault(log).With("run_id", uuid.NewString())

	feeds, err := rss.LoadFeeds(cfg.FeedsConfigPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load feeds config: %w", err)
		}
		log.Warn("feeds config not found, using built-in sources", "path", cfg.FeedsConfigPath)
		feeds = rss.DefaultFeedsConfig()
	}

	var sender Sender
	if !cfg.DryRun {
		client, err := telegram.New(telegram.Config{
			Token:   cfg.TelegramToken,
			ChatID:  cfg.TelegramChatID,
			Timeout: cfg.SendTimeout,
		}, log)
		if err != nil {
			return err
		}
		sender = client
	}

	resolver := scraper.NewResolver(scraper.Config{
		Timeout:       cfg.PageTimeout,
		UserAgent:     scraper.DefaultUserAgent,
		MaxBodySize:   scraper.DefaultConfig().MaxBodySize,
		FetchInterval: cfg.PageFetchInterval,
		MaxChars:      cfg.SummaryMaxChars,
		MaxSentences:  cfg.SummaryMaxSentences,
	}, log)

	opts := news.DefaultOptions(feeds.Keywords)
	opts.PerSourceLimit = cfg.PerSourceLimit
	opts.MaxChars = cfg.SummaryMaxChars
	opts.MaxSentences = cfg.SummaryMaxSentences

	m := metrics.New()
	p := &Pipeline{
		Store:      storage.NewSeenStore(cfg.SeenFile, cfg.SeenCapacity, log),
		Aggregator: news.NewAggregator(rss.NewFetcher(cfg.FeedTimeout, scraper.DefaultUserAgent), resolver, opts, log),
		Composer:   digest.NewComposer(cfg.DigestTitle, cfg.MaxMessageLength),
		Sender:     sender,
		Metrics:    m,
		Log:        log,
		Sources:    feeds.Feeds,
		MaxItems:   cfg.MaxItems,
		DryRun:     cfg.DryRun,
	}

	log.Info("starting digest run", "sources", len(feeds.Feeds), "keywords", len(feeds.Keywords), "dry_run", cfg.DryRun)
	runErr := p.Run(ctx)

	if cfg.MetricsTextfile != "" {
		if err := m.WriteTextfile(cfg.MetricsTextfile); err != nil {
			log.Warn("failed to write metrics textfile", "path", cfg.MetricsTextfile, "error", err)
		}
	}
	return runErr
}
