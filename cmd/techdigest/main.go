package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/deusflow/techdigest/internal/app"
	"github.com/deusflow/techdigest/internal/config"
	"github.com/deusflow/techdigest/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		slog.Error("run failed", "kind", fmt.Sprintf("%T", err), "error", err)
		stop()
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "techdigest",
		Usage: "Send a digest of new tech and movie headlines to a Telegram chat",
		Description: `Reads the configured feeds, keeps entries matching any keyword that were
not delivered before, and posts them as one Telegram message. Delivered ids
are remembered in a JSON ledger only after the message went out.

Settings are read from the environment (TELEGRAM_TOKEN, TELEGRAM_CHAT_ID,
MAX_ITEMS, ...). The flags below override them.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "feeds",
				Usage:   "YAML file with feeds and keywords",
				EnvVars: []string{"FEEDS_CONFIG_PATH"},
			},
			&cli.StringFlag{
				Name:    "seen-file",
				Usage:   "seen ledger path",
				EnvVars: []string{"SEEN_FILE"},
			},
			&cli.BoolFlag{
				Name:    "dry-run",
				Usage:   "print the digest instead of sending it; the ledger is not touched",
				EnvVars: []string{"DRY_RUN"},
			},
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "debug logging",
				EnvVars: []string{"DEBUG"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "text or json",
				EnvVars: []string{"LOG_FORMAT"},
			},
			&cli.StringFlag{
				Name:    "metrics-textfile",
				Usage:   "write Prometheus metrics to this file after the run",
				EnvVars: []string{"METRICS_TEXTFILE"},
			},
		},
		Action: run,
	}
}

func run(c *cli.Context) error {
	cfg := config.FromEnv()
	if c.IsSet("feeds") {
		cfg.FeedsConfigPath = c.String("feeds")
	}
	if c.IsSet("seen-file") {
		cfg.SeenFile = c.String("seen-file")
	}
	if c.IsSet("dry-run") {
		cfg.DryRun = c.Bool("dry-run")
	}
	if c.IsSet("debug") {
		cfg.Debug = c.Bool("debug")
	}
	if c.IsSet("log-format") {
		cfg.LogFormat = c.String("log-format")
	}
	if c.IsSet("metrics-textfile") {
		cfg.MetricsTextfile = c.String("metrics-textfile")
	}

	log := logger.Init(cfg.Debug, cfg.LogFormat)
	if cfg.DryRun {
		// stdout carries the digest itself
		log = logger.New(os.Stderr, cfg.Debug, cfg.LogFormat)
		slog.SetDefault(log)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	return app.Run(c.Context, cfg, log)
}
