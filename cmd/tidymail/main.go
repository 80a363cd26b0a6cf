package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/tidymail/tidymail/internal/agent"
	"github.com/tidymail/tidymail/internal/classify"
	"github.com/tidymail/tidymail/internal/cleanup"
	"github.com/tidymail/tidymail/internal/config"
	"github.com/tidymail/tidymail/internal/notify"
	"github.com/tidymail/tidymail/internal/provider"
	gmailprovider "github.com/tidymail/tidymail/internal/provider/gmail"
	imapprovider "github.com/tidymail/tidymail/internal/provider/imap"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	once := flag.Bool("once", false, "run a single cycle and exit")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
	if !*debug {
		logger = logger.Level(zerolog.InfoLevel)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", *configPath).Msg("Failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := newStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("provider", cfg.ResolveProvider()).Msg("Failed to connect to mail store")
	}
	defer store.Close()

	classifiers := []classify.Classifier{classify.NewRuleClassifier(cfg.Labels, logger)}
	if cfg.Classifier.Enabled {
		classifiers = append(classifiers, classify.NewLLMClassifier(
			cfg.Classifier.APIKey,
			cfg.Classifier.BaseURL,
			cfg.Classifier.Model,
			cfg.LabelNames(),
			logger,
		))
	}

	notifier, err := notify.New(cfg.Notifications, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to configure notifications")
	}

	cleaner := cleanup.NewEvaluator(cfg.Cleanup, logger)
	a := agent.New(store, classifiers, cfg.Labels, notifier, cleaner, logger)

	a.RunCycle(ctx)
	if *once {
		return
	}

	logger.Info().Dur("interval", cfg.Interval()).Msg("Agent started")
	ticker := time.NewTicker(cfg.Interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Agent stopped")
			return
		case <-ticker.C:
			a.RunCycle(ctx)
		}
	}
}

func newStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (provider.Store, error) {
	switch cfg.ResolveProvider() {
	case "gmail":
		return gmailprovider.New(ctx, cfg.Gmail, logger)
	default:
		return imapprovider.New(cfg.IMAP, logger)
	}
}
