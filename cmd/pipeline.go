package cmd

import (
	"fmt"

	"devfeed/aggregator"
	"devfeed/config"
	"devfeed/feeds"
	"devfeed/sources"

	"github.com/urfave/cli/v2"
)

// loadConfig reads the optional config file and adds credentials from flags
func loadConfig(ctx *cli.Context) (*config.Config, error) {
	cfg := config.Default()

	if path := ctx.String("config"); path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	cfg.APIKey = ctx.String("api-key")
	cfg.BlueskyHandle = ctx.String("bsky-handle")
	cfg.BlueskyPassword = ctx.String("bsky-password")
	return cfg, nil
}

// newAggregator wires fetcher, normalizer and source chain for cfg
func newAggregator(cfg *config.Config) (*aggregator.Aggregator, error) {
	fetcher := sources.NewFetcher(cfg.Timeout, cfg.UserAgent)
	normalizer := feeds.NewNormalizer(cfg.FallbackAvatar)

	chain, err := sources.FromConfig(cfg, fetcher, normalizer)
	if err != nil {
		return nil, err
	}

	return aggregator.New(chain, feeds.NewCategories(cfg.Keywords)), nil
}
