// Package sources implements the candidate providers tried by the aggregator.
// Every provider hides its transport behind Source: whatever it takes to
// get there, the result is three ranked buckets of normalized posts, or
// empty buckets on failure.
package sources

import (
	"context"
	"fmt"

	"devfeed/bluesky"
	"devfeed/config"
	"devfeed/feeds"
	"devfeed/models"
)

// Source is a provider able to produce the new/top/hot buckets
type Source interface {
	Name() string
	// Fetch never fails. A provider that is down yields empty buckets.
	Fetch(ctx context.Context) models.Buckets
}

// FromConfig builds the fallback chain in configured priority order
func FromConfig(cfg *config.Config, fetcher *Fetcher, normalizer *feeds.Normalizer) ([]Source, error) {
	chain := make([]Source, 0, len(cfg.Sources))

	for _, src := range cfg.Sources {
		switch src.Type {
		case config.SourceEndpoints:
			apiKey := ""
			if src.Auth {
				apiKey = cfg.APIKey
			}
			chain = append(chain, NewEndpointSource(src, apiKey, cfg.PostLimit, fetcher, normalizer))
		case config.SourceHackerNews:
			chain = append(chain, NewHackerNewsSource(src, cfg.PostLimit, fetcher, normalizer))
		case config.SourceBluesky:
			chain = append(chain, bluesky.NewSource(bluesky.SourceConfig{
				Name:    src.Name,
				Host:    src.BaseURL,
				Query:   src.Query,
				Limit:   cfg.PostLimit,
				Timeout: fetcher.Timeout(),
				Credentials: &bluesky.Credentials{
					Identifier: cfg.BlueskyHandle,
					Password:   cfg.BlueskyPassword,
				},
				HTTPClient: fetcher.Client(),
			}, normalizer))
		default:
			return nil, fmt.Errorf("%w: unknown source type %q", config.ErrInvalidConfig, src.Type)
		}
	}

	return chain, nil
}
