package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

var ErrInvalidConfig = errors.New("invalid config")

// Source types understood by the sources package
const (
	SourceEndpoints  = "endpoints"
	SourceHackerNews = "hackernews"
	SourceBluesky    = "bluesky"
)

// AllCategory is the filter category that matches every post
const AllCategory = "all"

// TomlKeywords maps a filter category to its keyword list
type TomlKeywords map[string][]string

// TomlSource is one candidate source in the fallback chain
type TomlSource struct {
	Name    string `toml:"name"`
	Type    string `toml:"type"`
	BaseURL string `toml:"base_url"`

	// Send the API key as a bearer token
	Auth bool `toml:"auth,omitempty"`

	// Endpoint paths relative to BaseURL, only for the endpoints type
	New string `toml:"new,omitempty"`
	Top string `toml:"top,omitempty"`
	Hot string `toml:"hot,omitempty"`

	// Search query, only for the bluesky type
	Query string `toml:"query,omitempty"`
}

// Config is the immutable configuration injected into the fetch pipeline
type Config struct {
	PostLimit       int           `toml:"post_limit"`
	Timeout         time.Duration `toml:"timeout"`
	UserAgent       string        `toml:"user_agent"`
	FallbackAvatar  string        `toml:"fallback_avatar"`
	RefreshInterval time.Duration `toml:"refresh_interval"`
	CorsOrigins     string        `toml:"cors_origins"`
	Keywords        TomlKeywords  `toml:"keywords"`
	Sources         []TomlSource  `toml:"sources"`

	// Credentials are only ever taken from flags or the environment
	APIKey          string `toml:"-"`
	BlueskyHandle   string `toml:"-"`
	BlueskyPassword string `toml:"-"`
}

const (
	moltbookAPI   = "https://www.moltbook.com/api/v1"
	hackerNewsAPI = "https://hacker-news.firebaseio.com/v0"
	blueskyAPI    = "https://public.api.bsky.app"
)

// DefaultKeywords is the built-in category table
func DefaultKeywords() TomlKeywords {
	return TomlKeywords{
		AllCategory: {},
		"code":      {"code", "coding", "programming", "developer", "software"},
		"ai":        {"AI", "machine learning", "ML", "GPT", "LLM", "neural", "OpenAI", "Claude"},
		"deploy":    {"deploy", "ship", "release", "launch", "production", "devops"},
		"github":    {"github", "git", "commit", "PR", "pull request", "merge", "repo"},
		"bug":       {"bug", "debug", "fix", "error", "issue", "crash"},
	}
}

// DefaultSources is the built-in fallback chain, in priority order
func DefaultSources() []TomlSource {
	return []TomlSource{
		{
			Name: "moltbook-feed", Type: SourceEndpoints, BaseURL: moltbookAPI, Auth: true,
			New: "/feed?sort=new", Top: "/feed?sort=top", Hot: "/feed?sort=hot",
		},
		{
			Name: "moltbook-posts", Type: SourceEndpoints, BaseURL: moltbookAPI, Auth: true,
			New: "/posts?sort=new", Top: "/posts?sort=top", Hot: "/posts?sort=hot",
		},
		{
			Name: "moltbook-search", Type: SourceEndpoints, BaseURL: moltbookAPI, Auth: true,
			New: "/search?q=dev&type=posts&sort=new", Top: "/search?q=code&type=posts", Hot: "/search?q=AI&type=posts",
		},
		{Name: "hackernews", Type: SourceHackerNews, BaseURL: hackerNewsAPI},
		{Name: "bluesky", Type: SourceBluesky, BaseURL: blueskyAPI, Query: "developer"},
	}
}

func Default() *Config {
	return &Config{
		PostLimit:       20,
		Timeout:         5 * time.Second,
		UserAgent:       "devfeed/1.0",
		FallbackAvatar:  "https://api.dicebear.com/7.x/pixel-art/png",
		RefreshInterval: 5 * time.Minute,
		CorsOrigins:     "http://localhost:3001",
		Keywords:        DefaultKeywords(),
		Sources:         DefaultSources(),
	}
}

// LoadConfig reads a TOML file. Settings missing from the file keep their
// defaults; a [keywords] table or [[sources]] list replaces the built-in one.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var file Config
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	cfg := merge(Default(), &file)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func merge(base, file *Config) *Config {
	if file.PostLimit != 0 {
		base.PostLimit = file.PostLimit
	}
	if file.Timeout != 0 {
		base.Timeout = file.Timeout
	}
	if file.UserAgent != "" {
		base.UserAgent = file.UserAgent
	}
	if file.FallbackAvatar != "" {
		base.FallbackAvatar = file.FallbackAvatar
	}
	if file.RefreshInterval != 0 {
		base.RefreshInterval = file.RefreshInterval
	}
	if file.CorsOrigins != "" {
		base.CorsOrigins = file.CorsOrigins
	}
	if len(file.Keywords) > 0 {
		base.Keywords = file.Keywords
		if _, ok := base.Keywords[AllCategory]; !ok {
			base.Keywords[AllCategory] = []string{}
		}
	}
	if len(file.Sources) > 0 {
		base.Sources = file.Sources
	}
	return base
}

// Validate checks limits and the source chain
func (c *Config) Validate() error {
	if c.PostLimit <= 0 {
		return fmt.Errorf("%w: post_limit must be positive, got %d", ErrInvalidConfig, c.PostLimit)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive, got %s", ErrInvalidConfig, c.Timeout)
	}
	if len(c.Sources) == 0 {
		return fmt.Errorf("%w: no sources configured", ErrInvalidConfig)
	}

	seen := make(map[string]bool, len(c.Sources))
	for i, src := range c.Sources {
		if src.Name == "" {
			return fmt.Errorf("%w: source #%d has no name", ErrInvalidConfig, i+1)
		}
		if seen[src.Name] {
			return fmt.Errorf("%w: duplicate source name %q", ErrInvalidConfig, src.Name)
		}
		seen[src.Name] = true

		if src.BaseURL == "" {
			return fmt.Errorf("%w: source %q has no base_url", ErrInvalidConfig, src.Name)
		}

		switch src.Type {
		case SourceEndpoints:
			if src.New == "" && src.Top == "" && src.Hot == "" {
				return fmt.Errorf("%w: source %q needs at least one of new, top, hot", ErrInvalidConfig, src.Name)
			}
		case SourceHackerNews:
		case SourceBluesky:
			if src.Query == "" {
				return fmt.Errorf("%w: source %q needs a query", ErrInvalidConfig, src.Name)
			}
		default:
			return fmt.Errorf("%w: source %q has unknown type %q", ErrInvalidConfig, src.Name, src.Type)
		}
	}
	return nil
}
