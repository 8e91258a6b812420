package bluesky

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"devfeed/feeds"
	"devfeed/models"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Posts from the last day count as hot
const hotWindow = 24 * time.Hour

// A failed login is not retried before this, searches go anonymous meanwhile
const loginRetry = 15 * time.Minute

type SourceConfig struct {
	Name    string
	Host    string
	Query   string
	Limit   int
	Timeout time.Duration

	// Optional. Search through an authenticated session on PDSHost
	// instead of the anonymous AppView.
	Credentials *Credentials
	PDSHost     string
	HTTPClient  *http.Client
}

// Source searches Bluesky posts, mapping search orderings onto rankings
type Source struct {
	config     SourceConfig
	normalizer *feeds.Normalizer
	now        func() time.Time

	mu          sync.Mutex
	session     *Client
	loginFailed time.Time
}

func NewSource(config SourceConfig, normalizer *feeds.Normalizer) *Source {
	if config.HTTPClient == nil {
		config.HTTPClient = http.DefaultClient
	}
	if config.PDSHost == "" {
		config.PDSHost = DefaultPDSHost
	}
	config.Host = strings.TrimSuffix(config.Host, "/")
	config.PDSHost = strings.TrimSuffix(config.PDSHost, "/")
	if config.Limit > MaxSearchLimit {
		log.WithFields(log.Fields{
			"source": config.Name,
			"limit":  config.Limit,
		}).Warnf("Bluesky search limit capped at %d", MaxSearchLimit)
		config.Limit = MaxSearchLimit
	}
	return &Source{
		config:     config,
		normalizer: normalizer,
		now:        time.Now,
	}
}

func (s *Source) Name() string {
	return s.config.Name
}

func (s *Source) Fetch(ctx context.Context) models.Buckets {
	client := s.client(ctx)

	queries := map[models.Ranking]SearchQuery{
		models.RankingNew: {Q: s.config.Query, Sort: "latest", Limit: s.config.Limit},
		models.RankingTop: {Q: s.config.Query, Sort: "top", Limit: s.config.Limit},
		models.RankingHot: {Q: s.config.Query, Sort: "top", Since: s.now().Add(-hotWindow), Limit: s.config.Limit},
	}

	var (
		mu      sync.Mutex
		g       errgroup.Group
		buckets models.Buckets
	)

	for _, ranking := range models.Rankings {
		g.Go(func() error {
			posts := s.search(ctx, client, queries[ranking])

			mu.Lock()
			buckets.Set(ranking, posts)
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()

	log.WithFields(log.Fields{
		"source": s.config.Name,
		"new":    len(buckets.New),
		"top":    len(buckets.Top),
		"hot":    len(buckets.Hot),
	}).Info("Bluesky source fetched")

	return buckets
}

// client returns the cached session, logging in when there is none. Without
// credentials, or while a failed login is cooling down, it searches the
// anonymous AppView.
func (s *Source) client(ctx context.Context) *Client {
	if s.config.Credentials.Empty() {
		return AnonymousClient(s.config.Host, s.config.HTTPClient)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != nil {
		return s.session
	}
	if !s.loginFailed.IsZero() && s.now().Sub(s.loginFailed) < loginRetry {
		return AnonymousClient(s.config.Host, s.config.HTTPClient)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	client, err := ClientFromCredentials(ctx, s.config.PDSHost, s.config.Credentials, s.config.HTTPClient)
	if err != nil {
		s.loginFailed = s.now()
		log.WithFields(log.Fields{
			"source":   s.config.Name,
			"retry_in": loginRetry,
		}).WithError(err).Warn("Bluesky login failed, searching anonymously")
		return AnonymousClient(s.config.Host, s.config.HTTPClient)
	}

	log.WithFields(log.Fields{
		"source": s.config.Name,
		"handle": client.xrpc.Auth.Handle,
	}).Info("Bluesky session created")
	s.session = client
	s.loginFailed = time.Time{}
	return client
}

// dropSession forgets client so the next fetch logs in again
func (s *Source) dropSession(client *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == client {
		s.session = nil
	}
}

func (s *Source) search(ctx context.Context, client *Client, q SearchQuery) []models.Post {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	payload, err := client.SearchPosts(ctx, q)
	fields := log.Fields{
		"source":  s.config.Name,
		"sort":    q.Sort,
		"latency": time.Since(start),
	}
	if err != nil {
		if IsAuthError(err) {
			s.dropSession(client)
		}
		log.WithFields(fields).WithError(err).Warn("Fetch failed")
		return []models.Post{}
	}
	log.WithFields(fields).Debug("Fetched")

	return lo.Map(s.normalizer.NormalizeAll(feeds.Unwrap(payload)), func(post models.Post, _ int) models.Post {
		if post.SourceURL == "" {
			if link, ok := PostURL(post.ID); ok {
				post.SourceURL = link
			}
		}
		return post
	})
}

func (s *Source) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.config.Timeout)
}
