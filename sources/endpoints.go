package sources

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"devfeed/config"
	"devfeed/feeds"
	"devfeed/models"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// EndpointSource is a provider exposing one endpoint per ranking, e.g.
// /feed?sort=new, /feed?sort=top and /feed?sort=hot
type EndpointSource struct {
	name       string
	baseURL    string
	paths      map[models.Ranking]string
	headers    http.Header
	limit      int
	fetcher    *Fetcher
	normalizer *feeds.Normalizer
}

func NewEndpointSource(cfg config.TomlSource, apiKey string, limit int, fetcher *Fetcher, normalizer *feeds.Normalizer) *EndpointSource {
	return &EndpointSource{
		name:    cfg.Name,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		paths: map[models.Ranking]string{
			models.RankingNew: cfg.New,
			models.RankingTop: cfg.Top,
			models.RankingHot: cfg.Hot,
		},
		headers:    BearerAuth(apiKey),
		limit:      limit,
		fetcher:    fetcher,
		normalizer: normalizer,
	}
}

func (s *EndpointSource) Name() string {
	return s.name
}

// Fetch requests the sibling endpoints concurrently and waits for all of them
func (s *EndpointSource) Fetch(ctx context.Context) models.Buckets {
	var (
		mu      sync.Mutex
		g       errgroup.Group
		buckets = models.Buckets{New: []models.Post{}, Top: []models.Post{}, Hot: []models.Post{}}
	)

	for _, ranking := range models.Rankings {
		path := s.paths[ranking]
		if path == "" {
			continue
		}

		g.Go(func() error {
			posts := s.fetchRanking(ctx, path)

			mu.Lock()
			buckets.Set(ranking, posts)
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()

	log.WithFields(log.Fields{
		"source": s.name,
		"new":    len(buckets.New),
		"top":    len(buckets.Top),
		"hot":    len(buckets.Hot),
	}).Info("Endpoint source fetched")

	return buckets
}

func (s *EndpointSource) fetchRanking(ctx context.Context, path string) []models.Post {
	endpoint, err := withLimit(s.baseURL+path, s.limit)
	if err != nil {
		log.WithFields(log.Fields{
			"source": s.name,
			"path":   path,
		}).WithError(err).Warn("Invalid endpoint")
		return []models.Post{}
	}

	payload := s.fetcher.Get(ctx, endpoint, s.headers)
	if payload == nil {
		return []models.Post{}
	}
	return s.normalizer.NormalizeAll(feeds.Unwrap(payload))
}

// withLimit adds the per request result limit to the endpoint query
func withLimit(endpoint string, limit int) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("limit", strconv.Itoa(limit))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
