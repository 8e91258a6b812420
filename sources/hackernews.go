package sources

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"devfeed/config"
	"devfeed/feeds"
	"devfeed/models"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const hackerNewsItemConcurrency = 10

// Story lists per ranking; HN has no "hot" list so best stories stand in
var hackerNewsLists = map[models.Ranking]string{
	models.RankingNew: "newstories",
	models.RankingTop: "topstories",
	models.RankingHot: "beststories",
}

// HackerNewsSource is the secondary public provider. Each ranking takes two
// round-trips: the id list, then one request per item.
type HackerNewsSource struct {
	name        string
	baseURL     string
	limit       int
	concurrency int
	fetcher     *Fetcher
	normalizer  *feeds.Normalizer
}

func NewHackerNewsSource(cfg config.TomlSource, limit int, fetcher *Fetcher, normalizer *feeds.Normalizer) *HackerNewsSource {
	// Stories carry the headline in title and optional HTML in text
	n := *normalizer
	n.Fields.Content = []feeds.Extractor{feeds.Path("title"), feeds.Path("text")}

	return &HackerNewsSource{
		name:        cfg.Name,
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		limit:       limit,
		concurrency: hackerNewsItemConcurrency,
		fetcher:     fetcher,
		normalizer:  &n,
	}
}

func (s *HackerNewsSource) Name() string {
	return s.name
}

func (s *HackerNewsSource) Fetch(ctx context.Context) models.Buckets {
	var (
		mu      sync.Mutex
		g       errgroup.Group
		buckets models.Buckets
	)

	for _, ranking := range models.Rankings {
		g.Go(func() error {
			posts := s.fetchList(ctx, hackerNewsLists[ranking])

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
	}).Info("Hacker News source fetched")

	return buckets
}

func (s *HackerNewsSource) fetchList(ctx context.Context, list string) []models.Post {
	ids := feeds.Unwrap(s.fetcher.Get(ctx, fmt.Sprintf("%s/%s.json", s.baseURL, list), nil))
	if len(ids) > s.limit {
		ids = ids[:s.limit]
	}

	// Items keep the order of the id list
	items := make([]any, len(ids))
	var g errgroup.Group
	g.SetLimit(s.concurrency)

	for i, id := range ids {
		g.Go(func() error {
			items[i] = s.fetcher.Get(ctx, fmt.Sprintf("%s/item/%v.json", s.baseURL, id), nil)
			return nil
		})
	}
	_ = g.Wait()

	stories := lo.Filter(items, func(item any, _ int) bool {
		story, ok := item.(map[string]any)
		if !ok {
			return false
		}
		return story["deleted"] != true && story["dead"] != true
	})

	return lo.Map(s.normalizer.NormalizeAll(stories), func(post models.Post, _ int) models.Post {
		// Ask HN and friends have no url, link to the discussion instead
		if post.SourceURL == "" {
			post.SourceURL = "https://news.ycombinator.com/item?id=" + post.ID
		}
		return post
	})
}
