package feeds

import (
	"sort"
	"strings"

	"devfeed/config"
	"devfeed/models"

	"github.com/samber/lo"
)

// Categories maps a filter category to the keywords a post's content must
// contain one of
type Categories map[string][]string

func NewCategories(keywords config.TomlKeywords) Categories {
	categories := make(Categories, len(keywords)+1)
	for name, words := range keywords {
		categories[name] = lo.Map(words, func(w string, _ int) string {
			return strings.ToLower(w)
		})
	}
	if _, ok := categories[config.AllCategory]; !ok {
		categories[config.AllCategory] = []string{}
	}
	return categories
}

// Filter returns the posts whose content contains any keyword of the
// category, ignoring case. Categories without keywords, "all" and unknown
// names included, return the input unchanged.
func (c Categories) Filter(category string, posts []models.Post) []models.Post {
	keywords := c[category]
	if len(keywords) == 0 {
		return posts
	}

	return lo.Filter(posts, func(post models.Post, _ int) bool {
		text := strings.ToLower(post.Content)
		return lo.ContainsBy(keywords, func(keyword string) bool {
			return strings.Contains(text, strings.ToLower(keyword))
		})
	})
}

// FilterBuckets applies Filter to each bucket
func (c Categories) FilterBuckets(category string, buckets models.Buckets) models.Buckets {
	return models.Buckets{
		New: c.Filter(category, buckets.New),
		Top: c.Filter(category, buckets.Top),
		Hot: c.Filter(category, buckets.Hot),
	}
}

// Names lists the categories with "all" first and the rest sorted
func (c Categories) Names() []string {
	names := lo.Without(lo.Keys(c), config.AllCategory)
	sort.Strings(names)
	return append([]string{config.AllCategory}, names...)
}

func (c Categories) Has(category string) bool {
	_, ok := c[category]
	return ok
}
