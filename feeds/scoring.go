package feeds

import (
	"slices"

	"devfeed/models"

	"github.com/samber/lo"
)

// ComputeStats derives the aggregate counters from one cycle's buckets. Posts
// and authors are counted once even when they appear in several buckets.
func ComputeStats(buckets models.Buckets) models.Stats {
	all := slices.Concat(buckets.New, buckets.Top, buckets.Hot)

	authors := lo.Uniq(lo.Map(all, func(p models.Post, _ int) string {
		return p.Author
	}))
	posts := lo.UniqBy(all, func(p models.Post) string {
		return p.ID
	})

	return models.Stats{
		Agents:   len(authors),
		Posts:    len(posts),
		NewCount: len(buckets.New),
	}
}
