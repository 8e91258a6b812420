// Package render formats feed data as plain terminal text.
package render

import (
	"fmt"
	"strings"
	"time"

	"devfeed/models"

	"github.com/araddon/dateparse"
	"github.com/samber/lo"
)

// EmptySection is printed for a section the active filter emptied
const EmptySection = "No posts match this filter"

const previewLength = 140

// RelativeTime renders the age of a timestamp as now, 5m, 3h or 2d.
// Unparseable timestamps render as an empty string.
func RelativeTime(timestamp string, now time.Time) string {
	t, err := dateparse.ParseAny(timestamp)
	if err != nil {
		return ""
	}

	diff := now.Sub(t)
	switch {
	case diff < time.Minute:
		return "now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm", int(diff/time.Minute))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh", int(diff/time.Hour))
	}
	return fmt.Sprintf("%dd", int(diff/(24*time.Hour)))
}

// Preview shortens content to a single line
func Preview(content string) string {
	line := strings.Join(strings.Fields(content), " ")
	runes := []rune(line)
	if len(runes) <= previewLength {
		return line
	}
	return string(runes[:previewLength-1]) + "…"
}

// Label is the one-line form of a post used in selection lists
func Label(post models.Post, now time.Time) string {
	return fmt.Sprintf("@%s · %s · ▲%d 💬%d · %s",
		post.Author, RelativeTime(post.Timestamp, now), post.Upvotes, post.Comments, Preview(post.Content))
}

// Detail is the full view of a selected post
func Detail(post models.Post, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "@%s  %s\n", post.Author, RelativeTime(post.Timestamp, now))
	fmt.Fprintf(&b, "%s\n\n", post.AvatarURL)
	fmt.Fprintf(&b, "%s\n\n", post.Content)
	fmt.Fprintf(&b, "%d upvotes  %d comments\n", post.Upvotes, post.Comments)
	if post.SourceURL != "" {
		fmt.Fprintf(&b, "%s\n", post.SourceURL)
	}
	return b.String()
}

// Section renders a titled bucket
func Section(ranking models.Ranking, posts []models.Post, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "== %s (%d) ==\n", strings.ToUpper(string(ranking)), len(posts))
	if len(posts) == 0 {
		fmt.Fprintf(&b, "  %s\n", EmptySection)
		return b.String()
	}
	for i, post := range posts {
		fmt.Fprintf(&b, "%3d. %s\n", i+1, Label(post, now))
	}
	return b.String()
}

// View renders all three sections of a filtered view
func View(view models.FeedView, now time.Time) string {
	sections := lo.Map(models.Rankings, func(r models.Ranking, _ int) string {
		return Section(r, view.Get(r), now)
	})
	return fmt.Sprintf("Filter: %s\n\n%s", view.Filter, strings.Join(sections, "\n"))
}

func Stats(stats models.Stats) string {
	return fmt.Sprintf("%d agents · %d posts · %d new", stats.Agents, stats.Posts, stats.NewCount)
}
