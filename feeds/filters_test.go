package feeds_test

import (
	"testing"

	"devfeed/config"
	"devfeed/feeds"
	"devfeed/models"

	"github.com/stretchr/testify/assert"
)

func posts(contents ...string) []models.Post {
	result := make([]models.Post, len(contents))
	for i, c := range contents {
		result[i] = models.Post{ID: c, Content: c}
	}
	return result
}

func TestFilter(t *testing.T) {
	categories := feeds.NewCategories(config.DefaultKeywords())
	input := posts(
		"Shipping to Production",
		"just vibes",
		"Fixed a nasty BUG in the parser",
		"Trained a new LLM today",
	)

	tests := []struct {
		name     string
		category string
		expected []models.Post
	}{
		{name: "all passes everything", category: "all", expected: input},
		{name: "unknown category passes everything", category: "cooking", expected: input},
		{name: "empty category passes everything", category: "", expected: input},
		{name: "deploy matches case-insensitively", category: "deploy", expected: posts("Shipping to Production")},
		{name: "bug matches uppercase content", category: "bug", expected: posts("Fixed a nasty BUG in the parser")},
		{name: "ai matches uppercase keyword", category: "ai", expected: posts("Trained a new LLM today")},
		{name: "keywords match inside words", category: "github", expected: posts("Shipping to Production")},
		{name: "no matches", category: "code", expected: []models.Post{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, categories.Filter(tt.category, input))
		})
	}
}

func TestFilterPassThroughKeepsSlice(t *testing.T) {
	categories := feeds.NewCategories(config.DefaultKeywords())
	input := posts("a", "b")
	result := categories.Filter(config.AllCategory, input)
	assert.Same(t, &input[0], &result[0])
}

func TestFilterLiteralCategories(t *testing.T) {
	categories := feeds.Categories{"go": {"GoLang"}}
	assert.Equal(t, posts("I love golang"), categories.Filter("go", posts("I love golang", "rust")))
}

func TestFilterBuckets(t *testing.T) {
	categories := feeds.NewCategories(config.DefaultKeywords())
	buckets := models.Buckets{
		New: posts("deploy friday", "lunch"),
		Top: posts("lunch"),
		Hot: posts("release notes"),
	}

	filtered := categories.FilterBuckets("deploy", buckets)
	assert.Equal(t, posts("deploy friday"), filtered.New)
	assert.Empty(t, filtered.Top)
	assert.Equal(t, posts("release notes"), filtered.Hot)
}

func TestCategoryNames(t *testing.T) {
	categories := feeds.NewCategories(config.DefaultKeywords())
	assert.Equal(t, []string{"all", "ai", "bug", "code", "deploy", "github"}, categories.Names())
	assert.True(t, categories.Has("code"))
	assert.False(t, categories.Has("cooking"))

	withoutAll := feeds.NewCategories(config.TomlKeywords{"go": {"golang"}})
	assert.Equal(t, []string{"all", "go"}, withoutAll.Names())
}
