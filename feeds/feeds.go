package feeds

import (
	"encoding/json"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"devfeed/models"

	"github.com/araddon/dateparse"
	"github.com/google/uuid"
)

// AnonymousAuthor is used when a record names no author at all
const AnonymousAuthor = "Anonymous"

// Normalizer maps raw provider records onto models.Post. It never fails:
// every field falls back to a default when no candidate matches.
type Normalizer struct {
	Fields         Fields
	FallbackAvatar string

	// Now and NewID are swapped out in tests
	Now   func() time.Time
	NewID func() string
}

func NewNormalizer(fallbackAvatar string) *Normalizer {
	return &Normalizer{
		Fields:         DefaultFields(),
		FallbackAvatar: fallbackAvatar,
		Now:            time.Now,
		NewID:          func() string { return uuid.New().String() },
	}
}

// NormalizeAll normalizes every record of an unwrapped list
func (n *Normalizer) NormalizeAll(raw []any) []models.Post {
	posts := make([]models.Post, 0, len(raw))
	for _, r := range raw {
		posts = append(posts, n.Normalize(r))
	}
	return posts
}

// Normalize maps one raw record. Anything that is not a JSON object is
// treated as an empty record.
func (n *Normalizer) Normalize(raw any) models.Post {
	record, _ := raw.(map[string]any)
	r := Record(record)

	id, ok := firstString(r, n.Fields.ID)
	if !ok {
		id = n.NewID()
	}

	author, ok := firstString(r, n.Fields.Author)
	if !ok {
		author = AnonymousAuthor
	}

	avatar, ok := firstString(r, n.Fields.Avatar)
	if !ok {
		avatar = n.placeholderAvatar(author)
	}

	content, _ := firstString(r, n.Fields.Content)
	sourceURL, _ := firstString(r, n.Fields.SourceURL)

	upvotes, _ := first(r, n.Fields.Upvotes)
	comments, _ := first(r, n.Fields.Comments)

	return models.Post{
		ID:        id,
		Author:    author,
		AvatarURL: avatar,
		Content:   content,
		Upvotes:   CoerceInt(upvotes),
		Comments:  CoerceInt(comments),
		Timestamp: n.timestamp(r),
		SourceURL: sourceURL,
	}
}

func (n *Normalizer) placeholderAvatar(author string) string {
	return n.FallbackAvatar + "?seed=" + url.QueryEscape(author)
}

func (n *Normalizer) timestamp(r Record) string {
	if v, ok := first(r, n.Fields.Timestamp); ok {
		if t, ok := parseTime(v); ok {
			return t.UTC().Format(time.RFC3339)
		}
	}
	return n.Now().UTC().Format(time.RFC3339)
}

func first(r Record, extractors []Extractor) (any, bool) {
	for _, extract := range extractors {
		if v, ok := extract(r); ok {
			return v, true
		}
	}
	return nil, false
}

// firstString skips candidates that are objects or lists
func firstString(r Record, extractors []Extractor) (string, bool) {
	for _, extract := range extractors {
		v, ok := extract(r)
		if !ok {
			continue
		}
		if s, ok := scalarString(v); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	}
	return "", false
}

// CoerceInt converts a numeric-looking value into a non-negative int the way
// parseInt does: numbers are truncated, strings parse their leading integer,
// and everything else is 0.
func CoerceInt(v any) int {
	var n int
	switch t := v.(type) {
	case json.Number:
		n = numberToInt(t)
	case string:
		n = parseLeadingInt(t)
	case float64:
		n = clampInt(math.Trunc(t))
	case int:
		n = t
	case int64:
		n = int(t)
	}
	if n < 0 {
		return 0
	}
	return n
}

// numberToInt handles decoded JSON numbers, exponent forms such as 1.5e3
// included
func numberToInt(num json.Number) int {
	if i, err := num.Int64(); err == nil {
		return clampInt(float64(i))
	}
	f, err := num.Float64()
	if err != nil || math.IsNaN(f) {
		return 0
	}
	return clampInt(math.Trunc(f))
}

func clampInt(f float64) int {
	switch {
	case f >= math.MaxInt:
		return math.MaxInt
	case f <= math.MinInt:
		return math.MinInt
	}
	return int(f)
}

func parseLeadingInt(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}

// parseTime accepts date strings in any common layout and numbers as unix
// seconds (or milliseconds when too large to be seconds)
func parseTime(v any) (time.Time, bool) {
	var seconds float64
	switch t := v.(type) {
	case string:
		parsed, err := dateparse.ParseAny(t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return time.Time{}, false
		}
		seconds = f
	case float64:
		seconds = t
	case int64:
		seconds = float64(t)
	case int:
		seconds = float64(t)
	default:
		return time.Time{}, false
	}

	if seconds <= 0 {
		return time.Time{}, false
	}
	if seconds > 1e12 {
		return time.UnixMilli(int64(seconds)), true
	}
	return time.Unix(int64(seconds), 0), true
}
