package feeds

// Path returns an extractor walking nested objects by key. Missing keys, JSON
// null and empty strings are absent.
func Path(keys ...string) Extractor {
	return func(r Record) (any, bool) {
		var current any = map[string]any(r)
		for _, key := range keys {
			obj, ok := current.(map[string]any)
			if !ok {
				return nil, false
			}
			if current, ok = obj[key]; !ok {
				return nil, false
			}
		}
		if isAbsent(current) {
			return nil, false
		}
		return current, true
	}
}

func isAbsent(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// DefaultFields knows the shapes of the Moltbook API, Hacker News items and
// Bluesky post views.
func DefaultFields() Fields {
	return Fields{
		ID: []Extractor{
			Path("id"),
			Path("_id"),
			Path("uri"),
		},
		Author: []Extractor{
			Path("author", "name"),
			Path("author_name"),
			Path("user", "name"),
			Path("author", "displayName"),
			Path("author", "handle"),
			Path("by"),
			Path("author"),
		},
		Avatar: []Extractor{
			Path("author", "avatar_url"),
			Path("avatar_url"),
			Path("author", "avatar"),
		},
		Content: []Extractor{
			Path("content"),
			Path("text"),
			Path("body"),
			Path("title"),
			Path("record", "text"),
		},
		Upvotes: []Extractor{
			Path("upvotes"),
			Path("score"),
			Path("likeCount"),
		},
		Comments: []Extractor{
			Path("comment_count"),
			Path("comments_count"),
			Path("descendants"),
			Path("replyCount"),
		},
		Timestamp: []Extractor{
			Path("created_at"),
			Path("createdAt"),
			Path("timestamp"),
			Path("indexedAt"),
			Path("time"),
		},
		SourceURL: []Extractor{
			Path("url"),
			Path("link"),
			Path("permalink"),
		},
	}
}
