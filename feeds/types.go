// Package feeds turns provider payloads into canonical posts and derives what
// the presentation layer shows from them: unwrapping, normalization, keyword
// filtering and aggregate statistics.
package feeds

// Record is one raw post-like object as decoded from a provider's JSON
type Record map[string]any

// Extractor pulls one candidate value out of a raw record. It reports false
// when the value is absent.
type Extractor func(Record) (any, bool)

// Fields holds the ordered extractor list for every Post field. The first
// extractor yielding a usable value wins.
type Fields struct {
	ID        []Extractor
	Author    []Extractor
	Avatar    []Extractor
	Content   []Extractor
	Upvotes   []Extractor
	Comments  []Extractor
	Timestamp []Extractor
	SourceURL []Extractor
}
