package models

import "time"

// Post is the canonical post record every provider shape is normalized into
type Post struct {
	ID        string `json:"id"`
	Author    string `json:"author"`
	AvatarURL string `json:"avatarUrl"`
	Content   string `json:"content"`
	Upvotes   int    `json:"upvotes"`
	Comments  int    `json:"comments"`
	Timestamp string `json:"timestamp"`
	SourceURL string `json:"sourceUrl,omitempty"`
}

// Ranking names one of the three sections a post list is shown in
type Ranking string

const (
	RankingNew Ranking = "new"
	RankingTop Ranking = "top"
	RankingHot Ranking = "hot"
)

// Rankings in display order
var Rankings = []Ranking{RankingNew, RankingTop, RankingHot}

// Buckets holds the three ranked post lists produced by one source in one cycle
type Buckets struct {
	New []Post `json:"new"`
	Top []Post `json:"top"`
	Hot []Post `json:"hot"`
}

// Get returns the bucket for a ranking
func (b Buckets) Get(r Ranking) []Post {
	switch r {
	case RankingNew:
		return b.New
	case RankingTop:
		return b.Top
	case RankingHot:
		return b.Hot
	}
	return nil
}

// Set replaces the bucket for a ranking
func (b *Buckets) Set(r Ranking, posts []Post) {
	switch r {
	case RankingNew:
		b.New = posts
	case RankingTop:
		b.Top = posts
	case RankingHot:
		b.Hot = posts
	}
}

// Len is the combined length of all buckets, duplicates included
func (b Buckets) Len() int {
	return len(b.New) + len(b.Top) + len(b.Hot)
}

func (b Buckets) Empty() bool {
	return b.Len() == 0
}

// Stats are the aggregate counters shown above the sections
type Stats struct {
	Agents   int `json:"agents"`
	Posts    int `json:"posts"`
	NewCount int `json:"newCount"`
}

// Status of the fetch cycle state machine
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusContent Status = "content"
	StatusError   Status = "error"
)

// FeedView is what the presentation layer renders: the buckets with the
// active filter applied
type FeedView struct {
	Filter string `json:"filter"`
	Buckets
}

// StateEvent is fired whenever the feed state changes
type StateEvent struct {
	Status     Status    `json:"status"`
	Message    string    `json:"message,omitempty"`
	Generation uint64    `json:"generation"`
	Source     string    `json:"source,omitempty"`
	Filter     string    `json:"filter"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// StatisticsEvent is fired after a successful cycle recomputed the stats
type StatisticsEvent struct {
	Stats
	Generation uint64 `json:"generation"`
}
