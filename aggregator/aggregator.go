// Package aggregator runs fetch cycles over the source fallback chain and
// owns the feed state the presentation layer reads.
package aggregator

import (
	"context"
	"errors"
	"sync"
	"time"

	"devfeed/config"
	"devfeed/feeds"
	"devfeed/models"
	"devfeed/sources"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

// ExhaustedMessage is shown when a cycle found no posts anywhere
const ExhaustedMessage = "All feed sources are unreachable or returned no posts."

var (
	// ErrSourcesExhausted means every source in the chain came back empty
	ErrSourcesExhausted = errors.New("all sources exhausted")
	// ErrSuperseded means a newer cycle was started while this one ran, so
	// its result was dropped
	ErrSuperseded = errors.New("cycle superseded by a newer refresh")
)

var (
	cycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devfeed_cycles_total",
		Help: "Fetch cycles by result (content, error, superseded, cancelled)",
	}, []string{"result"})

	sourceAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devfeed_source_attempts_total",
		Help: "Source attempts within fetch cycles by source and result",
	}, []string{"source", "result"})
)

// Observer is notified after every state change. Calls happen outside the
// state lock.
type Observer interface {
	StateChanged(models.StateEvent)
	StatisticsChanged(models.StatisticsEvent)
}

// FeedState is everything a cycle commits plus the user's filter choice
type FeedState struct {
	Buckets      models.Buckets
	ActiveFilter string
	Stats        models.Stats
	Status       models.Status
	Message      string
	Source       string
	UpdatedAt    time.Time
}

type Aggregator struct {
	sources    []sources.Source
	categories feeds.Categories
	observers  []Observer

	mu         sync.RWMutex
	state      FeedState
	generation uint64
	// status and message to restore when a cycle is cancelled
	previous        models.Status
	previousMessage string
}

func New(chain []sources.Source, categories feeds.Categories, observers ...Observer) *Aggregator {
	return &Aggregator{
		sources:    chain,
		categories: categories,
		observers:  observers,
		previous:   models.StatusIdle,
		state: FeedState{
			Buckets:      models.Buckets{New: []models.Post{}, Top: []models.Post{}, Hot: []models.Post{}},
			ActiveFilter: config.AllCategory,
			Status:       models.StatusIdle,
		},
	}
}

// AddObserver registers an observer for subsequent state changes
func (a *Aggregator) AddObserver(o Observer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.observers = append(a.observers, o)
}

// Refresh runs one full cycle: sources are tried one after the other until
// one yields posts. Only that source's buckets are committed. When all
// sources are empty the previous buckets and stats are kept and
// ErrSourcesExhausted is returned. A cycle overtaken by a newer Refresh
// returns ErrSuperseded without touching the state, and a cancelled ctx
// returns ctx.Err() with the previous status restored.
func (a *Aggregator) Refresh(ctx context.Context) error {
	a.mu.Lock()
	a.generation++
	generation := a.generation
	if a.state.Status != models.StatusLoading {
		a.previous = a.state.Status
		a.previousMessage = a.state.Message
	}
	a.state.Status = models.StatusLoading
	a.state.Message = ""
	event := a.stateEventLocked()
	a.mu.Unlock()
	a.notifyState(event)

	logger := log.WithFields(log.Fields{
		"generation": generation,
	})
	logger.Info("Starting fetch cycle")

	for _, source := range a.sources {
		if err := ctx.Err(); err != nil {
			return a.cancel(generation, err)
		}

		buckets := source.Fetch(ctx)
		if buckets.Empty() {
			sourceAttempts.WithLabelValues(source.Name(), "empty").Inc()
			logger.WithFields(log.Fields{
				"source": source.Name(),
			}).Info("Source returned no posts, trying next")
			continue
		}

		sourceAttempts.WithLabelValues(source.Name(), "ok").Inc()
		return a.commit(generation, source.Name(), buckets)
	}

	// a context cancelled during the last source is not an exhausted chain
	if err := ctx.Err(); err != nil {
		return a.cancel(generation, err)
	}
	return a.fail(generation)
}

// cancel ends a cycle whose context is done. The state goes back to what it
// was before the cycle started loading.
func (a *Aggregator) cancel(generation uint64, err error) error {
	a.mu.Lock()
	if generation != a.generation {
		a.mu.Unlock()
		cycles.WithLabelValues("superseded").Inc()
		return ErrSuperseded
	}

	a.state.Status = a.previous
	a.state.Message = a.previousMessage
	event := a.stateEventLocked()
	a.mu.Unlock()

	cycles.WithLabelValues("cancelled").Inc()
	log.WithFields(log.Fields{
		"generation": generation,
	}).WithError(err).Warn("Fetch cycle cancelled")

	a.notifyState(event)
	return err
}

func (a *Aggregator) commit(generation uint64, source string, buckets models.Buckets) error {
	buckets = models.Buckets{
		New: nonNil(buckets.New),
		Top: nonNil(buckets.Top),
		Hot: nonNil(buckets.Hot),
	}
	stats := feeds.ComputeStats(buckets)

	a.mu.Lock()
	if generation != a.generation {
		a.mu.Unlock()
		cycles.WithLabelValues("superseded").Inc()
		log.WithFields(log.Fields{
			"generation": generation,
			"source":     source,
		}).Info("Dropping result of superseded cycle")
		return ErrSuperseded
	}

	a.state.Buckets = buckets
	a.state.Stats = stats
	a.state.Status = models.StatusContent
	a.state.Message = ""
	a.state.Source = source
	a.state.UpdatedAt = time.Now()
	event := a.stateEventLocked()
	a.mu.Unlock()

	cycles.WithLabelValues("content").Inc()
	log.WithFields(log.Fields{
		"generation": generation,
		"source":     source,
		"new":        len(buckets.New),
		"top":        len(buckets.Top),
		"hot":        len(buckets.Hot),
		"agents":     stats.Agents,
		"posts":      stats.Posts,
	}).Info("Fetch cycle committed")

	a.notifyState(event)
	a.notifyStatistics(models.StatisticsEvent{Stats: stats, Generation: generation})
	return nil
}

func (a *Aggregator) fail(generation uint64) error {
	a.mu.Lock()
	if generation != a.generation {
		a.mu.Unlock()
		cycles.WithLabelValues("superseded").Inc()
		return ErrSuperseded
	}

	a.state.Status = models.StatusError
	a.state.Message = ExhaustedMessage
	event := a.stateEventLocked()
	a.mu.Unlock()

	cycles.WithLabelValues("error").Inc()
	log.WithFields(log.Fields{
		"generation": generation,
		"sources":    len(a.sources),
	}).Error("Fetch cycle exhausted all sources")

	a.notifyState(event)
	return ErrSourcesExhausted
}

// SetFilter changes the active category. No network activity; observers are
// told so views can re-render.
func (a *Aggregator) SetFilter(category string) {
	a.mu.Lock()
	a.state.ActiveFilter = category
	event := a.stateEventLocked()
	a.mu.Unlock()

	a.notifyState(event)
}

// View returns the buckets filtered by the active category
func (a *Aggregator) View() models.FeedView {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.viewLocked(a.state.ActiveFilter)
}

// ViewWith filters by the given category without changing the active one
func (a *Aggregator) ViewWith(category string) models.FeedView {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.viewLocked(category)
}

func (a *Aggregator) viewLocked(category string) models.FeedView {
	return models.FeedView{
		Filter:  category,
		Buckets: a.categories.FilterBuckets(category, a.state.Buckets),
	}
}

func (a *Aggregator) Stats() models.Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state.Stats
}

// Snapshot describes the state machine without the posts
func (a *Aggregator) Snapshot() models.StateEvent {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.stateEventLocked()
}

// State returns a copy of the whole feed state
func (a *Aggregator) State() FeedState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// Post looks a selected post up across all buckets of the current cycle
func (a *Aggregator) Post(id string) (models.Post, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	for _, ranking := range models.Rankings {
		for _, post := range a.state.Buckets.Get(ranking) {
			if post.ID == id {
				return post, true
			}
		}
	}
	return models.Post{}, false
}

func (a *Aggregator) Categories() feeds.Categories {
	return a.categories
}

func (a *Aggregator) stateEventLocked() models.StateEvent {
	return models.StateEvent{
		Status:     a.state.Status,
		Message:    a.state.Message,
		Generation: a.generation,
		Source:     a.state.Source,
		Filter:     a.state.ActiveFilter,
		UpdatedAt:  a.state.UpdatedAt,
	}
}

func (a *Aggregator) observerList() []Observer {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]Observer(nil), a.observers...)
}

func (a *Aggregator) notifyState(event models.StateEvent) {
	for _, o := range a.observerList() {
		o.StateChanged(event)
	}
}

func (a *Aggregator) notifyStatistics(event models.StatisticsEvent) {
	for _, o := range a.observerList() {
		o.StatisticsChanged(event)
	}
}

func nonNil(posts []models.Post) []models.Post {
	if posts == nil {
		return []models.Post{}
	}
	return posts
}
