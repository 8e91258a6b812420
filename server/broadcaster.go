package server

import (
	"sync"

	"devfeed/models"

	log "github.com/sirupsen/logrus"
)

// Broadcaster fans aggregator state changes out to SSE clients
type Broadcaster struct {
	sync.RWMutex
	stateClients      map[string]chan models.StateEvent
	statisticsClients map[string]chan models.StatisticsEvent
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		stateClients:      make(map[string]chan models.StateEvent),
		statisticsClients: make(map[string]chan models.StatisticsEvent),
	}
}

// StateChanged implements aggregator.Observer
func (b *Broadcaster) StateChanged(event models.StateEvent) {
	b.RLock()
	defer b.RUnlock()

	for id, client := range b.stateClients {
		select {
		case client <- event: // Non-blocking send
		default:
			log.Warnf("Client channel full, skipping state for client: %v", id)
		}
	}
}

// StatisticsChanged implements aggregator.Observer
func (b *Broadcaster) StatisticsChanged(event models.StatisticsEvent) {
	b.RLock()
	defer b.RUnlock()

	for id, client := range b.statisticsClients {
		select {
		case client <- event:
		default:
			log.Warnf("Client channel full, skipping stats for client: %v", id)
		}
	}
}

func (b *Broadcaster) AddClient(key string, stateClient chan models.StateEvent, statisticsClient chan models.StatisticsEvent) {
	b.Lock()
	defer b.Unlock()
	b.stateClients[key] = stateClient
	b.statisticsClients[key] = statisticsClient
	log.WithFields(log.Fields{
		"key":   key,
		"count": len(b.stateClients),
	}).Info("Adding client to broadcaster")
}

// RemoveClient closes and forgets the client's channels. Unknown keys are
// ignored, so removing twice is safe.
func (b *Broadcaster) RemoveClient(key string) {
	b.Lock()
	defer b.Unlock()

	if client, ok := b.stateClients[key]; ok {
		close(client)
		delete(b.stateClients, key)
	}
	if client, ok := b.statisticsClients[key]; ok {
		close(client)
		delete(b.statisticsClients, key)
	}

	log.WithFields(log.Fields{
		"key":   key,
		"count": len(b.stateClients),
	}).Info("Removed client from broadcaster")
}

// Clients is the number of connected SSE clients
func (b *Broadcaster) Clients() int {
	b.RLock()
	defer b.RUnlock()
	return len(b.stateClients)
}

// Shutdown disconnects every client
func (b *Broadcaster) Shutdown() {
	log.Info("Shutting down broadcaster")
	b.Lock()
	defer b.Unlock()
	for key, client := range b.stateClients {
		close(client)
		delete(b.stateClients, key)
	}
	for key, client := range b.statisticsClients {
		close(client)
		delete(b.statisticsClients, key)
	}
}
