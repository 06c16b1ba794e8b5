package events

import (
	"sync"

	"github.com/terra-clan/ballot-kiosk/internal/models"
)

// Hub fans ballot snapshots out to subscribers.
// A subscriber that falls behind loses intermediate snapshots but always
// receives the latest one on the next publish.
type Hub struct {
	mu     sync.Mutex
	subs   map[int]chan models.BallotSnapshot
	nextID int
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan models.BallotSnapshot)}
}

// Subscribe returns a snapshot channel and a function that detaches it
func (h *Hub) Subscribe() (<-chan models.BallotSnapshot, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan models.BallotSnapshot, 1)
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs, id)
			close(ch)
		})
	}
}

// Publish delivers snap to every subscriber without blocking
func (h *Hub) Publish(snap models.BallotSnapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subs {
		select {
		case ch <- snap:
		default:
			// drop the stale snapshot and replace it
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// Len returns the number of active subscribers
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
