package queue

import (
	"sync"
	"time"

	"github.com/codebuildervaibhav/video-captioning/internal/types"
)

const (
	subscriberBuffer = 16
	// terminalRetention is how long a finished job's last event stays queryable
	terminalRetention = 10 * time.Minute
)

// Hub fans progress events out to per-job subscribers.
// Slow subscribers miss intermediate events; the terminal event is always delivered.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan types.Progress]struct{}
	last map[string]types.Progress

	// Retention bounds how long Last reports a job after its terminal event
	Retention time.Duration
}

// NewHub creates an empty progress hub
func NewHub() *Hub {
	return &Hub{
		subs:      make(map[string]map[chan types.Progress]struct{}),
		last:      make(map[string]types.Progress),
		Retention: terminalRetention,
	}
}

// Subscribe returns a channel of events for jobID, primed with the latest known event,
// and a function that unsubscribes and closes the channel
func (h *Hub) Subscribe(jobID string) (<-chan types.Progress, func()) {
	ch := make(chan types.Progress, subscriberBuffer)

	h.mu.Lock()
	if h.subs[jobID] == nil {
		h.subs[jobID] = make(map[chan types.Progress]struct{})
	}
	h.subs[jobID][ch] = struct{}{}
	if p, ok := h.last[jobID]; ok {
		ch <- p
	}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[jobID], ch)
			if len(h.subs[jobID]) == 0 {
				delete(h.subs, jobID)
			}
			close(ch)
		})
	}
}

// Publish records p as the latest event for its job and delivers it without blocking
func (h *Hub) Publish(p types.Progress) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.last[p.JobID] = p
	if IsTerminal(p.Status) {
		time.AfterFunc(h.Retention, func() { h.forget(p) })
	}
	for ch := range h.subs[p.JobID] {
		select {
		case ch <- p:
		default:
			if !IsTerminal(p.Status) {
				continue
			}
			// make room for the final event
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- p:
			default:
			}
		}
	}
}

// forget drops the job's last event unless a newer one replaced it
func (h *Hub) forget(p types.Progress) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.last[p.JobID] == p {
		delete(h.last, p.JobID)
	}
}

// Last returns the most recent event published for jobID
func (h *Hub) Last(jobID string) (types.Progress, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	p, ok := h.last[jobID]
	return p, ok
}

// IsTerminal reports whether a job status is final
func IsTerminal(status string) bool {
	return status == types.StatusCompleted || status == types.StatusFailed
}
