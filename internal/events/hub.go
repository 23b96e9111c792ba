// Package events fans out article status transitions to observers (SSE
// streams, the view cache). Delivery is best-effort: a subscriber that
// cannot keep up loses events, and the poll refresher reconciles later.
package events

import (
	"sync"

	"github.com/demon607/Summarization-Service-Build/internal/model"
)

// ArticleEvent describes a status transition for one article.
type ArticleEvent struct {
	ID           int64        `json:"id"`
	Status       model.Status `json:"status"`
	Summary      *string      `json:"summary,omitempty"`
	ErrorMessage *string      `json:"error_message,omitempty"`
	Deleted      bool         `json:"deleted,omitempty"`
}

const subscriberBuffer = 16

type Hub struct {
	mu   sync.Mutex
	subs map[chan ArticleEvent]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan ArticleEvent]struct{})}
}

// Subscribe returns a buffered event channel and a cancel function that
// must be called when the observer goes away.
func (h *Hub) Subscribe() (<-chan ArticleEvent, func()) {
	ch := make(chan ArticleEvent, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber without blocking; full
// subscriber buffers drop the event.
func (h *Hub) Publish(ev ArticleEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
