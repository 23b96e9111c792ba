// Package view holds the observers' in-memory mirror of the article list.
// The store stays authoritative; the cache is kept consistent by direct
// queue events and reconciled by the poll refresher.
package view

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/demon607/Summarization-Service-Build/internal/events"
	"github.com/demon607/Summarization-Service-Build/internal/model"
	"github.com/demon607/Summarization-Service-Build/internal/store"
)

type Cache struct {
	mu       sync.RWMutex
	articles map[int64]model.Article

	reloading atomic.Bool
}

func NewCache() *Cache {
	return &Cache{articles: make(map[int64]model.Article)}
}

// Reload replaces the mirror with the store's current contents. While a
// reload is in flight the refresher skips its ticks.
func (c *Cache) Reload(ctx context.Context, st store.ArticleStore) error {
	c.reloading.Store(true)
	defer c.reloading.Store(false)

	articles, err := st.ListAll(ctx, store.ListOptions{})
	if err != nil {
		return err
	}
	fresh := make(map[int64]model.Article, len(articles))
	for _, a := range articles {
		fresh[a.ID] = a
	}
	c.mu.Lock()
	c.articles = fresh
	c.mu.Unlock()
	return nil
}

// Reloading reports whether a bulk reload is in flight.
func (c *Cache) Reloading() bool {
	return c.reloading.Load()
}

func (c *Cache) Upsert(a model.Article) {
	c.mu.Lock()
	c.articles[a.ID] = a
	c.mu.Unlock()
}

func (c *Cache) Remove(id int64) {
	c.mu.Lock()
	delete(c.articles, id)
	c.mu.Unlock()
}

func (c *Cache) Get(id int64) (model.Article, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.articles[id]
	return a, ok
}

// InFlightIDs returns the ids currently believed to be pending or
// processing; these are the rows the refresher re-reads.
func (c *Cache) InFlightIDs() []int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var ids []int64
	for id, a := range c.articles {
		if !a.IsTerminal() {
			ids = append(ids, id)
		}
	}
	return ids
}

// ApplyEvent folds a status transition into the mirror. It reports whether
// the event changed anything, so callers can suppress republication.
func (c *Cache) ApplyEvent(ev events.ArticleEvent) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ev.Deleted {
		if _, ok := c.articles[ev.ID]; !ok {
			return false
		}
		delete(c.articles, ev.ID)
		return true
	}
	a, ok := c.articles[ev.ID]
	if !ok || a.Status == ev.Status {
		return false
	}
	a.Status = ev.Status
	a.Summary = ev.Summary
	a.ErrorMessage = ev.ErrorMessage
	c.articles[ev.ID] = a
	return true
}

// Follow applies hub events to the mirror until ctx is cancelled. This is
// the primary update path; the refresher is the backstop.
func (c *Cache) Follow(ctx context.Context, hub *events.Hub) error {
	ch, cancel := hub.Subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			c.ApplyEvent(ev)
		}
	}
}
