// Package refresh reconciles the observers' view with the store on a fixed
// interval. Live queue events are the primary update path; this pass
// catches anything an observer missed.
package refresh

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/demon607/Summarization-Service-Build/internal/events"
	"github.com/demon607/Summarization-Service-Build/internal/store"
	"github.com/demon607/Summarization-Service-Build/internal/view"
)

type Refresher struct {
	cache    *view.Cache
	store    store.ArticleStore
	hub      *events.Hub
	interval time.Duration
	log      *zap.Logger
}

func New(cache *view.Cache, st store.ArticleStore, hub *events.Hub, interval time.Duration, log *zap.Logger) *Refresher {
	return &Refresher{
		cache:    cache,
		store:    st,
		hub:      hub,
		interval: interval,
		log:      log,
	}
}

// Run ticks until ctx is cancelled.
func (r *Refresher) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick performs one reconciliation pass: batch-read the rows believed to be
// in flight, fold status differences into the cache, and republish them.
func (r *Refresher) Tick(ctx context.Context) {
	if r.cache.Reloading() {
		return
	}
	ids := r.cache.InFlightIDs()
	if len(ids) == 0 {
		return
	}

	articles, err := r.store.ListByIDs(ctx, ids)
	if err != nil {
		r.log.Error("refresh batch read failed", zap.Error(err))
		return
	}

	for _, current := range articles {
		cached, ok := r.cache.Get(current.ID)
		if !ok || cached.Status == current.Status {
			continue
		}
		r.cache.Upsert(current)
		r.hub.Publish(events.ArticleEvent{
			ID:           current.ID,
			Status:       current.Status,
			Summary:      current.Summary,
			ErrorMessage: current.ErrorMessage,
		})
	}
}
