// Package queue drives pending articles through summarization. One logical
// worker runs at a time: the state machine lives in the store, the queue
// only coordinates, so a restart loses nothing.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/demon607/Summarization-Service-Build/internal/events"
	"github.com/demon607/Summarization-Service-Build/internal/model"
	"github.com/demon607/Summarization-Service-Build/internal/store"
	"github.com/demon607/Summarization-Service-Build/internal/summarize"
)

// maxErrorMessageLen bounds the persisted failure detail.
const maxErrorMessageLen = 100

type Queue struct {
	store      store.ArticleStore
	summarizer summarize.Summarizer
	hub        *events.Hub
	log        *zap.Logger

	wake chan struct{}
	busy atomic.Bool
}

func New(st store.ArticleStore, summarizer summarize.Summarizer, hub *events.Hub, log *zap.Logger) *Queue {
	return &Queue{
		store:      st,
		summarizer: summarizer,
		hub:        hub,
		log:        log,
		wake:       make(chan struct{}, 1),
	}
}

// Wake signals the worker that pending work may exist. Signals collapse:
// waking an already-signaled or already-draining queue is a no-op.
func (q *Queue) Wake() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Busy reports whether a worker pass is currently draining the queue.
func (q *Queue) Busy() bool {
	return q.busy.Load()
}

// Run hosts the worker until ctx is cancelled. The worker sleeps between
// wake signals rather than polling; a wake that arrives mid-drain queues
// one more pass, so work submitted during a drain is never missed.
func (q *Queue) Run(ctx context.Context) error {
	q.log.Info("processing queue started")
	for {
		select {
		case <-ctx.Done():
			q.log.Info("processing queue stopped")
			return ctx.Err()
		case <-q.wake:
			q.drain(ctx)
		}
	}
}

// drain claims and processes pending articles oldest-first until none
// remain. The busy flag makes re-entrant activation a no-op should drain
// ever be reachable from two paths.
func (q *Queue) drain(ctx context.Context) {
	if !q.busy.CompareAndSwap(false, true) {
		return
	}
	defer q.busy.Store(false)

	for ctx.Err() == nil {
		article, err := q.store.ClaimOldestPending(ctx)
		if errors.Is(err, store.ErrNoPending) {
			return
		}
		if err != nil {
			q.log.Error("failed to claim pending article", zap.Error(err))
			return
		}
		q.hub.Publish(events.ArticleEvent{ID: article.ID, Status: model.StatusProcessing})
		q.process(ctx, article)
	}
}

// process summarizes one claimed article and persists the terminal status.
// Errors are confined to the article: a bad article never stops the loop.
func (q *Queue) process(ctx context.Context, article *model.Article) {
	log := q.log.With(zap.Int64("article_id", article.ID))
	log.Info("processing article", zap.String("url", article.URL))

	summary, err := q.summarize(article.Content)
	if err != nil {
		q.fail(ctx, article, log, err)
		return
	}

	affected, err := q.store.UpdateStatus(ctx, article.ID, model.StatusCompleted, &summary, nil)
	if err != nil {
		// The article stays in processing: degraded but recoverable via the
		// startup sweep or a manual retry.
		log.Error("failed to persist completed status", zap.Error(err))
		return
	}
	if affected == 0 {
		log.Info("article deleted mid-processing, dropping result")
		return
	}
	q.hub.Publish(events.ArticleEvent{ID: article.ID, Status: model.StatusCompleted, Summary: &summary})
	log.Info("article completed")
}

// summarize invokes the summarizer, converting panics and empty results
// into errors.
func (q *Queue) summarize(content string) (summary string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("summarizer panic: %v", r)
		}
	}()
	summary, err = q.summarizer.Summarize(content)
	if err != nil {
		return "", err
	}
	if summary == "" {
		return "", errors.New("summarization returned empty result")
	}
	return summary, nil
}

func (q *Queue) fail(ctx context.Context, article *model.Article, log *zap.Logger, cause error) {
	log.Warn("summarization failed", zap.Error(cause))
	msg := "Summarization failed: " + truncate(cause.Error(), maxErrorMessageLen)
	affected, err := q.store.UpdateStatus(ctx, article.ID, model.StatusFailed, nil, &msg)
	if err != nil {
		log.Error("failed to persist failed status", zap.Error(err))
		return
	}
	if affected == 0 {
		log.Info("article deleted mid-processing, dropping failure")
		return
	}
	q.hub.Publish(events.ArticleEvent{ID: article.ID, Status: model.StatusFailed, ErrorMessage: &msg})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
