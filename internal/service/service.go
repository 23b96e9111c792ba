// Package service orchestrates the submission flow and the user-triggered
// article operations. Each stage failure maps to one user-facing message;
// internals only reach the logs.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/demon607/Summarization-Service-Build/internal/events"
	"github.com/demon607/Summarization-Service-Build/internal/fetch"
	"github.com/demon607/Summarization-Service-Build/internal/model"
	"github.com/demon607/Summarization-Service-Build/internal/ratelimit"
	"github.com/demon607/Summarization-Service-Build/internal/store"
	"github.com/demon607/Summarization-Service-Build/internal/textclean"
	"github.com/demon607/Summarization-Service-Build/internal/view"
)

// Waker signals the processing queue that pending work exists.
type Waker interface {
	Wake()
}

// Fetcher retrieves and extracts a document.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetch.Result, error)
}

// Validator checks a URL for SSRF safety.
type Validator interface {
	Validate(ctx context.Context, rawURL string) error
}

type Service struct {
	store     store.ArticleStore
	snapshots *store.SnapshotStore
	cache     *view.Cache
	hub       *events.Hub
	limiter   ratelimit.Limiter
	validator Validator
	fetcher   Fetcher
	queue     Waker
	log       *zap.Logger
	now       func() time.Time
}

func New(
	st store.ArticleStore,
	snapshots *store.SnapshotStore,
	cache *view.Cache,
	hub *events.Hub,
	limiter ratelimit.Limiter,
	validator Validator,
	fetcher Fetcher,
	queue Waker,
	log *zap.Logger,
) *Service {
	return &Service{
		store:     st,
		snapshots: snapshots,
		cache:     cache,
		hub:       hub,
		limiter:   limiter,
		validator: validator,
		fetcher:   fetcher,
		queue:     queue,
		log:       log,
		now:       time.Now,
	}
}

// Submit runs the full intake pipeline for a raw URL from an untrusted
// caller: gates, fetch, clean, quality checks, persist as pending, then
// wake the queue. The returned article has status pending.
func (s *Service) Submit(ctx context.Context, clientKey, rawURL string) (*model.Article, error) {
	url := strings.TrimSpace(rawURL)
	if url == "" {
		return nil, ErrURLRequired
	}
	if len(url) > model.MaxURLLength {
		return nil, ErrURLTooLong
	}

	allowed, err := s.limiter.Allow(ctx, clientKey)
	if err != nil {
		s.log.Error("rate limiter failure", zap.Error(err))
		// Fail open: a broken limiter backend should not take submissions
		// down with it.
		allowed = true
	}
	if !allowed {
		return nil, ErrRateLimited
	}

	if err := s.validator.Validate(ctx, url); err != nil {
		return nil, err
	}

	fetched, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		s.log.Warn("fetch failed", zap.String("url", url), zap.Error(err))
		return nil, err
	}

	content := textclean.Clean(fetched.Text)
	if err := textclean.CheckQuality(content); err != nil {
		return nil, err
	}

	title := deriveTitle(fetched.Title, content)

	id, err := s.store.Create(ctx, url, title, model.StatusPending, content, s.now().UTC())
	if err != nil {
		s.log.Error("failed to persist article", zap.String("url", url), zap.Error(err))
		return nil, err
	}

	if s.snapshots != nil {
		if err := s.snapshots.Save(id, fetched.Body); err != nil {
			// Best-effort: the cleaned content is already durable.
			s.log.Warn("failed to save snapshot", zap.Int64("article_id", id), zap.Error(err))
		}
	}

	article, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cache.Upsert(*article)
	s.hub.Publish(events.ArticleEvent{ID: article.ID, Status: article.Status})
	s.queue.Wake()

	s.log.Info("article submitted",
		zap.Int64("article_id", article.ID),
		zap.String("title", title))
	return article, nil
}

// deriveTitle cleans the extracted title, falls back to the first ten words
// of content, and caps the result.
func deriveTitle(raw, content string) string {
	title := textclean.Clean(raw)
	if title == "" {
		words := strings.Fields(content)
		if len(words) > 10 {
			words = words[:10]
		}
		title = strings.Join(words, " ")
	}
	if len(title) > model.MaxTitleLength {
		title = title[:model.MaxTitleLength]
	}
	return title
}

// Get returns one article or ErrNotFound.
func (s *Service) Get(ctx context.Context, id int64) (*model.Article, error) {
	article, err := s.store.GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	return article, err
}

// List returns articles filtered and ordered per opts.
func (s *Service) List(ctx context.Context, opts store.ListOptions) ([]model.Article, error) {
	return s.store.ListAll(ctx, opts)
}

// Snapshot returns the raw fetched document for an article.
func (s *Service) Snapshot(ctx context.Context, id int64) ([]byte, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	raw, err := s.snapshots.Get(id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	return raw, err
}

// Retry moves a failed article back to pending and wakes the queue. An
// unknown id, or one not in failed state, is a graceful no-op.
func (s *Service) Retry(ctx context.Context, id int64) error {
	affected, err := s.store.ResetForRetry(ctx, id)
	if err != nil {
		s.log.Error("retry failed", zap.Int64("article_id", id), zap.Error(err))
		return err
	}
	if affected == 0 {
		s.log.Info("retry no-op", zap.Int64("article_id", id))
		return nil
	}
	if article, err := s.store.GetByID(ctx, id); err == nil {
		s.cache.Upsert(*article)
	}
	s.hub.Publish(events.ArticleEvent{ID: id, Status: model.StatusPending})
	s.queue.Wake()
	s.log.Info("article queued for retry", zap.Int64("article_id", id))
	return nil
}

// Delete removes an article permanently. Idempotent: deleting an unknown id
// is not an error, and an article mid-processing is simply orphaned (the
// worker's final write will find zero rows and move on).
func (s *Service) Delete(ctx context.Context, id int64) error {
	affected, err := s.store.Delete(ctx, id)
	if err != nil {
		s.log.Error("delete failed", zap.Int64("article_id", id), zap.Error(err))
		return err
	}
	if s.snapshots != nil {
		if err := s.snapshots.Delete(id); err != nil {
			s.log.Warn("failed to delete snapshot", zap.Int64("article_id", id), zap.Error(err))
		}
	}
	s.cache.Remove(id)
	if affected > 0 {
		s.hub.Publish(events.ArticleEvent{ID: id, Deleted: true})
		s.log.Info("article deleted", zap.Int64("article_id", id))
	}
	return nil
}
