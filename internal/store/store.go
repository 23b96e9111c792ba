package store

import (
	"context"
	"errors"
	"time"

	"github.com/demon607/Summarization-Service-Build/internal/model"
)

var (
	// ErrNotFound means the requested article id does not exist.
	ErrNotFound = errors.New("article not found")
	// ErrNoPending means no pending article is waiting to be claimed.
	ErrNoPending = errors.New("no pending article")
)

// Sort orders for ListAll.
const (
	SortDateDesc = "date_desc"
	SortDateAsc  = "date_asc"
	SortStatus   = "status"
)

// ListOptions filters and orders ListAll results.
type ListOptions struct {
	Status model.Status // empty means all
	Query  string       // substring match on title or url
	Sort   string       // SortDateDesc (default), SortDateAsc, SortStatus
}

// ArticleStore is the durable keyed store of Article records. It is the
// single source of truth; in-memory views are best-effort mirrors.
type ArticleStore interface {
	Create(ctx context.Context, url, title string, status model.Status, content string, createdAt time.Time) (int64, error)
	GetByID(ctx context.Context, id int64) (*model.Article, error)
	ListAll(ctx context.Context, opts ListOptions) ([]model.Article, error)
	ListByIDs(ctx context.Context, ids []int64) ([]model.Article, error)

	// ClaimOldestPending atomically selects the oldest pending article and
	// marks it processing, so two workers can never claim the same row.
	// Returns ErrNoPending when the queue is empty.
	ClaimOldestPending(ctx context.Context) (*model.Article, error)

	// UpdateStatus writes a status transition and its payload (summary for
	// completed, error message for failed). The returned count is zero when
	// the article was deleted mid-flight; callers tolerate that.
	UpdateStatus(ctx context.Context, id int64, status model.Status, summary, errorMessage *string) (int64, error)

	// ResetForRetry moves a failed article back to pending and clears its
	// error message. Zero rows means the id is gone or not failed.
	ResetForRetry(ctx context.Context, id int64) (int64, error)

	// ResetStuckProcessing sweeps processing rows back to pending. Run at
	// startup so articles orphaned by a crash are retried, not stuck.
	ResetStuckProcessing(ctx context.Context) (int64, error)

	Delete(ctx context.Context, id int64) (int64, error)
}
