package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/demon607/Summarization-Service-Build/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := OpenSQLite(filepath.Join(t.TempDir(), "articles.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func seedArticle(t *testing.T, st *SQLiteStore, url string, status model.Status, createdAt time.Time) int64 {
	t.Helper()
	id, err := st.Create(context.Background(), url, "Title for "+url, status,
		"Cleaned content for "+url, createdAt)
	require.NoError(t, err)
	return id
}

func TestSQLiteStore_CreateAndGet(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	id := seedArticle(t, st, "http://example.com/a", model.StatusPending, created)

	article, err := st.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, article.ID)
	assert.Equal(t, "http://example.com/a", article.URL)
	assert.Equal(t, model.StatusPending, article.Status)
	assert.Equal(t, created, article.CreatedAt)
	assert.Nil(t, article.Summary)
	assert.Nil(t, article.ErrorMessage)
}

func TestSQLiteStore_GetMissing(t *testing.T) {
	st := newTestStore(t)
	_, err := st.GetByID(context.Background(), 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_ListAllOrdering(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	first := seedArticle(t, st, "http://example.com/1", model.StatusCompleted, base)
	second := seedArticle(t, st, "http://example.com/2", model.StatusPending, base.Add(time.Minute))
	third := seedArticle(t, st, "http://example.com/3", model.StatusFailed, base.Add(2*time.Minute))

	t.Run("default newest first", func(t *testing.T) {
		articles, err := st.ListAll(ctx, ListOptions{})
		require.NoError(t, err)
		require.Len(t, articles, 3)
		assert.Equal(t, []int64{third, second, first},
			[]int64{articles[0].ID, articles[1].ID, articles[2].ID})
	})

	t.Run("date ascending", func(t *testing.T) {
		articles, err := st.ListAll(ctx, ListOptions{Sort: SortDateAsc})
		require.NoError(t, err)
		require.Len(t, articles, 3)
		assert.Equal(t, first, articles[0].ID)
	})

	t.Run("status filter", func(t *testing.T) {
		articles, err := st.ListAll(ctx, ListOptions{Status: model.StatusPending})
		require.NoError(t, err)
		require.Len(t, articles, 1)
		assert.Equal(t, second, articles[0].ID)
	})

	t.Run("substring query", func(t *testing.T) {
		articles, err := st.ListAll(ctx, ListOptions{Query: "example.com/2"})
		require.NoError(t, err)
		require.Len(t, articles, 1)
		assert.Equal(t, second, articles[0].ID)
	})
}

func TestSQLiteStore_ListByIDs(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC()

	a := seedArticle(t, st, "http://example.com/a", model.StatusPending, base)
	seedArticle(t, st, "http://example.com/b", model.StatusPending, base)
	c := seedArticle(t, st, "http://example.com/c", model.StatusPending, base)

	articles, err := st.ListByIDs(ctx, []int64{a, c, 9001})
	require.NoError(t, err)
	assert.Len(t, articles, 2)

	articles, err = st.ListByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, articles)
}

func TestSQLiteStore_ClaimOldestPending(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	older := seedArticle(t, st, "http://example.com/old", model.StatusPending, base)
	seedArticle(t, st, "http://example.com/new", model.StatusPending, base.Add(time.Hour))

	claimed, err := st.ClaimOldestPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, older, claimed.ID)
	assert.Equal(t, model.StatusProcessing, claimed.Status)

	// The claim is durable, not just in the returned copy.
	stored, err := st.GetByID(ctx, older)
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessing, stored.Status)

	// Second claim gets the next article; third finds the queue empty.
	_, err = st.ClaimOldestPending(ctx)
	require.NoError(t, err)
	_, err = st.ClaimOldestPending(ctx)
	assert.ErrorIs(t, err, ErrNoPending)
}

func TestSQLiteStore_UpdateStatus(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	id := seedArticle(t, st, "http://example.com/a", model.StatusProcessing, time.Now().UTC())

	summary := "A short but quite meaningful summary of the article."
	affected, err := st.UpdateStatus(ctx, id, model.StatusCompleted, &summary, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	article, err := st.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, article.Status)
	require.NotNil(t, article.Summary)
	assert.Equal(t, summary, *article.Summary)
	assert.Nil(t, article.ErrorMessage)
}

func TestSQLiteStore_UpdateStatusMissingRow(t *testing.T) {
	st := newTestStore(t)
	summary := "orphaned result"
	affected, err := st.UpdateStatus(context.Background(), 9001, model.StatusCompleted, &summary, nil)
	require.NoError(t, err)
	assert.Zero(t, affected, "updating a deleted article must be a silent no-op")
}

func TestSQLiteStore_ResetForRetry(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	id := seedArticle(t, st, "http://example.com/a", model.StatusProcessing, time.Now().UTC())
	errMsg := "Summarization failed: boom"
	_, err := st.UpdateStatus(ctx, id, model.StatusFailed, nil, &errMsg)
	require.NoError(t, err)

	affected, err := st.ResetForRetry(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	article, err := st.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, article.Status)
	assert.Nil(t, article.ErrorMessage, "retry must clear the error message")

	// Only failed articles reset; a pending one is left alone.
	affected, err = st.ResetForRetry(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, affected)

	// Unknown ids are a graceful no-op.
	affected, err = st.ResetForRetry(ctx, 9001)
	require.NoError(t, err)
	assert.Zero(t, affected)
}

func TestSQLiteStore_ResetStuckProcessing(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	stuck := seedArticle(t, st, "http://example.com/stuck", model.StatusProcessing, now)
	done := seedArticle(t, st, "http://example.com/done", model.StatusCompleted, now)

	swept, err := st.ResetStuckProcessing(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), swept)

	article, err := st.GetByID(ctx, stuck)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, article.Status)

	article, err = st.GetByID(ctx, done)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, article.Status)
}

func TestSQLiteStore_DeleteIdempotent(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	id := seedArticle(t, st, "http://example.com/a", model.StatusPending, time.Now().UTC())

	affected, err := st.Delete(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	affected, err = st.Delete(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, affected, "deleting a missing article is not an error")

	_, err = st.GetByID(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
}
