package queue

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/demon607/Summarization-Service-Build/internal/events"
	"github.com/demon607/Summarization-Service-Build/internal/model"
	"github.com/demon607/Summarization-Service-Build/internal/store"
)

// fakeSummarizer lets each test script the summarization step and observe
// the store while an article is mid-processing.
type fakeSummarizer struct {
	mu    sync.Mutex
	calls int
	fn    func(content string) (string, error)
}

func (f *fakeSummarizer) Summarize(content string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(content)
	}
	return "A perfectly adequate summary of the article in question.", nil
}

func (f *fakeSummarizer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.OpenSQLite(filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func seedPending(t *testing.T, st *store.SQLiteStore, url string, createdAt time.Time) int64 {
	t.Helper()
	id, err := st.Create(context.Background(), url, "Title", model.StatusPending,
		"Some cleaned content. With sentences. For "+url, createdAt)
	require.NoError(t, err)
	return id
}

func startQueue(t *testing.T, q *Queue) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go q.Run(ctx)
}

func countByStatus(t *testing.T, st *store.SQLiteStore, status model.Status) int {
	t.Helper()
	articles, err := st.ListAll(context.Background(), store.ListOptions{Status: status})
	require.NoError(t, err)
	return len(articles)
}

func TestQueue_ProcessesAllPendingInOrder(t *testing.T) {
	st := newTestStore(t)
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		seedPending(t, st, "http://example.com/"+string(rune('a'+i)), base.Add(time.Duration(i)*time.Minute))
	}

	var processedURLs []string
	var mu sync.Mutex
	summarizer := &fakeSummarizer{fn: func(content string) (string, error) {
		// Only one article may be processing at any instant.
		processing, err := st.ListAll(context.Background(),
			store.ListOptions{Status: model.StatusProcessing})
		if !assert.NoError(t, err) || !assert.Len(t, processing, 1, "single-flight invariant violated") {
			return "", errors.New("invariant check failed")
		}

		mu.Lock()
		processedURLs = append(processedURLs, processing[0].URL)
		mu.Unlock()
		return "The summary text for this particular article right here.", nil
	}}

	q := New(st, summarizer, events.NewHub(), zap.NewNop())
	startQueue(t, q)
	q.Wake()

	assert.Eventually(t, func() bool {
		return countByStatus(t, st, model.StatusCompleted) == 3
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"http://example.com/a", "http://example.com/b", "http://example.com/c"},
		processedURLs, "articles must be claimed oldest first")

	articles, err := st.ListAll(context.Background(), store.ListOptions{})
	require.NoError(t, err)
	for _, a := range articles {
		require.NotNil(t, a.Summary)
		assert.Nil(t, a.ErrorMessage)
	}
}

func TestQueue_FailureDoesNotStopTheLoop(t *testing.T) {
	st := newTestStore(t)
	base := time.Now().UTC()
	bad := seedPending(t, st, "http://example.com/bad", base)
	good := seedPending(t, st, "http://example.com/good", base.Add(time.Minute))

	longDetail := strings.Repeat("x", 300)
	summarizer := &fakeSummarizer{fn: func(content string) (string, error) {
		if strings.Contains(content, "bad") {
			return "", errors.New(longDetail)
		}
		return "Everything went fine for this one, summary produced as expected.", nil
	}}

	q := New(st, summarizer, events.NewHub(), zap.NewNop())
	startQueue(t, q)
	q.Wake()

	assert.Eventually(t, func() bool {
		return countByStatus(t, st, model.StatusCompleted) == 1 &&
			countByStatus(t, st, model.StatusFailed) == 1
	}, 2*time.Second, 10*time.Millisecond)

	failed, err := st.GetByID(context.Background(), bad)
	require.NoError(t, err)
	require.NotNil(t, failed.ErrorMessage)
	assert.True(t, strings.HasPrefix(*failed.ErrorMessage, "Summarization failed: "))
	assert.LessOrEqual(t, len(*failed.ErrorMessage), len("Summarization failed: ")+100,
		"failure detail must be truncated")
	assert.Nil(t, failed.Summary)

	completed, err := st.GetByID(context.Background(), good)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, completed.Status)
}

func TestQueue_DeleteMidProcessingIsTolerated(t *testing.T) {
	st := newTestStore(t)
	base := time.Now().UTC()
	doomed := seedPending(t, st, "http://example.com/doomed", base)
	survivor := seedPending(t, st, "http://example.com/survivor", base.Add(time.Minute))

	summarizer := &fakeSummarizer{fn: func(content string) (string, error) {
		if strings.Contains(content, "doomed") {
			// The user deletes the article while the worker holds it.
			_, err := st.Delete(context.Background(), doomed)
			assert.NoError(t, err)
		}
		return "Summary that may or may not have a row left to land in.", nil
	}}

	q := New(st, summarizer, events.NewHub(), zap.NewNop())
	startQueue(t, q)
	q.Wake()

	assert.Eventually(t, func() bool {
		return countByStatus(t, st, model.StatusCompleted) == 1
	}, 2*time.Second, 10*time.Millisecond)

	_, err := st.GetByID(context.Background(), doomed)
	assert.ErrorIs(t, err, store.ErrNotFound)

	done, err := st.GetByID(context.Background(), survivor)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, done.Status)
}

func TestQueue_WakeCollapsesConcurrentSignals(t *testing.T) {
	st := newTestStore(t)
	seedPending(t, st, "http://example.com/solo", time.Now().UTC())

	summarizer := &fakeSummarizer{}
	q := New(st, summarizer, events.NewHub(), zap.NewNop())
	startQueue(t, q)

	for i := 0; i < 10; i++ {
		q.Wake()
	}

	assert.Eventually(t, func() bool {
		return countByStatus(t, st, model.StatusCompleted) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Give any spurious extra pass a moment, then confirm one invocation.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, summarizer.callCount())
	assert.False(t, q.Busy())
}

func TestQueue_RetryRunsArticleAgain(t *testing.T) {
	st := newTestStore(t)
	id := seedPending(t, st, "http://example.com/flaky", time.Now().UTC())

	var attempts int
	var mu sync.Mutex
	summarizer := &fakeSummarizer{fn: func(content string) (string, error) {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		if n == 1 {
			return "", errors.New("transient failure")
		}
		return "Second attempt produced a clean usable summary for the article.", nil
	}}

	q := New(st, summarizer, events.NewHub(), zap.NewNop())
	startQueue(t, q)
	q.Wake()

	assert.Eventually(t, func() bool {
		return countByStatus(t, st, model.StatusFailed) == 1
	}, 2*time.Second, 10*time.Millisecond)

	affected, err := st.ResetForRetry(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, int64(1), affected)
	q.Wake()

	assert.Eventually(t, func() bool {
		return countByStatus(t, st, model.StatusCompleted) == 1
	}, 2*time.Second, 10*time.Millisecond)

	article, err := st.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, article.Status)
	assert.Nil(t, article.ErrorMessage)
}

func TestQueue_PublishesTransitions(t *testing.T) {
	st := newTestStore(t)
	hub := events.NewHub()
	id := seedPending(t, st, "http://example.com/observed", time.Now().UTC())

	ch, cancel := hub.Subscribe()
	defer cancel()

	q := New(st, &fakeSummarizer{}, hub, zap.NewNop())
	startQueue(t, q)
	q.Wake()

	var seen []model.Status
	deadline := time.After(2 * time.Second)
	for len(seen) < 2 {
		select {
		case ev := <-ch:
			require.Equal(t, id, ev.ID)
			seen = append(seen, ev.Status)
		case <-deadline:
			t.Fatalf("timed out waiting for events, saw %v", seen)
		}
	}
	assert.Equal(t, []model.Status{model.StatusProcessing, model.StatusCompleted}, seen)
}

func TestQueue_SummarizerPanicMarksFailed(t *testing.T) {
	st := newTestStore(t)
	id := seedPending(t, st, "http://example.com/panicky", time.Now().UTC())

	summarizer := &fakeSummarizer{fn: func(string) (string, error) {
		panic("summarizer exploded")
	}}

	q := New(st, summarizer, events.NewHub(), zap.NewNop())
	startQueue(t, q)
	q.Wake()

	assert.Eventually(t, func() bool {
		return countByStatus(t, st, model.StatusFailed) == 1
	}, 2*time.Second, 10*time.Millisecond)

	article, err := st.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, article.ErrorMessage)
	assert.Contains(t, *article.ErrorMessage, "panic")
}
