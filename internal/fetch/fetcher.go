// Package fetch retrieves article bodies with strict bounds: a hard
// timeout, a content-type allowlist, a streaming size cap, and no redirect
// following. Every failure mode maps to a distinct user-facing message.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrKind classifies fetch failures so callers can map them to responses.
type ErrKind int

const (
	KindNetwork ErrKind = iota
	KindTimeout
	KindDenied
	KindNotFound
	KindServer
	KindRedirect
	KindUnsupportedType
	KindTooLarge
)

// Error is a fetch failure with a user-facing message. The wrapped cause is
// for logs only.
type Error struct {
	Kind    ErrKind
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.Err }

// Result is a successfully fetched document.
type Result struct {
	Body        []byte
	ContentType string
	Title       string
	Text        string
}

// Config bounds a Fetcher.
type Config struct {
	Timeout      time.Duration
	MaxBodyBytes int64
	UserAgent    string
}

type Fetcher struct {
	client *http.Client
	cfg    Config
	log    *zap.Logger
}

func NewFetcher(cfg Config, log *zap.Logger) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: cfg.Timeout,
			// Redirect responses surface as errors; the caller must submit
			// the final URL explicitly.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		cfg: cfg,
		log: log,
	}
}

// Fetch retrieves the URL and returns its body, extracted plain text, and
// title. The body is streamed and the read aborts as soon as the cumulative
// size exceeds the configured cap, regardless of the Content-Length header.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &Error{Kind: KindNetwork,
			Message: "Failed to fetch the article. Please check the URL and your connection.",
			Err:     err}
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html, text/plain")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, &Error{Kind: KindTimeout,
				Message: "The request timed out. The website might be slow or offline.",
				Err:     err}
		}
		return nil, &Error{Kind: KindNetwork,
			Message: "Failed to fetch the article. Please check the URL and your connection.",
			Err:     err}
	}
	defer resp.Body.Close()

	if err := statusError(resp.StatusCode); err != nil {
		f.log.Warn("fetch rejected by status",
			zap.String("url", rawURL), zap.Int("status", resp.StatusCode))
		return nil, err
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.Contains(contentType, "text/html") && !strings.Contains(contentType, "text/plain") {
		return nil, &Error{Kind: KindUnsupportedType,
			Message: "Unsupported content type. Only HTML and plain text are supported."}
	}
	if resp.ContentLength > f.cfg.MaxBodyBytes {
		return nil, &Error{Kind: KindTooLarge,
			Message: "Content is too large (max 5MB)."}
	}

	body, err := f.readBounded(resp.Body)
	if err != nil {
		return nil, err
	}

	title, text := Extract(body, contentType, resp.Request.URL)
	return &Result{
		Body:        body,
		ContentType: contentType,
		Title:       title,
		Text:        text,
	}, nil
}

// readBounded streams the body in chunks and aborts once the cumulative
// size crosses the cap. It never buffers more than cap+1 bytes.
func (f *Fetcher) readBounded(r io.Reader) ([]byte, error) {
	limited := io.LimitReader(r, f.cfg.MaxBodyBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		if isTimeout(err) {
			return nil, &Error{Kind: KindTimeout,
				Message: "The request timed out. The website might be slow or offline.",
				Err:     err}
		}
		return nil, &Error{Kind: KindNetwork,
			Message: "Failed to fetch the article. Please check the URL and your connection.",
			Err:     err}
	}
	if int64(len(body)) > f.cfg.MaxBodyBytes {
		return nil, &Error{Kind: KindTooLarge,
			Message: "Content is too large (max 5MB)."}
	}
	return body, nil
}

func statusError(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code >= 300 && code < 400:
		return &Error{Kind: KindRedirect,
			Message: "The URL redirects elsewhere. Please submit the final article URL directly."}
	case code == http.StatusForbidden:
		return &Error{Kind: KindDenied,
			Message: "Access to the article was denied by the server.",
			Err:     fmt.Errorf("http status %d", code)}
	case code == http.StatusNotFound:
		return &Error{Kind: KindNotFound,
			Message: "The requested article could not be found.",
			Err:     fmt.Errorf("http status %d", code)}
	default:
		return &Error{Kind: KindServer,
			Message: "Failed to fetch the article due to a server error.",
			Err:     fmt.Errorf("http status %d", code)}
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
