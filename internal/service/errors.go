package service

import "errors"

// Submission-flow errors with user-facing messages. Fetch, validation, and
// quality errors carry their own messages in their packages; these cover
// the checks owned by the service itself.
var (
	ErrURLRequired = errors.New("URL is required.")
	ErrURLTooLong  = errors.New("URL is too long (max 2048 characters).")
	ErrRateLimited = errors.New("Rate limit exceeded. Please try again in an hour.")
	ErrNotFound    = errors.New("Article not found.")
)
