package model

import (
	"time"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Valid reports whether s is one of the known article statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Limits applied when a submission is turned into an Article.
const (
	MaxURLLength   = 2048
	MaxTitleLength = 100
)

// Article is a submitted URL together with its extracted content and, once
// the queue has processed it, a summary. Summary is set only for completed
// articles; ErrorMessage is set only for failed ones.
type Article struct {
	ID           int64     `db:"id" json:"id"`
	URL          string    `db:"url" json:"url"`
	Title        string    `db:"title" json:"title"`
	Status       Status    `db:"status" json:"status"`
	Content      string    `db:"content" json:"content,omitempty"`
	Summary      *string   `db:"summary" json:"summary,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	ErrorMessage *string   `db:"error_message" json:"error_message,omitempty"`
}

// IsTerminal reports whether the article has reached a terminal status.
// Failed is terminal but can re-enter pending through a retry.
func (a *Article) IsTerminal() bool {
	return a.Status == StatusCompleted || a.Status == StatusFailed
}

// CanTransition reports whether moving to next is an allowed state-machine
// step: pending→processing→{completed|failed}, plus failed→pending for
// retries.
func (a *Article) CanTransition(next Status) bool {
	switch a.Status {
	case StatusPending:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed
	case StatusFailed:
		return next == StatusPending
	}
	return false
}
