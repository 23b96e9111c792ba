// Package summarize produces extractive summaries: a handful of sentences
// selected from the article itself. When the algorithm fails or produces
// something unusable the package degrades to a deterministic fallback
// instead of returning an error.
package summarize

import (
	"errors"
	"strings"

	"github.com/JesusIslam/tldr"
	"go.uber.org/zap"

	"github.com/demon607/Summarization-Service-Build/internal/textclean"
)

// ErrEmptyContent is the only error a Summarizer surfaces; every other
// failure falls back to a deterministic truncation.
var ErrEmptyContent = errors.New("no content to summarize")

// Summarizer produces a summary for cleaned article content.
type Summarizer interface {
	Summarize(content string) (string, error)
}

// minSummaryWords is the threshold under which an extracted summary is
// considered degenerate and replaced by the fallback.
const minSummaryWords = 10

// fallbackMaxChars caps the last-resort truncation fallback.
const fallbackMaxChars = 500

// Extractive summarizes by picking sentences out of the document, scaling
// the sentence count with document length between MinSentences and
// MaxSentences.
type Extractive struct {
	MinSentences int
	MaxSentences int
	log          *zap.Logger
}

func NewExtractive(minSentences, maxSentences int, log *zap.Logger) *Extractive {
	return &Extractive{
		MinSentences: minSentences,
		MaxSentences: maxSentences,
		log:          log,
	}
}

func (e *Extractive) Summarize(content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyContent
	}
	cleaned := textclean.Clean(content)
	if cleaned == "" {
		return "", ErrEmptyContent
	}

	sentences := SplitSentences(cleaned)
	count := len(sentences) / 3
	if count < e.MinSentences {
		count = e.MinSentences
	}
	if count > e.MaxSentences {
		count = e.MaxSentences
	}

	// Without sentence boundaries the extractor can only hand back the
	// whole document; go straight to the bounded fallback.
	if !hasTerminatedSentence(cleaned) {
		return Fallback(cleaned), nil
	}

	if summary, ok := e.extract(cleaned, count); ok {
		return summary, nil
	}
	return Fallback(cleaned), nil
}

func hasTerminatedSentence(s string) bool {
	return strings.ContainsAny(s, ".!?")
}

// extract runs the extractive algorithm and cleans its output. The second
// return is false when the result is unusable and the caller should fall
// back.
func (e *Extractive) extract(cleaned string, count int) (summary string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Warn("extractive summarization panicked, falling back", zap.Any("panic", r))
			summary, ok = "", false
		}
	}()
	bag := tldr.New()
	picked, err := bag.Summarize(cleaned, count)
	if err != nil {
		e.log.Warn("extractive summarization failed, falling back", zap.Error(err))
		return "", false
	}
	summary = textclean.Clean(strings.Join(picked, " "))
	if summary == "" || len(strings.Fields(summary)) < minSummaryWords {
		e.log.Warn("summary too short, falling back",
			zap.Int("words", len(strings.Fields(summary))))
		return "", false
	}
	return summary, true
}

// Fallback deterministically reduces content: the first three
// punctuation-terminated sentences, or a 500-character truncation when no
// sentence boundary exists.
func Fallback(cleaned string) string {
	var sentences []string
	for _, s := range SplitSentences(cleaned) {
		if strings.HasSuffix(s, ".") || strings.HasSuffix(s, "!") || strings.HasSuffix(s, "?") {
			sentences = append(sentences, s)
		}
	}
	if len(sentences) > 3 {
		sentences = sentences[:3]
	}
	joined := strings.TrimSpace(strings.Join(sentences, " "))
	if joined != "" {
		return joined
	}
	if len(cleaned) > fallbackMaxChars {
		return cleaned[:fallbackMaxChars]
	}
	return cleaned
}

// SplitSentences splits on sentence-ending punctuation, keeping the
// punctuation attached to its sentence.
func SplitSentences(s string) []string {
	var sentences []string
	var b strings.Builder
	for _, r := range s {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if part := strings.TrimSpace(b.String()); part != "" {
				sentences = append(sentences, part)
			}
			b.Reset()
		}
	}
	if part := strings.TrimSpace(b.String()); part != "" {
		sentences = append(sentences, part)
	}
	return sentences
}
