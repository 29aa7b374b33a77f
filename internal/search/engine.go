// Package search ranks knowledge entry documents against free-text queries.
// The primary strategy is a term-frequency vector similarity that tolerates
// vocabulary mismatch; a weighted substring matcher serves as the fallback
// when the primary strategy fails. Both are stateless: every call recomputes
// over the candidate set it is given.
package search

import (
	"fmt"
	"log"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/aifai-labs/aifai/internal/domain"
)

// Document is the searchable projection of a knowledge entry. Entry keeps a
// back-reference to the full record for callers that need it after ranking.
type Document struct {
	ID          int64
	Title       string
	Description string
	Content     string
	Tags        []string
	Entry       *domain.KnowledgeEntry
}

// Result pairs a document with its similarity to the query, in [0,1].
type Result struct {
	Document   Document
	Similarity float64
}

// Engine ranks documents by relevance to a query, truncated to topK.
// A topK of zero or less means no truncation.
type Engine interface {
	Search(query string, docs []Document, topK int) ([]Result, error)
}

// FallbackEngine tries the primary engine and falls back to the secondary
// when the primary fails. Primary failures are logged, never surfaced.
type FallbackEngine struct {
	primary  Engine
	fallback Engine
}

// NewFallbackEngine returns the standard semantic-with-keyword-fallback setup.
func NewFallbackEngine() *FallbackEngine {
	return &FallbackEngine{
		primary:  NewSemanticEngine(),
		fallback: NewKeywordEngine(),
	}
}

// NewFallbackEngineWith builds a FallbackEngine from explicit strategies.
func NewFallbackEngineWith(primary, fallback Engine) *FallbackEngine {
	return &FallbackEngine{primary: primary, fallback: fallback}
}

// Search runs the primary strategy, switching to the fallback only when the
// primary returns an error.
func (e *FallbackEngine) Search(query string, docs []Document, topK int) ([]Result, error) {
	results, err := e.primary.Search(query, docs, topK)
	if err == nil {
		return results, nil
	}
	msg := fmt.Sprintf("semantic search failed, using keyword fallback: %v", err)
	log.Print(msg)
	sentry.AddBreadcrumb(&sentry.Breadcrumb{
		Type:      "default",
		Category:  "search",
		Message:   msg,
		Level:     sentry.LevelWarning,
		Timestamp: time.Now(),
	})
	return e.fallback.Search(query, docs, topK)
}

func truncate(results []Result, topK int) []Result {
	if topK > 0 && len(results) > topK {
		return results[:topK]
	}
	return results
}
