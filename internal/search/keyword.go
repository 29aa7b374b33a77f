package search

import (
	"sort"
	"strings"
)

// Relevance weights for substring hits. A title match outweighs a
// description match, which outweighs a content match (10:5:1). Scores are
// normalized by the maximum attainable sum so similarity stays in [0,1].
const (
	titleHitWeight       = 10.0
	descriptionHitWeight = 5.0
	contentHitWeight     = 1.0
	maxKeywordScore      = titleHitWeight + descriptionHitWeight + contentHitWeight
)

// KeywordEngine scores documents by case-insensitive substring matches. It
// deliberately has no token-boundary requirement: "doc" matches "docker".
type KeywordEngine struct{}

// NewKeywordEngine creates a new KeywordEngine instance
func NewKeywordEngine() *KeywordEngine {
	return &KeywordEngine{}
}

// Search ranks docs by weighted substring hits, excluding non-matches.
// Edge cases mirror the semantic engine: empty docs return empty, an empty
// query returns the documents in input order with zero similarity.
func (e *KeywordEngine) Search(query string, docs []Document, topK int) ([]Result, error) {
	if len(docs) == 0 {
		return []Result{}, nil
	}

	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		results := make([]Result, len(docs))
		for i, doc := range docs {
			results[i] = Result{Document: doc, Similarity: 0}
		}
		return truncate(results, topK), nil
	}

	results := make([]Result, 0, len(docs))
	for _, doc := range docs {
		score := 0.0
		if strings.Contains(strings.ToLower(doc.Title), needle) {
			score += titleHitWeight
		}
		if strings.Contains(strings.ToLower(doc.Description), needle) {
			score += descriptionHitWeight
		}
		if strings.Contains(strings.ToLower(doc.Content), needle) {
			score += contentHitWeight
		}
		if score == 0 {
			continue
		}
		results = append(results, Result{Document: doc, Similarity: score / maxKeywordScore})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].Document.ID < results[j].Document.ID
	})

	return truncate(results, topK), nil
}
