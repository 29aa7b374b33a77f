package service

import (
	"context"
	"sort"

	"github.com/aifai-labs/aifai/internal/domain"
	"github.com/aifai-labs/aifai/internal/quality"
	"github.com/aifai-labs/aifai/internal/search"
	"github.com/aifai-labs/aifai/internal/telemetry"
)

const (
	defaultSearchLimit = 10

	// Ask the engine for more candidates than the final limit so quality can
	// reorder within the relevant set.
	searchCandidateMultiplier = 2
)

// SearchInput represents a ranked-search request.
type SearchInput struct {
	Query          string
	Category       string
	Tags           []string
	MinSuccessRate *float64
	VerifiedOnly   bool
	Limit          int
}

// Search runs the full ranking pipeline: filter candidates, score relevance
// against the query, blend in quality, and return the top entries.
//
// Without a query, entries are ordered by quality score alone. With a query,
// each candidate's total is similarity*SimilarityWeight +
// quality*QualityWeight; both the semantic path and the keyword fallback use
// the same weight pair.
func (s *EntryService) Search(ctx context.Context, input SearchInput) ([]*domain.KnowledgeEntry, error) {
	ctx, span := telemetry.StartSpan(ctx, "EntryService.Search", telemetry.SpanAttributes{
		Operation: "search",
	})
	defer span.End()

	limit := input.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	entries, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	candidates := FilterEntries(entries, EntryFilter{
		Category:       input.Category,
		Tags:           input.Tags,
		MinSuccessRate: input.MinSuccessRate,
		VerifiedOnly:   input.VerifiedOnly,
	})

	if input.Query == "" {
		return s.rankByQuality(candidates, limit), nil
	}

	return s.rankByRelevance(ctx, input.Query, candidates, limit)
}

// rankByQuality orders entries by quality score descending. Ties break by
// entry id ascending so the ordering is deterministic.
func (s *EntryService) rankByQuality(entries []*domain.KnowledgeEntry, limit int) []*domain.KnowledgeEntry {
	type scored struct {
		entry *domain.KnowledgeEntry
		score float64
	}

	ranked := make([]scored, len(entries))
	for i, e := range entries {
		ranked[i] = scored{entry: e, score: quality.Score(s.signals(e))}
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].entry.ID < ranked[j].entry.ID
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	out := make([]*domain.KnowledgeEntry, len(ranked))
	for i, r := range ranked {
		out[i] = r.entry
	}
	return out
}

// rankByRelevance combines engine similarity with quality scores.
func (s *EntryService) rankByRelevance(ctx context.Context, query string, candidates []*domain.KnowledgeEntry, limit int) ([]*domain.KnowledgeEntry, error) {
	docs := make([]search.Document, len(candidates))
	for i, e := range candidates {
		docs[i] = search.Document{
			ID:          e.ID,
			Title:       e.Title,
			Description: e.Description,
			Content:     e.Content,
			Tags:        e.Tags,
			Entry:       e,
		}
	}

	results, err := s.engine.Search(query, docs, limit*searchCandidateMultiplier)
	if err != nil {
		// The fallback engine absorbs strategy failures; an error here means
		// something unexpected, not a degraded search.
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "search failed", err)
	}

	type scored struct {
		entry *domain.KnowledgeEntry
		total float64
	}

	ranked := make([]scored, 0, len(results))
	for _, r := range results {
		entry := r.Document.Entry
		if entry == nil {
			continue
		}
		q := quality.Score(s.signals(entry))
		ranked = append(ranked, scored{
			entry: entry,
			total: r.Similarity*s.cfg.SimilarityWeight + q*s.cfg.QualityWeight,
		})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].total != ranked[j].total {
			return ranked[i].total > ranked[j].total
		}
		return ranked[i].entry.ID < ranked[j].entry.ID
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	out := make([]*domain.KnowledgeEntry, len(ranked))
	for i, r := range ranked {
		out[i] = r.entry
	}
	return out, nil
}
