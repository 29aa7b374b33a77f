// Package graph builds an in-memory relationship graph over knowledge
// entries and answers "related entries" and "path between entries" queries.
//
// Build performs an O(n^2) pairwise comparison of the full entry set; graphs
// are rebuilt fresh per request with no caching. This is an accepted scaling
// limit for the small working sets the exchange holds today.
package graph

import (
	"sort"
	"strings"
	"unicode"

	"github.com/aifai-labs/aifai/internal/domain"
)

// Relationship type labels attached to edges so callers can explain why two
// entries are related.
const (
	RelSharedTag      = "shared-tag"
	RelSharedCategory = "shared-category"
	RelContentOverlap = "content-overlap"
)

// Edge weight contributions per relationship signal.
const (
	sharedTagWeight    = 2.0
	sameCategoryWeight = 1.5
	sharedWordWeight   = 0.1
)

// Edge is a weighted, labeled connection between two entries. Edges are
// symmetric: the weight and types between A and B equal those between B and A.
type Edge struct {
	Weight float64
	Types  []string
}

// Graph holds the similarity edges over one snapshot of the entry set.
// It lives for a single request and is never shared across goroutines.
type Graph struct {
	entries map[int64]*domain.KnowledgeEntry
	edges   map[int64]map[int64]Edge
}

// Related describes one entry related to the query entry.
type Related struct {
	Entry *domain.KnowledgeEntry
	Score float64
	Types []string
}

// Build constructs the relationship graph for a snapshot of entries.
func Build(entries []*domain.KnowledgeEntry) *Graph {
	g := &Graph{
		entries: make(map[int64]*domain.KnowledgeEntry, len(entries)),
		edges:   make(map[int64]map[int64]Edge, len(entries)),
	}

	for _, e := range entries {
		if e == nil {
			continue
		}
		g.entries[e.ID] = e
		g.edges[e.ID] = make(map[int64]Edge)
	}

	ids := make([]int64, 0, len(g.entries))
	for id := range g.entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			a := g.entries[ids[i]]
			b := g.entries[ids[j]]
			edge := relate(a, b)
			if edge.Weight <= 0 {
				continue
			}
			g.edges[a.ID][b.ID] = edge
			g.edges[b.ID][a.ID] = edge
		}
	}

	return g
}

// Weight returns the edge weight between two entries, zero when unrelated.
func (g *Graph) Weight(a, b int64) float64 {
	return g.edges[a][b].Weight
}

// Contains reports whether an entry is a node of the graph.
func (g *Graph) Contains(id int64) bool {
	_, ok := g.entries[id]
	return ok
}

// Related returns up to maxRelations entries connected to entryID, ordered
// by edge weight descending with ties broken by entry id ascending. Entries
// with no edge are excluded. An unknown entryID yields an empty result.
func (g *Graph) Related(entryID int64, maxRelations int) []Related {
	neighbors, ok := g.edges[entryID]
	if !ok {
		return []Related{}
	}

	related := make([]Related, 0, len(neighbors))
	for id, edge := range neighbors {
		related = append(related, Related{
			Entry: g.entries[id],
			Score: edge.Weight,
			Types: edge.Types,
		})
	}

	sort.Slice(related, func(i, j int) bool {
		if related[i].Score != related[j].Score {
			return related[i].Score > related[j].Score
		}
		return related[i].Entry.ID < related[j].Entry.ID
	})

	if maxRelations > 0 && len(related) > maxRelations {
		related = related[:maxRelations]
	}
	return related
}

// Path finds the shortest sequence of entry ids connecting start to end,
// inclusive of both endpoints. It returns an empty slice when either
// endpoint is absent or no path exists. Paths are simple: no node repeats.
func (g *Graph) Path(startID, endID int64) []int64 {
	if !g.Contains(startID) || !g.Contains(endID) {
		return []int64{}
	}
	if startID == endID {
		return []int64{startID}
	}

	// Breadth-first search over unweighted edges. Neighbors are visited in
	// ascending id order so results are deterministic.
	visited := map[int64]bool{startID: true}
	parent := make(map[int64]int64)
	queue := []int64{startID}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		neighbors := make([]int64, 0, len(g.edges[current]))
		for id := range g.edges[current] {
			neighbors = append(neighbors, id)
		}
		sort.Slice(neighbors, func(i, j int) bool { return neighbors[i] < neighbors[j] })

		for _, next := range neighbors {
			if visited[next] {
				continue
			}
			visited[next] = true
			parent[next] = current
			if next == endID {
				return tracePath(parent, startID, endID)
			}
			queue = append(queue, next)
		}
	}

	return []int64{}
}

func tracePath(parent map[int64]int64, startID, endID int64) []int64 {
	path := []int64{endID}
	for current := endID; current != startID; {
		current = parent[current]
		path = append(path, current)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// relate computes the edge between two entries from shared tags, category,
// and lexical overlap of their description and content.
func relate(a, b *domain.KnowledgeEntry) Edge {
	var edge Edge

	shared := sharedTagCount(a.Tags, b.Tags)
	if shared > 0 {
		edge.Weight += sharedTagWeight * float64(shared)
		edge.Types = append(edge.Types, RelSharedTag)
	}

	if a.Category != "" && a.Category == b.Category {
		edge.Weight += sameCategoryWeight
		edge.Types = append(edge.Types, RelSharedCategory)
	}

	overlap := sharedWordCount(entryText(a), entryText(b))
	if overlap > 0 {
		edge.Weight += sharedWordWeight * float64(overlap)
		edge.Types = append(edge.Types, RelContentOverlap)
	}

	return edge
}

func entryText(e *domain.KnowledgeEntry) string {
	return e.Description + " " + e.Content
}

func sharedTagCount(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, tag := range a {
		set[strings.ToLower(tag)] = struct{}{}
	}
	count := 0
	seen := make(map[string]struct{}, len(b))
	for _, tag := range b {
		lower := strings.ToLower(tag)
		if _, dup := seen[lower]; dup {
			continue
		}
		seen[lower] = struct{}{}
		if _, ok := set[lower]; ok {
			count++
		}
	}
	return count
}

// sharedWordCount counts significant words present in both texts.
func sharedWordCount(a, b string) int {
	wordsA := wordSet(a)
	if len(wordsA) == 0 {
		return 0
	}
	count := 0
	for word := range wordSet(b) {
		if _, ok := wordsA[word]; ok {
			count++
		}
	}
	return count
}

func wordSet(text string) map[string]struct{} {
	words := make(map[string]struct{})
	for _, token := range strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		clean := strings.ToLower(token)
		// Short words are noise for overlap purposes.
		if len(clean) < 4 {
			continue
		}
		words[clean] = struct{}{}
	}
	return words
}
