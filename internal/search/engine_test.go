package search

import (
	"errors"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDocs() []Document {
	return []Document{
		{
			ID:          1,
			Title:       "Docker container networking",
			Description: "Bridging containers across hosts",
			Content:     "Use overlay networks to connect docker containers running on different machines.",
			Tags:        []string{"docker", "networking"},
		},
		{
			ID:          2,
			Title:       "Postgres connection pooling",
			Description: "Tuning pgbouncer for high throughput",
			Content:     "Connection pools reduce the cost of establishing new database sessions.",
			Tags:        []string{"postgres", "database"},
		},
		{
			ID:          3,
			Title:       "Kubernetes pod scheduling",
			Description: "Affinity rules and taints",
			Content:     "The scheduler places pods onto nodes based on resource requests and constraints.",
			Tags:        []string{"kubernetes", "scheduling"},
		},
	}
}

func TestSemanticEngine_RanksRelevantFirst(t *testing.T) {
	engine := NewSemanticEngine()

	results, err := engine.Search("docker networking", testDocs(), 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	assert.Equal(t, int64(1), results[0].Document.ID)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Similarity, 0.0)
		assert.LessOrEqual(t, r.Similarity, 1.0)
	}
}

func TestSemanticEngine_EmptyDocuments(t *testing.T) {
	engine := NewSemanticEngine()

	results, err := engine.Search("anything", nil, 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSemanticEngine_EmptyQuery(t *testing.T) {
	engine := NewSemanticEngine()
	docs := testDocs()

	results, err := engine.Search("", docs, 10)
	require.NoError(t, err)
	require.Len(t, results, len(docs))

	// Input order preserved, zero similarity.
	for i, r := range results {
		assert.Equal(t, docs[i].ID, r.Document.ID)
		assert.Zero(t, r.Similarity)
	}
}

func TestSemanticEngine_Restartable(t *testing.T) {
	engine := NewSemanticEngine()
	docs := testDocs()

	first, err := engine.Search("database connection", docs, 10)
	require.NoError(t, err)
	second, err := engine.Search("database connection", docs, 10)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestSemanticEngine_TopKTruncation(t *testing.T) {
	engine := NewSemanticEngine()

	results, err := engine.Search("containers pods database", testDocs(), 1)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(results), 1)
}

func TestKeywordEngine_SubstringMatching(t *testing.T) {
	engine := NewKeywordEngine()

	// "doc" matches "Docker" -- no token boundary requirement.
	results, err := engine.Search("doc", testDocs(), 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(1), results[0].Document.ID)
}

func TestKeywordEngine_TitleOutweighsContent(t *testing.T) {
	engine := NewKeywordEngine()
	docs := []Document{
		{ID: 1, Content: "pooling strategies for workers"},
		{ID: 2, Title: "Pooling guide"},
	}

	results, err := engine.Search("pooling", docs, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, int64(2), results[0].Document.ID)
	assert.Greater(t, results[0].Similarity, results[1].Similarity)
}

func TestKeywordEngine_CaseInsensitive(t *testing.T) {
	engine := NewKeywordEngine()

	results, err := engine.Search("POSTGRES", testDocs(), 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(2), results[0].Document.ID)
}

func TestKeywordEngine_NoMatchesExcluded(t *testing.T) {
	engine := NewKeywordEngine()

	results, err := engine.Search("nonexistent-term-xyz", testDocs(), 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

// failingEngine always errors, forcing the fallback path.
type failingEngine struct{}

func (failingEngine) Search(query string, docs []Document, topK int) ([]Result, error) {
	return nil, errors.New("vector model unavailable")
}

func TestFallbackEngine_UsesPrimaryWhenHealthy(t *testing.T) {
	engine := NewFallbackEngine()
	docs := testDocs()

	got, err := engine.Search("docker networking", docs, 10)
	require.NoError(t, err)

	want, err := NewSemanticEngine().Search("docker networking", docs, 10)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFallbackEngine_FallsBackOnPrimaryFailure(t *testing.T) {
	engine := NewFallbackEngineWith(failingEngine{}, NewKeywordEngine())
	docs := testDocs()

	got, err := engine.Search("docker", docs, 10)
	require.NoError(t, err, "primary failure must not propagate")

	want, err := NewKeywordEngine().Search("docker", docs, 10)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFallbackEngine_RecordsBreadcrumbOnFallback(t *testing.T) {
	var crumbs []*sentry.Breadcrumb
	err := sentry.Init(sentry.ClientOptions{
		BeforeBreadcrumb: func(b *sentry.Breadcrumb, _ *sentry.BreadcrumbHint) *sentry.Breadcrumb {
			crumbs = append(crumbs, b)
			return nil
		},
	})
	require.NoError(t, err)

	engine := NewFallbackEngineWith(failingEngine{}, NewKeywordEngine())
	_, err = engine.Search("docker", testDocs(), 10)
	require.NoError(t, err)

	require.Len(t, crumbs, 1)
	assert.Equal(t, "search", crumbs[0].Category)
	assert.Contains(t, crumbs[0].Message, "keyword fallback")
	assert.Contains(t, crumbs[0].Message, "vector model unavailable")
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"drops stopwords", "how to configure the docker daemon", []string{"configure", "docker", "daemon"}},
		{"lowercases", "Docker NETWORKING", []string{"docker", "networking"}},
		{"splits on punctuation", "docker,networking;overlay", []string{"docker", "networking", "overlay"}},
		{"empty", "", nil},
		{"only stopwords", "the and of", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tokenize(tt.text))
		})
	}
}
