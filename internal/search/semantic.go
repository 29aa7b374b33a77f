package search

import (
	"math"
	"sort"
	"strings"
)

// Field weights for building the document term vector. Title terms count the
// most, tags and description carry more signal than body content.
const (
	titleTermWeight       = 3.0
	tagTermWeight         = 2.0
	descriptionTermWeight = 2.0
	contentTermWeight     = 1.0
)

// SemanticEngine scores documents with term-frequency vectors and cosine
// similarity. Term weights are scaled by inverse document frequency over the
// candidate set, so terms shared by every candidate stop discriminating.
type SemanticEngine struct{}

// NewSemanticEngine creates a new SemanticEngine instance
func NewSemanticEngine() *SemanticEngine {
	return &SemanticEngine{}
}

// Search ranks docs by cosine similarity to the query. An empty query
// returns the documents in input order with zero similarity; empty docs
// return an empty result set.
func (e *SemanticEngine) Search(query string, docs []Document, topK int) ([]Result, error) {
	if len(docs) == 0 {
		return []Result{}, nil
	}

	queryTerms := tokenize(query)
	if len(queryTerms) == 0 {
		results := make([]Result, len(docs))
		for i, doc := range docs {
			results[i] = Result{Document: doc, Similarity: 0}
		}
		return truncate(results, topK), nil
	}

	vectors := make([]map[string]float64, len(docs))
	docFreq := make(map[string]int)
	for i, doc := range docs {
		vectors[i] = termVector(doc)
		for term := range vectors[i] {
			docFreq[term]++
		}
	}

	idf := make(map[string]float64, len(docFreq))
	n := float64(len(docs))
	for term, df := range docFreq {
		idf[term] = math.Log(1 + n/float64(1+df))
	}

	queryVec := make(map[string]float64, len(queryTerms))
	for _, term := range queryTerms {
		queryVec[term]++
	}
	applyIDF(queryVec, idf)

	results := make([]Result, 0, len(docs))
	for i, doc := range docs {
		applyIDF(vectors[i], idf)
		sim := cosine(queryVec, vectors[i])
		if sim <= 0 {
			continue
		}
		results = append(results, Result{Document: doc, Similarity: sim})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].Document.ID < results[j].Document.ID
	})

	return truncate(results, topK), nil
}

// termVector builds the weighted term-frequency vector of a document.
func termVector(doc Document) map[string]float64 {
	vec := make(map[string]float64)
	addTerms(vec, doc.Title, titleTermWeight)
	addTerms(vec, doc.Description, descriptionTermWeight)
	addTerms(vec, doc.Content, contentTermWeight)
	addTerms(vec, strings.Join(doc.Tags, " "), tagTermWeight)
	return vec
}

func addTerms(vec map[string]float64, text string, weight float64) {
	for _, term := range tokenize(text) {
		vec[term] += weight
	}
}

// applyIDF scales vector weights by inverse document frequency. Terms unseen
// in the corpus keep their raw weight.
func applyIDF(vec map[string]float64, idf map[string]float64) {
	for term, weight := range vec {
		if factor, ok := idf[term]; ok {
			vec[term] = weight * factor
		}
	}
}

// cosine computes cosine similarity between two sparse vectors. The result
// lies in [0,1] because all weights are non-negative.
func cosine(a, b map[string]float64) float64 {
	var dot float64
	for term, wa := range a {
		if wb, ok := b[term]; ok {
			dot += wa * wb
		}
	}
	if dot == 0 {
		return 0
	}
	na := norm(a)
	nb := norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (na * nb)
}

func norm(vec map[string]float64) float64 {
	var sum float64
	for _, w := range vec {
		sum += w * w
	}
	return math.Sqrt(sum)
}
