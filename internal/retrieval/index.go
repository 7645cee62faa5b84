// Package retrieval provides BM25 keyword search over attached
// documents. Documents are split into paragraph chunks at indexing
// time; queries return the top-k chunks with relevance scores for
// injection into the system prompt.
//
// The index is not safe for concurrent readers and writers. The
// controller serializes all index mutations and queries behind its
// indexing lock.
package retrieval

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"braid/internal/logger"
	"braid/pkg/braidtypes"
)

// Okapi BM25 parameters.
const (
	paramK1      = 1.5
	paramB       = 0.75
	paramEpsilon = 0.25
)

var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

type chunk struct {
	docID   string
	source  string
	section string
	content string
	tokens  []string
}

// Index is an in-memory BM25 index over document chunks. It implements
// braidtypes.Retriever.
type Index struct {
	chunks []chunk

	termFrequencies []map[string]int
	lengths         []int
	averageLength   float64
	idf             map[string]float64
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{idf: make(map[string]float64)}
}

// AddDocument chunks the document by paragraph and indexes it. A docID
// that was already indexed is replaced.
func (x *Index) AddDocument(docID, source, text string) int {
	x.removeChunks(docID)

	added := 0
	for i, para := range splitParagraphs(text) {
		tokens := tokenize(para)
		if len(tokens) == 0 {
			continue
		}
		x.chunks = append(x.chunks, chunk{
			docID:   docID,
			source:  source,
			section: fmt.Sprintf("paragraph %d", i+1),
			content: para,
			tokens:  tokens,
		})
		added++
	}

	x.rebuild()
	logger.Debug("Indexed document", "doc", docID, "chunks", added)
	return added
}

// RemoveDocument drops every chunk belonging to docID and reports
// whether any existed.
func (x *Index) RemoveDocument(docID string) bool {
	removed := x.removeChunks(docID)
	if removed {
		x.rebuild()
	}
	return removed
}

// Clear empties the index.
func (x *Index) Clear() {
	x.chunks = nil
	x.rebuild()
}

// ChunkCount returns the number of indexed chunks.
func (x *Index) ChunkCount() int {
	return len(x.chunks)
}

// Retrieve returns up to k chunks ranked by BM25 relevance. An empty
// query or empty index yields no results, not an error. The context is
// accepted for interface compatibility; lookups are in-memory.
func (x *Index) Retrieve(_ context.Context, query string, k int) ([]braidtypes.RetrievedChunk, error) {
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 || len(x.chunks) == 0 {
		return nil, nil
	}

	type scored struct {
		index int
		score float64
	}
	var hits []scored
	for i := range x.chunks {
		if s := x.score(i, queryTokens); s > 0 {
			hits = append(hits, scored{index: i, score: s})
		}
	}

	sort.Slice(hits, func(a, b int) bool {
		return hits[a].score > hits[b].score
	})
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}

	results := make([]braidtypes.RetrievedChunk, len(hits))
	for i, hit := range hits {
		c := x.chunks[hit.index]
		results[i] = braidtypes.RetrievedChunk{
			Content: c.content,
			Source:  c.source,
			Section: c.section,
			Score:   hit.score,
		}
	}
	return results, nil
}

func (x *Index) removeChunks(docID string) bool {
	kept := x.chunks[:0]
	for _, c := range x.chunks {
		if c.docID != docID {
			kept = append(kept, c)
		}
	}
	removed := len(kept) != len(x.chunks)
	x.chunks = kept
	return removed
}

// rebuild recomputes term frequencies and IDF over all chunks.
func (x *Index) rebuild() {
	n := len(x.chunks)
	x.termFrequencies = make([]map[string]int, n)
	x.lengths = make([]int, n)
	x.idf = make(map[string]float64)

	documentFrequency := make(map[string]int)
	totalLength := 0

	for i, c := range x.chunks {
		x.lengths[i] = len(c.tokens)
		totalLength += len(c.tokens)

		tf := make(map[string]int)
		seen := make(map[string]bool)
		for _, token := range c.tokens {
			tf[token]++
			if !seen[token] {
				seen[token] = true
				documentFrequency[token]++
			}
		}
		x.termFrequencies[i] = tf
	}

	if n > 0 {
		x.averageLength = float64(totalLength) / float64(n)
	} else {
		x.averageLength = 0
	}

	// Terms present in every chunk keep a small positive score so they
	// still contribute to ranking.
	count := float64(n)
	for term, frequency := range documentFrequency {
		idf := math.Log(1 + (count-float64(frequency)+0.5)/(float64(frequency)+0.5))
		if idf < 0 {
			idf = paramEpsilon
		}
		x.idf[term] = idf
	}
}

func (x *Index) score(chunkIndex int, queryTokens []string) float64 {
	tf := x.termFrequencies[chunkIndex]
	length := float64(x.lengths[chunkIndex])

	var score float64
	for _, token := range queryTokens {
		idf, exists := x.idf[token]
		if !exists {
			continue
		}
		frequency := float64(tf[token])
		if frequency == 0 {
			continue
		}
		numerator := frequency * (paramK1 + 1)
		denominator := frequency + paramK1*(1-paramB+paramB*length/x.averageLength)
		score += idf * numerator / denominator
	}
	return score
}

// splitParagraphs splits on blank lines and trims whitespace.
func splitParagraphs(text string) []string {
	var paragraphs []string
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para != "" {
			paragraphs = append(paragraphs, para)
		}
	}
	return paragraphs
}

// tokenize splits text into lowercase alphanumeric tokens, discarding
// single-character noise.
func tokenize(text string) []string {
	matches := tokenPattern.FindAllString(strings.ToLower(text), -1)
	tokens := matches[:0]
	for _, match := range matches {
		if len(match) >= 2 {
			tokens = append(tokens, match)
		}
	}
	return tokens
}
