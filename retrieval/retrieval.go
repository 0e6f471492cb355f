// Package retrieval implements Okapi BM25 search over a document's chunks.
// The engine is built once per document and is safe for concurrent read-only
// use: every requirement query against the same document, and every chat
// turn's retrieval, shares one index.
package retrieval

import (
	"log/slog"
	"math"
	"regexp"
	"sort"
	"time"

	"github.com/brunobiangulo/compliance/chunker"
	"github.com/brunobiangulo/compliance/normalize"
)

// BM25 parameters. Frozen: changing them changes ranking for every existing
// analysis, so they are constants rather than configuration.
const (
	k1 = 1.5
	b  = 0.75
)

// Result is one scored chunk returned from a search.
type Result struct {
	Chunk chunker.Chunk
	Index int // position of Chunk in the index's original chunk slice
	Score float64
}

// identifierRe flags queries built around a contract clause identifier
// (e.g. "Section 4.2", "Exhibit A") rather than prose. BM25 is the only
// ranking signal this package has, so detection is logged for diagnostics
// only; it never changes scoring.
var identifierRe = regexp.MustCompile(`(?i)\b(section|clause|exhibit|schedule|appendix)\s+[0-9a-z]`)

// isIdentifierHeavy reports whether query reads like a clause-identifier
// lookup rather than a natural-language question.
func isIdentifierHeavy(query string) bool {
	return identifierRe.MatchString(query)
}

// Engine is a BM25 index over one document's chunks.
type Engine struct {
	chunks  []chunker.Chunk
	docs    [][]string // tokens per chunk, parallel to chunks
	df      map[string]int
	avgLen  float64
	nChunks int
}

// New builds a BM25 index over chunks. Tokenization uses normalize.Tokens,
// the same tokenizer the normalize package exposes to every other stage, so
// index terms and query terms are produced identically.
func New(chunks []chunker.Chunk) *Engine {
	e := &Engine{
		chunks:  chunks,
		docs:    make([][]string, len(chunks)),
		df:      make(map[string]int),
		nChunks: len(chunks),
	}

	var totalLen int
	for i, c := range chunks {
		tokens := normalize.Tokens(c.NormalizedText)
		e.docs[i] = tokens
		totalLen += len(tokens)

		seen := make(map[string]bool, len(tokens))
		for _, t := range tokens {
			if !seen[t] {
				seen[t] = true
				e.df[t]++
			}
		}
	}

	if e.nChunks > 0 {
		e.avgLen = float64(totalLen) / float64(e.nChunks)
	}

	return e
}

// Search scores every chunk against query using Okapi BM25 and returns the
// top k results ordered by descending score, breaking ties by ascending
// chunk index for determinism. k <= 0 returns all chunks scored.
func (e *Engine) Search(query string, k int) []Result {
	start := time.Now()
	queryTokens := normalize.Tokens(query)

	results := make([]Result, e.nChunks)
	for i := range e.chunks {
		results[i] = Result{
			Chunk: e.chunks[i],
			Index: i,
			Score: e.score(queryTokens, i),
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Index < results[j].Index
	})

	if k > 0 && k < len(results) {
		results = results[:k]
	}

	slog.Debug("retrieval: bm25 search",
		"bm25_results", len(results),
		"elapsed_ms", time.Since(start).Milliseconds(),
		"identifiers_detected", isIdentifierHeavy(query),
	)
	return results
}

// score computes the Okapi BM25 score of query terms against the chunk at
// docIndex.
func (e *Engine) score(queryTokens []string, docIndex int) float64 {
	tf := make(map[string]int, len(e.docs[docIndex]))
	for _, t := range e.docs[docIndex] {
		tf[t]++
	}
	docLen := float64(len(e.docs[docIndex]))

	var score float64
	for _, term := range queryTokens {
		df, ok := e.df[term]
		if !ok {
			continue
		}
		idf := math.Log(1 + (float64(e.nChunks)-float64(df)+0.5)/(float64(df)+0.5))
		f := float64(tf[term])
		denom := f + k1*(1-b+b*(docLen/e.avgLen))
		score += idf * (f * (k1 + 1) / denom)
	}
	return score
}
