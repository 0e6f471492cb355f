// Package chunker groups a parsed Document's pages into retrieval units,
// each carrying exact page and character provenance back to the source PDF.
package chunker

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/brunobiangulo/compliance/parser"
)

// Config controls how pages are grouped into chunks.
type Config struct {
	PagesPerChunk int // Pages per chunk. Zero defaults to 1.
	OverlapPages  int // Pages shared with the previous chunk. Zero means no overlap.
}

// Chunk is one retrieval unit: a contiguous run of pages with exact
// character provenance into the document's normalized text.
type Chunk struct {
	ID              string
	RawText         string
	NormalizedText  string
	PageStart       int
	PageEnd         int
	CharOffsetStart int
	CharOffsetEnd   int
	ContentHint     string // "table", "definition", "requirement", or "paragraph"
}

// Chunker converts a parsed Document into Chunks.
type Chunker struct {
	cfg Config
}

// New returns a Chunker with the given configuration. A PagesPerChunk of
// zero defaults to one page per chunk with no overlap.
func New(cfg Config) *Chunker {
	if cfg.PagesPerChunk <= 0 {
		cfg.PagesPerChunk = 1
	}
	if cfg.OverlapPages < 0 || cfg.OverlapPages >= cfg.PagesPerChunk {
		cfg.OverlapPages = 0
	}
	return &Chunker{cfg: cfg}
}

// Chunk groups doc's pages into chunks of c.cfg.PagesPerChunk pages,
// advancing by (PagesPerChunk - OverlapPages) pages each step. Every chunk's
// char offsets are taken directly from the page offsets computed during
// parsing, so the tiling invariant from the parser carries through minus
// whatever pages a chunk shares with its neighbor.
func (c *Chunker) Chunk(doc *parser.Document) []Chunk {
	pages := doc.Pages
	if len(pages) == 0 {
		return nil
	}

	step := c.cfg.PagesPerChunk - c.cfg.OverlapPages
	if step <= 0 {
		step = 1
	}

	var chunks []Chunk
	n := 0
	for start := 0; start < len(pages); start += step {
		end := start + c.cfg.PagesPerChunk
		if end > len(pages) {
			end = len(pages)
		}

		group := pages[start:end]
		chunk := buildChunk(doc.ID, n, group)
		chunks = append(chunks, chunk)
		n++

		if end == len(pages) {
			break
		}
	}

	return chunks
}

func buildChunk(docID string, n int, group []parser.Page) Chunk {
	var raw, norm strings.Builder
	for i, p := range group {
		if i > 0 {
			raw.WriteString("\n")
		}
		raw.WriteString(p.Text)
		// No separator: NormalizedText must match
		// doc.Concatenated()[CharOffsetStart:CharOffsetEnd] exactly.
		norm.WriteString(p.Normalized)
	}

	// Normalization collapses newlines and tabs, so table layout is judged
	// on the raw text.
	hint := contentHint(norm.String())
	if looksLikeTable(raw.String()) {
		hint = "table"
	}

	return Chunk{
		ID:              fmt.Sprintf("%s:chunk_%d", docID, n),
		RawText:         raw.String(),
		NormalizedText:  norm.String(),
		PageStart:       group[0].Number,
		PageEnd:         group[len(group)-1].Number,
		CharOffsetStart: group[0].CharOffsetStart,
		CharOffsetEnd:   group[len(group)-1].CharOffsetEnd,
		ContentHint:     hint,
	}
}

// requirementPattern matches normative requirement language, a strong
// signal in compliance documents that a chunk states an obligation rather
// than background prose.
var requirementPattern = regexp.MustCompile(`\b(shall|must|required|may not|should)\b`)

// definitionPattern matches glossary-style "term means ..." definitions.
var definitionPattern = regexp.MustCompile(`"[^"]+"\s+(?:means|shall mean)\b`)

// contentHint classifies a chunk's normalized text into a coarse category
// used only as a diagnostic label; retrieval and grounding never branch on
// it.
func contentHint(normalized string) string {
	if looksLikeTable(normalized) {
		return "table"
	}
	if definitionPattern.MatchString(normalized) {
		return "definition"
	}
	if requirementPattern.MatchString(normalized) {
		return "requirement"
	}
	return "paragraph"
}

// looksLikeTable reports whether s, split into lines, has the tab/pipe
// density typical of a table row run. Text without newlines is never a
// table.
func looksLikeTable(s string) bool {
	lines := strings.Split(s, "\n")
	if len(lines) < 2 {
		return false
	}
	hits := 0
	for _, l := range lines {
		if strings.Contains(l, "|") || strings.Count(l, "\t") >= 2 {
			hits++
		}
	}
	return hits >= len(lines)/2
}
