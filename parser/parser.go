// Package parser extracts per-page text from PDF bytes with exact page
// provenance: every character offset in a Document can be traced back to
// the page it came from, which is what lets the grounder later report
// page numbers for a validated quote.
package parser

import (
	"github.com/google/uuid"

	"github.com/brunobiangulo/compliance/normalize"
)

// Metadata carries the parser's assessment of the document as a whole.
type Metadata struct {
	ParserUsed      string // "native" — the only parse method this core implements.
	NeedsOCR        bool   // true when avg_chars_per_page < 100 (image-dominated document).
	AvgCharsPerPage float64
}

// Page is a single 1-indexed page of extracted text.
type Page struct {
	Number          int
	Text            string
	Normalized      string
	CharOffsetStart int // inclusive, in concatenated-document coordinates
	CharOffsetEnd   int // exclusive
}

// Document is the immutable result of parsing one PDF. Its Pages' char
// ranges tile [0, len(concatenated text)) with no gaps or overlaps.
type Document struct {
	ID       string
	Filename string
	Pages    []Page
	Metadata Metadata
}

// PageCount returns the number of pages in the document.
func (d *Document) PageCount() int { return len(d.Pages) }

// Concatenated returns the full normalized document text in page order,
// matching the coordinate space that Page.CharOffsetStart/End index into.
func (d *Document) Concatenated() string {
	var total int
	for _, p := range d.Pages {
		total += len(p.Normalized)
	}
	buf := make([]byte, 0, total)
	for _, p := range d.Pages {
		buf = append(buf, p.Normalized...)
	}
	return string(buf)
}

// FromPages builds a Document directly from already-extracted page text,
// bypassing PDF decoding. Used by tests in other packages that need a
// Document fixture without a real PDF.
func FromPages(filename string, rawPages []string) (*Document, error) {
	return newDocument(filename, rawPages), nil
}

// newDocument assembles a Document from raw per-page text, computing
// normalized forms and cumulative character offsets, and decides the
// needs_ocr flag from the average raw character count per page.
func newDocument(filename string, rawPages []string) *Document {
	doc := &Document{
		ID:       uuid.NewString(),
		Filename: filename,
		Pages:    make([]Page, len(rawPages)),
	}

	offset := 0
	var totalChars int
	for i, raw := range rawPages {
		norm := normalize.Text(raw)
		doc.Pages[i] = Page{
			Number:          i + 1,
			Text:            raw,
			Normalized:      norm,
			CharOffsetStart: offset,
			CharOffsetEnd:   offset + len(norm),
		}
		offset += len(norm)
		totalChars += len(raw)
	}

	avg := 0.0
	if len(rawPages) > 0 {
		avg = float64(totalChars) / float64(len(rawPages))
	}
	doc.Metadata = Metadata{
		ParserUsed:      "native",
		NeedsOCR:        avg < 100,
		AvgCharsPerPage: avg,
	}
	return doc
}
