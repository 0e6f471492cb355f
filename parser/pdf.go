package parser

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Parse extracts per-page text from PDF bytes and returns a Document with
// page provenance. filename is carried through for diagnostics only; it is
// never parsed for content. Parse fails when bytes are not a readable PDF;
// the compliance package wraps the error into ErrParser.
func Parse(data []byte, filename string) (*Document, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}

	total := reader.NumPage()
	rawPages := make([]string, 0, total)

	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			rawPages = append(rawPages, "")
			continue
		}

		text, err := extractPageTextOrdered(page)
		if err != nil {
			rawPages = append(rawPages, "")
			continue
		}
		rawPages = append(rawPages, strings.TrimSpace(text))
	}

	return newDocument(filename, rawPages), nil
}

// extractPageTextOrdered extracts text from a PDF page sorted by visual
// position (top-to-bottom), rather than the PDF content-stream order that
// GetPlainText follows — content-stream order can put a heading after the
// body text it labels.
//
// It groups Content() elements into visual lines by Y proximity (preserving
// content-stream order within each line, since some PDFs use text matrices
// that would garble an X-sort), then sorts the lines top-to-bottom.
func extractPageTextOrdered(page pdf.Page) (string, error) {
	content := page.Content()
	if len(content.Text) == 0 {
		return page.GetPlainText(nil)
	}

	const lineTolerance = 3.0

	type visualLine struct {
		y   float64
		buf strings.Builder
	}

	var lines []*visualLine
	var cur *visualLine

	for _, t := range content.Text {
		if cur == nil || math.Abs(t.Y-cur.y) > lineTolerance {
			lines = append(lines, &visualLine{y: t.Y})
			cur = lines[len(lines)-1]
		}
		cur.buf.WriteString(t.S)
	}

	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].y > lines[j].y
	})

	var parts []string
	for _, l := range lines {
		text := strings.TrimSpace(l.buf.String())
		if text != "" {
			parts = append(parts, text)
		}
	}

	result := strings.Join(parts, "\n")
	if strings.TrimSpace(result) == "" {
		return page.GetPlainText(nil)
	}
	return result, nil
}
