// Package grounding verifies that every quote a model emitted actually
// appears in the evidence it was shown, and adjusts confidence accordingly.
// This is the deterministic check that catches hallucinated quotes.
package grounding

import (
	"fmt"
	"log/slog"

	"github.com/brunobiangulo/compliance/analysis"
	"github.com/brunobiangulo/compliance/normalize"
	"github.com/brunobiangulo/compliance/retrieval"
)

const minQuoteChars = 10

// Ground verifies every quote in result against evidence and returns a new
// result with only validated quotes and, when adjustConfidence is true,
// confidence adjusted per the removal table. Chat callers pass false and
// compute their own confidence.
func Ground(result analysis.Result, evidence []retrieval.Result, adjustConfidence bool) analysis.Result {
	original := len(result.RelevantQuotes)
	validated := make([]analysis.Quote, 0, original)

	for _, q := range result.RelevantQuotes {
		if v, ok := verify(q, evidence); ok {
			validated = append(validated, v)
		} else {
			slog.Info("grounding: dropped unverifiable quote", "preview", truncate(q.Text, 30))
		}
	}

	result.RelevantQuotes = validated

	if adjustConfidence {
		result.Confidence, result.Rationale = adjustedConfidence(original, len(validated), result.Confidence, result.Rationale)
	}

	return result
}

func verify(q analysis.Quote, evidence []retrieval.Result) (analysis.Quote, bool) {
	norm := normalize.Text(q.Text)
	if len(norm) < minQuoteChars {
		return analysis.Quote{}, false
	}

	for _, e := range evidence {
		if contains(e.Chunk.NormalizedText, norm) {
			start, end := e.Chunk.PageStart, e.Chunk.PageEnd
			return analysis.Quote{Text: q.Text, PageStart: start, PageEnd: end, Validated: true}, true
		}
	}

	for i := range evidence {
		for j := range evidence {
			if i == j {
				continue
			}
			a, b := evidence[i].Chunk, evidence[j].Chunk
			if a.PageEnd+1 != b.PageStart {
				continue
			}
			joined := a.NormalizedText + " " + b.NormalizedText
			if contains(joined, norm) {
				return analysis.Quote{Text: q.Text, PageStart: a.PageStart, PageEnd: b.PageEnd, Validated: true}, true
			}
		}
	}

	return analysis.Quote{}, false
}

func contains(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	return indexOf(haystack, needle) >= 0
}

func indexOf(haystack, needle string) int {
	n, m := len(haystack), len(needle)
	if m > n {
		return -1
	}
	for i := 0; i+m <= n; i++ {
		if haystack[i:i+m] == needle {
			return i
		}
	}
	return -1
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

const noQuotesRationale = "No verifiable verbatim quotes found in retrieved evidence"

// adjustedConfidence applies the removal-penalty table from the component
// design: unchanged when nothing was emitted or nothing was removed, floored
// at 20 on partial removal, capped at 30 when every quote was dropped.
func adjustedConfidence(original, validated, confidence int, rationale string) (int, string) {
	removed := original - validated

	switch {
	case original == 0:
		return confidence, rationale
	case removed == 0:
		return confidence, rationale
	case removed == original:
		if confidence > 30 {
			confidence = 30
		}
		return confidence, appendNote(rationale, noQuotesRationale)
	default:
		penalty := removed * 10
		if penalty > 20 {
			penalty = 20
		}
		confidence -= penalty
		if confidence < 20 {
			confidence = 20
		}
		return confidence, appendNote(rationale, fmt.Sprintf("[%d of %d quotes removed during validation]", removed, original))
	}
}

func appendNote(rationale, note string) string {
	if rationale == "" {
		return note
	}
	return rationale + " " + note
}
