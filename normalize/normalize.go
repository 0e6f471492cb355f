// Package normalize provides the single text-normalization routine shared by
// every stage that compares or tokenizes document text: the parser (page
// text), the retriever (index and query tokens), the grounder (quotes the
// model emitted, matched by substring), and the chat service (its "cannot
// find" check on the answer).
//
// A single shared implementation is the whole point: if the chunker
// normalized text one way and the grounder normalized quotes another way, a
// verbatim quote could fail to match its source chunk for reasons that have
// nothing to do with hallucination.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// quoteReplacer maps typographic punctuation emitted by PDF text extraction
// (curly quotes, en/em dashes) to their ASCII equivalents.
var quoteReplacer = strings.NewReplacer(
	"“", `"`, "”", `"`, // “ ”
	"‘", "'", "’", "'", // ‘ ’
	"–", "-", "—", "-", // – —
)

// Text normalizes s for substring matching and retrieval tokenization:
//  1. Unicode NFC composition.
//  2. Typographic quotes/dashes to ASCII; Unicode spaces to ASCII space;
//     zero-width code points dropped.
//  3. Lowercase.
//  4. Collapse whitespace runs to a single space.
//  5. Trim leading/trailing whitespace.
//
// Text is idempotent: Text(Text(s)) == Text(s).
func Text(s string) string {
	s = norm.NFC.String(s)
	s = quoteReplacer.Replace(s)

	var b strings.Builder
	b.Grow(len(s))
	lastWasSpace := false
	for _, r := range s {
		switch {
		case isZeroWidth(r):
			continue
		case unicode.IsSpace(r):
			if !lastWasSpace {
				b.WriteByte(' ')
				lastWasSpace = true
			}
		default:
			b.WriteRune(unicode.ToLower(r))
			lastWasSpace = false
		}
	}

	return strings.TrimSpace(b.String())
}

// isZeroWidth reports whether r is a zero-width or directional-formatting
// code point that carries no visible content and should be dropped outright
// rather than collapsed to a space.
func isZeroWidth(r rune) bool {
	switch r {
	case '​', '‌', '‍', 0xFEFF, // ZWSP, ZWNJ, ZWJ, BOM
		'‎', '‏': // LRM, RLM
		return true
	}
	return false
}

// Tokens splits s into lowercase alphanumeric tokens after normalization,
// discarding empty runs. Used identically for BM25 indexing and querying so
// that the same term always maps to the same token.
func Tokens(s string) []string {
	normalized := Text(s)
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range normalized {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			cur.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}
