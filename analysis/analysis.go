// Package analysis issues the compliance prompt over retrieved evidence and
// parses the model's JSON judgment. It never validates quotes against
// evidence text; that is the grounding package's job.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/brunobiangulo/compliance/llm"
	"github.com/brunobiangulo/compliance/retrieval"
)

// Quote is a single verbatim supporting quote as emitted by the model,
// before grounding.
type Quote struct {
	Text      string `json:"text"`
	PageStart int    `json:"page_start"`
	PageEnd   int    `json:"page_end"`
	Validated bool   `json:"validated"`
}

// Result is the raw (ungrounded) compliance judgment for one requirement.
type Result struct {
	ComplianceQuestion string  `json:"compliance_question"`
	ComplianceState    string  `json:"compliance_state"`
	Confidence         int     `json:"confidence"`
	RelevantQuotes     []Quote `json:"relevant_quotes"`
	Rationale          string   `json:"rationale"`
	EvidenceChunksUsed []string `json:"evidence_chunks_used"`
}

const (
	StateFullyCompliant    = "Fully Compliant"
	StatePartiallyComplete = "Partially Compliant"
	StateNonCompliant      = "Non-Compliant"
)

const fallbackRationale = "Model output could not be parsed"

// Requirement is the frozen, per-requirement behavior the analyzer issues a
// prompt for. BM25Query is the curated retrieval query for this requirement;
// it is not a user question and is not sent to the model.
type Requirement struct {
	ID                 string
	ComplianceQuestion string
	Rubric             string
	BM25Query          string
}

// Analyzer turns retrieved evidence into a ComplianceResult via the LLM.
type Analyzer struct {
	completer      llm.Completer
	timeoutSeconds int
}

// New returns an Analyzer backed by completer. timeoutSeconds bounds every
// LLM call the Analyzer issues; zero uses defaultTimeoutSeconds.
func New(completer llm.Completer, timeoutSeconds int) *Analyzer {
	if timeoutSeconds == 0 {
		timeoutSeconds = defaultTimeoutSeconds
	}
	return &Analyzer{completer: completer, timeoutSeconds: timeoutSeconds}
}

const defaultTimeoutSeconds = 60

// Analyze issues the compliance prompt for req over evidence and returns the
// coerced, clamped, but not-yet-grounded result. If ctx is cancelled during
// either LLM call, Analyze returns immediately with ctx's error wrapped; the
// caller must treat that as job failure, not a malformed-response fallback.
func (a *Analyzer) Analyze(ctx context.Context, req Requirement, evidence []retrieval.Result) (Result, error) {
	chunkIDs := make([]string, len(evidence))
	for i, e := range evidence {
		chunkIDs[i] = e.Chunk.ID
	}

	prompt := buildPrompt(req, evidence)

	raw, err := a.completer.Complete(ctx, prompt, llm.Options{
		Temperature: 0.3,
		JSONMode:    true,
		Timeout:     a.timeoutSeconds,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, fmt.Errorf("analysis: %w", ctxErr)
		}
		return fallback(req, chunkIDs), fmt.Errorf("analysis: llm call failed: %w", err)
	}

	result, ok := parseResponse(raw)
	if !ok {
		slog.Warn("analysis: malformed response, issuing repair prompt", "requirement", req.ID)
		repaired, err := a.completer.Complete(ctx, buildRepairPrompt(raw), llm.Options{
			Temperature: 0.3,
			JSONMode:    true,
			Timeout:     a.timeoutSeconds,
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Result{}, fmt.Errorf("analysis: %w", ctxErr)
			}
		}
		if err == nil {
			if r2, ok2 := parseResponse(repaired); ok2 {
				result, ok = r2, true
			}
		}
	}

	if !ok {
		slog.Warn("analysis: falling back after failed repair", "requirement", req.ID)
		return fallback(req, chunkIDs), nil
	}

	result.ComplianceQuestion = req.ComplianceQuestion
	result.EvidenceChunksUsed = chunkIDs
	coerceState(&result)
	clampConfidence(&result)
	return result, nil
}

func fallback(req Requirement, chunkIDs []string) Result {
	return Result{
		ComplianceQuestion: req.ComplianceQuestion,
		ComplianceState:    StateNonCompliant,
		Confidence:         10,
		RelevantQuotes:     nil,
		Rationale:          fallbackRationale,
		EvidenceChunksUsed: chunkIDs,
	}
}

func coerceState(r *Result) {
	switch strings.ToLower(strings.TrimSpace(r.ComplianceState)) {
	case "fully compliant":
		r.ComplianceState = StateFullyCompliant
	case "partially compliant":
		r.ComplianceState = StatePartiallyComplete
	case "non-compliant", "noncompliant", "non compliant":
		r.ComplianceState = StateNonCompliant
	default:
		r.ComplianceState = StateNonCompliant
		r.Confidence = 10
		r.RelevantQuotes = nil
		r.Rationale = fallbackRationale
	}
}

func clampConfidence(r *Result) {
	if r.Confidence < 0 {
		r.Confidence = 0
	}
	if r.Confidence > 100 {
		r.Confidence = 100
	}
}

func buildPrompt(req Requirement, evidence []retrieval.Result) string {
	var b strings.Builder
	b.WriteString(systemRole)
	b.WriteString("\n\nCOMPLIANCE QUESTION:\n")
	b.WriteString(req.ComplianceQuestion)
	b.WriteString("\n\nRUBRIC:\n")
	b.WriteString(req.Rubric)
	b.WriteString("\n\nEVIDENCE (use only these excerpts; do not rely on outside knowledge):\n")
	if len(evidence) == 0 {
		b.WriteString("(no evidence retrieved)\n")
	}
	for _, e := range evidence {
		fmt.Fprintf(&b, "\n[pages %d-%d]\n%s\n", e.Chunk.PageStart, e.Chunk.PageEnd, e.Chunk.RawText)
	}
	return b.String()
}

const systemRole = `You are a contract compliance analyst. Judge the contract's compliance with a single security requirement using only the evidence excerpts provided.

Respond with a single JSON object, no other text, matching exactly this schema:
{
  "compliance_state": "Fully Compliant" | "Partially Compliant" | "Non-Compliant",
  "confidence": integer 0-100,
  "relevant_quotes": [{"text": string, "page_start": int, "page_end": int}],
  "rationale": string
}

Quotes must be copied verbatim from the evidence excerpts. Do not paraphrase a quote. If the evidence does not address the requirement, say so in the rationale and use Non-Compliant with low confidence.`

func buildRepairPrompt(badOutput string) string {
	return fmt.Sprintf(`Your previous response was not valid JSON matching the required schema. Here is what you sent:

%s

Reply again with ONLY a single valid JSON object matching this schema, no prose, no code fences:
{
  "compliance_state": "Fully Compliant" | "Partially Compliant" | "Non-Compliant",
  "confidence": integer 0-100,
  "relevant_quotes": [{"text": string, "page_start": int, "page_end": int}],
  "rationale": string
}`, badOutput)
}

var codeBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

// extractJSON strips markdown code fences and leading/trailing prose around
// the first JSON object in raw.
func extractJSON(raw string) (string, error) {
	if m := codeBlockRe.FindStringSubmatch(raw); len(m) > 1 {
		raw = m[1]
	}

	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "{") {
		return raw, nil
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1], nil
	}
	return "", fmt.Errorf("no JSON object found in response")
}

func parseResponse(raw string) (Result, bool) {
	jsonStr, err := extractJSON(raw)
	if err != nil {
		return Result{}, false
	}

	var r Result
	if err := json.Unmarshal([]byte(jsonStr), &r); err != nil {
		return Result{}, false
	}
	return r, true
}
