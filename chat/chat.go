// Package chat answers free-form user questions over a parsed document by
// reusing the same retrieval and grounding machinery as the compliance
// pipeline, scoped to a per-session append-only message history.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/brunobiangulo/compliance/analysis"
	"github.com/brunobiangulo/compliance/chunker"
	"github.com/brunobiangulo/compliance/grounding"
	"github.com/brunobiangulo/compliance/llm"
	"github.com/brunobiangulo/compliance/normalize"
	"github.com/brunobiangulo/compliance/retrieval"
)

// ErrAborted is returned when ctx is cancelled mid-turn. The turn is
// discarded: nothing is appended to the session's history.
var ErrAborted = errors.New("chat: aborted")

const historyWindow = 4

// Role identifies the speaker of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single turn in a session's history.
type Message struct {
	Role    Role
	Content string
}

// Session is an append-only, in-memory conversation scoped to one document.
// Expiry and persistence are the orchestrator's concern.
type Session struct {
	ID         string
	DocumentID string
	History    []Message
}

// Context wraps the document's BM25 index for reuse across chat turns. It
// borrows the chunk slice built once by the orchestrator; it must not
// outlive it.
type Context struct {
	Engine *retrieval.Engine
	Chunks []chunker.Chunk
}

// NewContext builds a Context from a document's chunk list.
func NewContext(chunks []chunker.Chunk) *Context {
	return &Context{Engine: retrieval.New(chunks), Chunks: chunks}
}

// Answer is the result of one chat turn.
type Answer struct {
	Text           string
	RelevantQuotes []analysis.Quote
	Confidence     int
}

// Service answers user messages against a Context using completer.
type Service struct {
	completer      llm.Completer
	timeoutSeconds int
}

// New returns a chat Service backed by completer. timeoutSeconds bounds
// every LLM call the Service issues; zero uses defaultTimeoutSeconds.
func New(completer llm.Completer, timeoutSeconds int) *Service {
	if timeoutSeconds == 0 {
		timeoutSeconds = defaultTimeoutSeconds
	}
	return &Service{completer: completer, timeoutSeconds: timeoutSeconds}
}

const defaultTimeoutSeconds = 60

const fallbackAnswer = "I cannot find that information in the contract."

// cannotFindPhrases are matched as a substring anywhere in the normalized
// answer, not just at the start, per the chat honesty predicate.
var cannotFindPhrases = []string{"cannot find", "can't find", "not found", "no information"}

// Answer appends userMessage to session, retrieves evidence, calls the LLM,
// grounds the response's quotes, computes chat confidence, and appends the
// assistant's reply before returning. If ctx is cancelled during either LLM
// call, Answer aborts and returns ErrAborted without touching session: the
// user turn already appended is rolled back rather than left as a dangling
// half-answered turn.
func (s *Service) Answer(ctx context.Context, session *Session, userMessage string, chatCtx *Context) (Answer, error) {
	session.History = append(session.History, Message{Role: RoleUser, Content: userMessage})

	results := chatCtx.Engine.Search(userMessage, 5)

	prompt := buildPrompt(session, userMessage, results)

	raw, err := s.completer.Complete(ctx, prompt, llm.Options{Temperature: 0.3, JSONMode: true, Timeout: s.timeoutSeconds})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			session.History = session.History[:len(session.History)-1]
			return Answer{}, fmt.Errorf("%w: %w", ErrAborted, ctxErr)
		}
	}
	var parsed chatResponse
	ok := false
	if err == nil {
		parsed, ok = parseResponse(raw)
		if !ok {
			repaired, rerr := s.completer.Complete(ctx, buildRepairPrompt(raw), llm.Options{Temperature: 0.3, JSONMode: true, Timeout: s.timeoutSeconds})
			if rerr != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					session.History = session.History[:len(session.History)-1]
					return Answer{}, fmt.Errorf("%w: %w", ErrAborted, ctxErr)
				}
			}
			if rerr == nil {
				parsed, ok = parseResponse(repaired)
			}
		}
	}
	if !ok {
		parsed = chatResponse{Answer: fallbackAnswer}
	}

	groundedResult := grounding.Ground(analysis.Result{RelevantQuotes: parsed.RelevantQuotes}, results, false)

	answer := Answer{
		Text:           parsed.Answer,
		RelevantQuotes: groundedResult.RelevantQuotes,
	}
	answer.Confidence = computeConfidence(answer.Text, results, answer.RelevantQuotes)

	session.History = append(session.History, Message{Role: RoleAssistant, Content: answer.Text})

	return answer, nil
}

func computeConfidence(answerText string, evidence []retrieval.Result, validated []analysis.Quote) int {
	normalized := normalize.Text(answerText)
	for _, phrase := range cannotFindPhrases {
		if strings.Contains(normalized, phrase) {
			return 0
		}
	}
	if len(evidence) == 0 {
		return 30
	}
	confidence := 70 + 10*len(validated)
	if confidence > 100 {
		confidence = 100
	}
	return confidence
}

func buildPrompt(session *Session, userMessage string, evidence []retrieval.Result) string {
	var b strings.Builder
	b.WriteString(chatSystemPrompt)

	history := session.History
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	if len(history) > 0 {
		b.WriteString("\n\nCONVERSATION SO FAR:\n")
		for _, m := range history {
			fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
		}
	}

	b.WriteString("\nEVIDENCE (use only these excerpts; do not rely on outside knowledge):\n")
	if len(evidence) == 0 {
		b.WriteString("(no evidence retrieved)\n")
	}
	for _, e := range evidence {
		fmt.Fprintf(&b, "\n[pages %d-%d]\n%s\n", e.Chunk.PageStart, e.Chunk.PageEnd, e.Chunk.RawText)
	}

	fmt.Fprintf(&b, "\nQUESTION:\n%s\n", userMessage)
	return b.String()
}

const chatSystemPrompt = `You are a contract assistant answering questions about a single uploaded contract. Answer only from the evidence excerpts below; never use outside knowledge. If the evidence is insufficient to answer, reply with a sentence beginning exactly "I cannot find".

Respond with a single JSON object, no other text, matching exactly this schema:
{
  "answer": string,
  "relevant_quotes": [{"text": string, "page_start": int, "page_end": int}]
}

Quotes must be copied verbatim from the evidence excerpts.`

func buildRepairPrompt(badOutput string) string {
	return fmt.Sprintf(`Your previous response was not valid JSON matching the required schema. Here is what you sent:

%s

Reply again with ONLY a single valid JSON object matching this schema, no prose, no code fences:
{
  "answer": string,
  "relevant_quotes": [{"text": string, "page_start": int, "page_end": int}]
}`, badOutput)
}

type chatResponse struct {
	Answer         string           `json:"answer"`
	RelevantQuotes []analysis.Quote `json:"relevant_quotes"`
}

var codeBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

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

func parseResponse(raw string) (chatResponse, bool) {
	jsonStr, err := extractJSON(raw)
	if err != nil {
		return chatResponse{}, false
	}
	var r chatResponse
	if err := json.Unmarshal([]byte(jsonStr), &r); err != nil {
		return chatResponse{}, false
	}
	return r, true
}
