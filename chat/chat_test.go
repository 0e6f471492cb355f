package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/brunobiangulo/compliance/chunker"
	"github.com/brunobiangulo/compliance/llm"
)

func testChunks() []chunker.Chunk {
	return []chunker.Chunk{
		{
			ID:             "doc:chunk_0",
			RawText:        "All passwords must be at least twelve characters long.",
			NormalizedText: "all passwords must be at least twelve characters long.",
			PageStart:      1,
			PageEnd:        1,
		},
	}
}

func TestAnswerGroundsQuoteAndComputesConfidence(t *testing.T) {
	fake := &llm.Fake{Responses: []string{
		`{"answer":"Passwords must be at least twelve characters long.","relevant_quotes":[{"text":"All passwords must be at least twelve characters long."}]}`,
	}}
	svc := New(fake, 60)
	session := &Session{ID: "s1", DocumentID: "doc"}
	ctx := NewContext(testChunks())

	answer, err := svc.Answer(context.Background(), session, "How long must passwords be?", ctx)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if len(answer.RelevantQuotes) != 1 || !answer.RelevantQuotes[0].Validated {
		t.Fatalf("expected one validated quote, got %+v", answer.RelevantQuotes)
	}
	if answer.Confidence != 80 {
		t.Errorf("Confidence = %d, want 80 (70 + 10*1)", answer.Confidence)
	}
}

func TestAnswerCannotFindPredicateZeroesConfidence(t *testing.T) {
	fake := &llm.Fake{Responses: []string{
		`{"answer":"I cannot find that information in the contract.","relevant_quotes":[]}`,
	}}
	svc := New(fake, 60)
	session := &Session{ID: "s1", DocumentID: "doc"}
	ctx := NewContext(testChunks())

	answer, err := svc.Answer(context.Background(), session, "What is the cryptocurrency policy?", ctx)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if answer.Confidence != 0 {
		t.Errorf("Confidence = %d, want 0", answer.Confidence)
	}
	if len(answer.RelevantQuotes) != 0 {
		t.Errorf("RelevantQuotes = %v, want empty", answer.RelevantQuotes)
	}
}

func TestAnswerCannotFindMatchedAnywhereInSentence(t *testing.T) {
	fake := &llm.Fake{Responses: []string{
		`{"answer":"Based on the evidence, I can't find any mention of that clause here.","relevant_quotes":[]}`,
	}}
	svc := New(fake, 60)
	session := &Session{ID: "s1", DocumentID: "doc"}
	ctx := NewContext(testChunks())

	answer, err := svc.Answer(context.Background(), session, "What about arbitration?", ctx)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if answer.Confidence != 0 {
		t.Errorf("Confidence = %d, want 0 for mid-sentence cannot-find match", answer.Confidence)
	}
}

func TestAnswerFallsBackOnMalformedJSONTwice(t *testing.T) {
	fake := &llm.Fake{Responses: []string{"<<bad>>", "<<still bad>>"}}
	svc := New(fake, 60)
	session := &Session{ID: "s1", DocumentID: "doc"}
	ctx := NewContext(testChunks())

	answer, err := svc.Answer(context.Background(), session, "anything", ctx)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if answer.Text != fallbackAnswer {
		t.Errorf("Text = %q, want %q", answer.Text, fallbackAnswer)
	}
}

func TestAnswerAppendsUserAndAssistantToHistory(t *testing.T) {
	fake := &llm.Fake{Responses: []string{`{"answer":"yes","relevant_quotes":[]}`}}
	svc := New(fake, 60)
	session := &Session{ID: "s1", DocumentID: "doc"}
	ctx := NewContext(testChunks())

	svc.Answer(context.Background(), session, "question one", ctx)

	if len(session.History) != 2 {
		t.Fatalf("len(History) = %d, want 2", len(session.History))
	}
	if session.History[0].Role != RoleUser || session.History[0].Content != "question one" {
		t.Errorf("History[0] = %+v, want user question", session.History[0])
	}
	if session.History[1].Role != RoleAssistant {
		t.Errorf("History[1].Role = %q, want assistant", session.History[1].Role)
	}
}

func TestAnswerWindowsHistoryToLastFourMessages(t *testing.T) {
	fake := &llm.Fake{Responses: []string{
		`{"answer":"a1","relevant_quotes":[]}`,
		`{"answer":"a2","relevant_quotes":[]}`,
		`{"answer":"a3","relevant_quotes":[]}`,
	}}
	svc := New(fake, 60)
	session := &Session{ID: "s1", DocumentID: "doc"}
	ctx := NewContext(testChunks())

	svc.Answer(context.Background(), session, "q1", ctx)
	svc.Answer(context.Background(), session, "q2", ctx)
	svc.Answer(context.Background(), session, "q3", ctx)

	if len(session.History) != 6 {
		t.Fatalf("len(History) = %d, want 6", len(session.History))
	}
	// The third prompt is built with five messages in history (q1 a1 q2 a2
	// q3); only the last four are spliced in, so q1 is left out.
	if strings.Contains(fake.Prompts[2], "user: q1\n") {
		t.Errorf("third prompt contains %q, want it outside the window", "user: q1")
	}
	if !strings.Contains(fake.Prompts[2], "assistant: a1\n") {
		t.Errorf("third prompt lacks %q, want it inside the window", "assistant: a1")
	}
	if historyWindow != 4 {
		t.Errorf("historyWindow = %d, want 4", historyWindow)
	}
}

func TestAnswerZeroEvidenceYieldsThirtyConfidenceWhenNotCannotFind(t *testing.T) {
	fake := &llm.Fake{Responses: []string{`{"answer":"The contract specifies a broad policy.","relevant_quotes":[]}`}}
	svc := New(fake, 60)
	session := &Session{ID: "s1", DocumentID: "doc"}
	ctx := NewContext(nil)

	answer, err := svc.Answer(context.Background(), session, "anything", ctx)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if answer.Confidence != 30 {
		t.Errorf("Confidence = %d, want 30 for zero evidence", answer.Confidence)
	}
}

func TestAnswerAbortsOnContextCancellationInsteadOfFallingBack(t *testing.T) {
	fake := &llm.Fake{Err: context.Canceled}
	svc := New(fake, 60)
	session := &Session{ID: "s1", DocumentID: "doc"}
	chatCtx := NewContext(testChunks())

	cancelledCtx, cancel := context.WithCancel(context.Background())
	cancel()

	answer, err := svc.Answer(cancelledCtx, session, "anything", chatCtx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want wrapped context.Canceled", err)
	}
	if answer.Text != "" {
		t.Errorf("answer = %+v, want zero value on cancellation", answer)
	}
	if len(session.History) != 0 {
		t.Errorf("len(History) = %d, want 0 (cancelled turn must be rolled back, not surfaced)", len(session.History))
	}
}
