package compliance

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/brunobiangulo/compliance/analysis"
	"github.com/brunobiangulo/compliance/chunker"
	"github.com/brunobiangulo/compliance/llm"
	"github.com/brunobiangulo/compliance/parser"
)

// fixturePDFPages approximates a contract whose text touches each of the
// five catalog requirements with a single clear sentence, so a real BM25
// query retrieves a chunk containing it.
func fixturePDFPages() []string {
	return []string{
		"SECURITY REQUIREMENTS\n\nAll passwords must be at least twelve characters long, include a mix of letters, numbers, and symbols, and must be rotated every ninety days. Passwords are stored using a salted hash.",
		"IT ASSET MANAGEMENT\n\nThe vendor shall maintain an inventory of all hardware and software assets, including ownership records and a documented disposal process for decommissioned equipment.",
		"PERSONNEL SECURITY\n\nAll personnel must complete annual security awareness training and undergo a background check before being granted access to any system.",
		"DATA PROTECTION\n\nAll data in transit shall be encrypted using TLS version 1.2 or higher. Plaintext transmission of covered data is prohibited.",
		"NETWORK ACCESS\n\nAccess to network resources requires authentication and role-based authorization. Administrative accounts require multi-factor authentication.",
	}
}

func fakeCompliantResponses() []string {
	return []string{
		`{"compliance_state":"Fully Compliant","confidence":90,"relevant_quotes":[{"text":"All passwords must be at least twelve characters long, include a mix of letters, numbers, and symbols, and must be rotated every ninety days."}],"rationale":"Meets all criteria."}`,
		`{"compliance_state":"Fully Compliant","confidence":85,"relevant_quotes":[{"text":"The vendor shall maintain an inventory of all hardware and software assets, including ownership records and a documented disposal process for decommissioned equipment."}],"rationale":"Inventory and disposal both covered."}`,
		`{"compliance_state":"Fully Compliant","confidence":88,"relevant_quotes":[{"text":"All personnel must complete annual security awareness training and undergo a background check before being granted access to any system."}],"rationale":"Both training and screening required."}`,
		`{"compliance_state":"Fully Compliant","confidence":92,"relevant_quotes":[{"text":"All data in transit shall be encrypted using TLS version 1.2 or higher."}],"rationale":"Protocol and version specified."}`,
		`{"compliance_state":"Fully Compliant","confidence":87,"relevant_quotes":[{"text":"Access to network resources requires authentication and role-based authorization."}],"rationale":"Authentication and role-based authorization required."}`,
	}
}

func newTestEngine(fake *llm.Fake) *engine {
	return &engine{
		cfg:       DefaultConfig().withDefaults(),
		completer: fake,
		chunker:   chunker.New(chunker.Config{PagesPerChunk: 1}),
		analyzer:  analysis.New(fake, 60),
	}
}

func TestRunAnalysisAbortsOnContextCancellationInsteadOfPartialResults(t *testing.T) {
	fake := &llm.Fake{Err: context.Canceled}
	e := newTestEngine(fake)
	doc, err := parser.FromPages("contract.pdf", fixturePDFPages())
	if err != nil {
		t.Fatalf("FromPages: %v", err)
	}
	chunks := e.chunker.Chunk(doc)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := e.analyzeAll(ctx, chunks)
	if !errors.Is(err, ErrInternal) {
		t.Fatalf("err = %v, want wrapped ErrInternal", err)
	}
	if results != nil {
		t.Errorf("results = %v, want nil on cancellation, not a partial catalog", results)
	}
}

func TestRunAnalysisAllCompliantContract(t *testing.T) {
	fake := &llm.Fake{Responses: fakeCompliantResponses()}
	e := newTestEngine(fake)
	doc, err := parser.FromPages("contract.pdf", fixturePDFPages())
	if err != nil {
		t.Fatalf("FromPages: %v", err)
	}
	chunks := e.chunker.Chunk(doc)

	results, err := e.analyzeAll(context.Background(), chunks)
	if err != nil {
		t.Fatalf("analyzeAll: %v", err)
	}

	if len(results) != 5 {
		t.Fatalf("len(results) = %d, want 5", len(results))
	}
	for _, r := range results {
		if r.ComplianceState != analysis.StateFullyCompliant {
			t.Errorf("requirement %s: ComplianceState = %q, want Fully Compliant", r.RequirementID, r.ComplianceState)
		}
		if len(r.RelevantQuotes) == 0 {
			t.Errorf("requirement %s: expected at least one validated quote", r.RequirementID)
		}
	}
}

func TestRunAnalysisHallucinatedQuoteLowersConfidence(t *testing.T) {
	compliant := fakeCompliantResponses()
	fake := &llm.Fake{Responses: []string{
		`{"compliance_state":"Fully Compliant","confidence":95,"relevant_quotes":[{"text":"Annual penetration testing is required by an independent third party."}],"rationale":"ok"}`,
		compliant[1], compliant[2], compliant[3], compliant[4],
	}}
	e := newTestEngine(fake)
	doc, err := parser.FromPages("contract.pdf", fixturePDFPages())
	if err != nil {
		t.Fatalf("FromPages: %v", err)
	}
	chunks := e.chunker.Chunk(doc)

	results, err := e.analyzeAll(context.Background(), chunks)
	if err != nil {
		t.Fatalf("analyzeAll: %v", err)
	}

	first := results[0]
	if len(first.RelevantQuotes) != 0 {
		t.Fatalf("expected hallucinated quote dropped, got %v", first.RelevantQuotes)
	}
	if first.Confidence > 30 {
		t.Errorf("Confidence = %d, want <= 30 after all quotes dropped", first.Confidence)
	}
	if !strings.Contains(first.Rationale, "No verifiable verbatim quotes") {
		t.Errorf("Rationale = %q, want grounding note appended", first.Rationale)
	}
}

func TestRunAnalysisMalformedJSONTwiceYieldsFallback(t *testing.T) {
	compliant := fakeCompliantResponses()
	responses := []string{"<<not json>>", "<<still not json>>"}
	responses = append(responses, compliant[1:]...)
	fake := &llm.Fake{Responses: responses}
	e := newTestEngine(fake)
	doc, err := parser.FromPages("contract.pdf", fixturePDFPages())
	if err != nil {
		t.Fatalf("FromPages: %v", err)
	}
	chunks := e.chunker.Chunk(doc)

	results, err := e.analyzeAll(context.Background(), chunks)
	if err != nil {
		t.Fatalf("analyzeAll: %v", err)
	}

	first := results[0]
	if first.ComplianceState != analysis.StateNonCompliant || first.Confidence != 10 || len(first.RelevantQuotes) != 0 {
		t.Errorf("fallback result = %+v, want Non-Compliant/10/no quotes", first)
	}
	if first.Rationale != "Model output could not be parsed" {
		t.Errorf("Rationale = %q, want fallback text", first.Rationale)
	}
}

func TestRunAnalysisScannedPDFFlagsNeedsOCR(t *testing.T) {
	// Pages with very little text per page trigger needs_ocr; the pipeline
	// still runs and produces five results.
	fake := &llm.Fake{Responses: []string{
		`{"compliance_state":"Non-Compliant","confidence":15,"relevant_quotes":[],"rationale":"no evidence"}`,
		`{"compliance_state":"Non-Compliant","confidence":15,"relevant_quotes":[],"rationale":"no evidence"}`,
		`{"compliance_state":"Non-Compliant","confidence":15,"relevant_quotes":[],"rationale":"no evidence"}`,
		`{"compliance_state":"Non-Compliant","confidence":15,"relevant_quotes":[],"rationale":"no evidence"}`,
		`{"compliance_state":"Non-Compliant","confidence":15,"relevant_quotes":[],"rationale":"no evidence"}`,
	}}
	e := newTestEngine(fake)
	doc, err := parser.FromPages("scanned.pdf", []string{"x", "x", "x"})
	if err != nil {
		t.Fatalf("FromPages: %v", err)
	}
	if !doc.Metadata.NeedsOCR {
		t.Fatal("expected NeedsOCR=true for near-empty pages")
	}
	chunks := e.chunker.Chunk(doc)

	results, err := e.analyzeAll(context.Background(), chunks)
	if err != nil {
		t.Fatalf("analyzeAll: %v", err)
	}
	if len(results) != 5 {
		t.Fatalf("len(results) = %d, want 5", len(results))
	}
	for _, r := range results {
		if r.ComplianceState != analysis.StateNonCompliant {
			t.Errorf("requirement %s: ComplianceState = %q, want Non-Compliant for near-empty document", r.RequirementID, r.ComplianceState)
		}
	}
}
