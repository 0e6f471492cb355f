// Package compliance analyzes an uploaded contract PDF against a fixed
// catalog of security requirements, and answers free-form chat questions
// over the same parsed document, by composing the parser, chunker,
// retrieval, analysis, and grounding packages into one evidence-first
// pipeline.
package compliance

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/brunobiangulo/compliance/analysis"
	"github.com/brunobiangulo/compliance/chat"
	"github.com/brunobiangulo/compliance/chunker"
	"github.com/brunobiangulo/compliance/grounding"
	"github.com/brunobiangulo/compliance/llm"
	"github.com/brunobiangulo/compliance/parser"
	"github.com/brunobiangulo/compliance/retrieval"
)

// AnalysisResult is the engine's public, grounded per-requirement judgment.
type AnalysisResult struct {
	RequirementID      string           `json:"requirement_id"`
	ComplianceQuestion string           `json:"compliance_question"`
	ComplianceState    string           `json:"compliance_state"`
	Confidence         int              `json:"confidence"`
	RelevantQuotes     []analysis.Quote `json:"relevant_quotes"`
	Rationale          string           `json:"rationale"`
	EvidenceChunksUsed []string         `json:"evidence_chunks_used"`
}

// RunAnalysisResult is everything run_analysis produces: the parsed
// document, its chunks, and one grounded result per requirement.
type RunAnalysisResult struct {
	Document *parser.Document
	Chunks   []chunker.Chunk
	Results  []AnalysisResult
}

// Engine is the compliance core's entry point.
type Engine interface {
	// RunAnalysis parses pdfBytes, chunks it, and evaluates it against the
	// fixed requirement catalog. Returns ErrParser for unreadable PDFs and
	// ErrInternal if ctx is cancelled before every requirement is judged;
	// on either error no partial result set is returned.
	RunAnalysis(ctx context.Context, pdfBytes []byte, filename string) (*RunAnalysisResult, error)

	// BuildChatContext wraps chunks' BM25 index for reuse across chat turns.
	BuildChatContext(chunks []chunker.Chunk) *chat.Context

	// ChatAnswer answers userMessage against chatCtx and appends both the
	// question and the answer to session. Returns ErrInternal if ctx is
	// cancelled mid-turn, in which case session is left unchanged.
	ChatAnswer(ctx context.Context, session *chat.Session, userMessage string, chatCtx *chat.Context) (chat.Answer, error)
}

type engine struct {
	cfg       Config
	completer llm.Completer
	chunker   *chunker.Chunker
	analyzer  *analysis.Analyzer
	chatSvc   *chat.Service
}

// New creates a compliance Engine from cfg.
func New(cfg Config) (Engine, error) {
	cfg = cfg.withDefaults()

	completer := llm.NewOpenAICompat(cfg.LLM.toLLMConfig())

	return &engine{
		cfg:       cfg,
		completer: completer,
		chunker: chunker.New(chunker.Config{
			PagesPerChunk: cfg.PagesPerChunk,
			OverlapPages:  cfg.OverlapPages,
		}),
		analyzer: analysis.New(completer, cfg.LLMTimeoutSeconds),
		chatSvc:  chat.New(completer, cfg.LLMTimeoutSeconds),
	}, nil
}

// RunAnalysis implements Engine.RunAnalysis.
func (e *engine) RunAnalysis(ctx context.Context, pdfBytes []byte, filename string) (*RunAnalysisResult, error) {
	doc, err := parser.Parse(pdfBytes, filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParser, err)
	}
	if doc.PageCount() == 0 {
		return nil, fmt.Errorf("%w: %v", ErrParser, errEmptyDocument)
	}

	chunks := e.chunker.Chunk(doc)
	results, err := e.analyzeAll(ctx, chunks)
	if err != nil {
		return nil, err
	}

	return &RunAnalysisResult{Document: doc, Chunks: chunks, Results: results}, nil
}

// analyzeAll runs every catalog requirement's retrieve-analyze-ground cycle
// over chunks. Split out from RunAnalysis so it can be exercised directly
// against a Document built without decoding a real PDF. If ctx is cancelled
// partway through, analyzeAll aborts immediately and returns no results: a
// cancelled job fails outright rather than surfacing a partial catalog.
func (e *engine) analyzeAll(ctx context.Context, chunks []chunker.Chunk) ([]AnalysisResult, error) {
	retriever := retrieval.New(chunks)

	results := make([]AnalysisResult, 0, len(requirementCatalog))
	for _, req := range requirementCatalog {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrInternal, ctxErr)
		}

		evidence := retriever.Search(req.BM25Query, e.cfg.RetrievalTopK)

		raw, err := e.analyzer.Analyze(ctx, req, evidence)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("%w: %v", ErrInternal, ctxErr)
			}
			slog.Warn("compliance: analysis failed for requirement, using fallback", "requirement", req.ID, "error", err)
		}

		grounded := grounding.Ground(raw, evidence, true)

		results = append(results, AnalysisResult{
			RequirementID:      req.ID,
			ComplianceQuestion: grounded.ComplianceQuestion,
			ComplianceState:    grounded.ComplianceState,
			Confidence:         grounded.Confidence,
			RelevantQuotes:     grounded.RelevantQuotes,
			Rationale:          grounded.Rationale,
			EvidenceChunksUsed: grounded.EvidenceChunksUsed,
		})
	}

	return results, nil
}

// BuildChatContext implements Engine.BuildChatContext.
func (e *engine) BuildChatContext(chunks []chunker.Chunk) *chat.Context {
	return chat.NewContext(chunks)
}

// ChatAnswer implements Engine.ChatAnswer.
func (e *engine) ChatAnswer(ctx context.Context, session *chat.Session, userMessage string, chatCtx *chat.Context) (chat.Answer, error) {
	answer, err := e.chatSvc.Answer(ctx, session, userMessage, chatCtx)
	if err != nil {
		return answer, fmt.Errorf("%w: %w", ErrInternal, err)
	}
	return answer, nil
}
