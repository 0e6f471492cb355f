package compliance

import "errors"

// Error kinds that escape the core to its collaborator. No other error
// kinds are surfaced; internal sentinels below are always wrapped into one
// of these three via fmt.Errorf("...: %w", ...) before returning.
var (
	// ErrParser is returned when PDF bytes cannot be parsed. Fatal to the job.
	ErrParser = errors.New("compliance: parser error")

	// ErrLLM is the kind for an LLM call that fails after exhausting
	// retries. Engine's operations do not return it: a failed analysis call
	// yields that requirement's fallback result, and a failed chat call
	// yields the canned "cannot find" answer.
	ErrLLM = errors.New("compliance: llm error")

	// ErrInternal covers anything else unexpected in the core.
	ErrInternal = errors.New("compliance: internal error")
)

// errEmptyDocument is wrapped into ErrParser when a PDF parses without
// error but yields no pages at all.
var errEmptyDocument = errors.New("document produced no extractable pages")
