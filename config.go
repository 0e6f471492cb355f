package compliance

import "github.com/brunobiangulo/compliance/llm"

// Config holds all configuration for the compliance engine.
type Config struct {
	// LLM is the OpenAI-compatible completion endpoint used for both
	// analysis and chat. There is exactly one model in this configuration;
	// the core has no notion of separate chat/embedding/vision providers.
	LLM LLMConfig `json:"llm" yaml:"llm"`

	// RetrievalTopK overrides the number of chunks retrieved per requirement.
	// Zero uses the default of 5. Chat turns always retrieve 5 chunks,
	// whatever this is set to.
	RetrievalTopK int `json:"retrieval_top_k" yaml:"retrieval_top_k"`

	// LLMTimeoutSeconds bounds each individual LLM call. Zero uses the
	// default of 60 seconds.
	LLMTimeoutSeconds int `json:"llm_timeout_seconds" yaml:"llm_timeout_seconds"`

	// PagesPerChunk and OverlapPages configure the chunker. Zero uses the
	// default of one page per chunk with no overlap. Tunable but have no
	// effect on the correctness of downstream stages.
	PagesPerChunk int `json:"pages_per_chunk" yaml:"pages_per_chunk"`
	OverlapPages  int `json:"overlap_pages" yaml:"overlap_pages"`
}

// LLMConfig configures the OpenAI-compatible completion endpoint.
type LLMConfig struct {
	Model   string `json:"model" yaml:"model"`
	BaseURL string `json:"base_url" yaml:"base_url"`
	APIKey  string `json:"api_key" yaml:"api_key"`
}

const (
	defaultRetrievalTopK     = 5
	defaultLLMTimeoutSeconds = 60
)

// DefaultConfig returns a Config with sensible defaults for a local
// OpenAI-compatible server.
func DefaultConfig() Config {
	return Config{
		LLM: LLMConfig{
			Model:   "llama3.1:8b",
			BaseURL: "http://localhost:11434",
		},
		RetrievalTopK:     defaultRetrievalTopK,
		LLMTimeoutSeconds: defaultLLMTimeoutSeconds,
		PagesPerChunk:     1,
	}
}

func (c Config) withDefaults() Config {
	if c.RetrievalTopK == 0 {
		c.RetrievalTopK = defaultRetrievalTopK
	}
	if c.LLMTimeoutSeconds == 0 {
		c.LLMTimeoutSeconds = defaultLLMTimeoutSeconds
	}
	if c.PagesPerChunk == 0 {
		c.PagesPerChunk = 1
	}
	return c
}

func (c LLMConfig) toLLMConfig() llm.Config {
	return llm.Config{Model: c.Model, BaseURL: c.BaseURL, APIKey: c.APIKey}
}
