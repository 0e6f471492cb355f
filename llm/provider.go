// Package llm treats a language model as a single opaque text-completion
// capability. Nothing upstream of this package depends on a provider's wire
// format, chat-turn structure, or token accounting; they only ever call
// Complete with a fully-formed prompt and read back a string.
package llm

import "context"

// Completer is the only capability the rest of the module depends on.
type Completer interface {
	// Complete sends prompt to the model and returns its raw text response.
	// Options.Timeout bounds the call; Complete returns ctx.Err() or a
	// deadline error if it is exceeded.
	Complete(ctx context.Context, prompt string, opts Options) (string, error)
}

// Options configures a single completion call.
type Options struct {
	Temperature float64
	JSONMode    bool // request the provider's native JSON response mode
	Timeout     int  // seconds; zero uses the client's default
}

// Config configures a Completer backed by an OpenAI-compatible HTTP API.
type Config struct {
	Model   string
	BaseURL string
	APIKey  string
}
