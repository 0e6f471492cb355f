package llm

import "context"

// Fake is a Completer for tests. Responses are returned in call order; once
// exhausted, Err is returned for any further call, or
// context.DeadlineExceeded when Err is nil.
type Fake struct {
	Responses []string
	Err       error
	Prompts   []string

	calls int
}

func (f *Fake) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	f.Prompts = append(f.Prompts, prompt)
	if f.calls >= len(f.Responses) {
		if f.Err != nil {
			return "", f.Err
		}
		return "", context.DeadlineExceeded
	}
	resp := f.Responses[f.calls]
	f.calls++
	return resp, nil
}
