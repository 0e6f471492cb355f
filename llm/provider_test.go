package llm

import (
	"context"
	"testing"
)

func TestFakeReturnsResponsesInOrder(t *testing.T) {
	f := &Fake{Responses: []string{"first", "second"}}

	got, err := f.Complete(context.Background(), "p1", Options{})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "first" {
		t.Errorf("got %q, want %q", got, "first")
	}

	got, err = f.Complete(context.Background(), "p2", Options{})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "second" {
		t.Errorf("got %q, want %q", got, "second")
	}
}

func TestFakeRecordsPrompts(t *testing.T) {
	f := &Fake{Responses: []string{"a", "b"}}
	f.Complete(context.Background(), "prompt one", Options{})
	f.Complete(context.Background(), "prompt two", Options{})

	if len(f.Prompts) != 2 || f.Prompts[0] != "prompt one" || f.Prompts[1] != "prompt two" {
		t.Errorf("Prompts = %v, want [prompt one, prompt two]", f.Prompts)
	}
}

func TestFakeExhaustedReturnsErr(t *testing.T) {
	wantErr := context.Canceled
	f := &Fake{Responses: []string{"only"}, Err: wantErr}

	f.Complete(context.Background(), "p1", Options{})
	_, err := f.Complete(context.Background(), "p2", Options{})
	if err != wantErr {
		t.Errorf("err = %v, want %v", err, wantErr)
	}
}
