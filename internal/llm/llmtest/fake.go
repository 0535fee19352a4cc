// Package llmtest provides a scripted llm.Completer for tests.
package llmtest

import (
	"context"
	"strings"
	"sync"

	"github.com/neu-planner/backend/internal/llm"
)

// Fake answers completions through Respond and records every request.
type Fake struct {
	Respond func(req llm.CompletionRequest) (string, error)

	mu    sync.Mutex
	calls []llm.CompletionRequest
}

func (f *Fake) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	content, err := f.Respond(req)
	if err != nil {
		return nil, err
	}
	return &llm.CompletionResponse{Content: content}, nil
}

func (f *Fake) Calls() []llm.CompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]llm.CompletionRequest(nil), f.calls...)
}

// CallsFor counts requests with the given purpose.
func (f *Fake) CallsFor(purpose string) int {
	n := 0
	for _, c := range f.Calls() {
		if c.Purpose == purpose {
			n++
		}
	}
	return n
}

// Failing returns a Fake whose every call fails with err.
func Failing(err error) *Fake {
	return &Fake{Respond: func(llm.CompletionRequest) (string, error) { return "", err }}
}

// ByPurpose routes each request to the answer registered for its purpose.
// Unregistered purposes fail with llm.ErrMalformed.
func ByPurpose(answers map[string]func(prompt string) (string, error)) *Fake {
	return &Fake{Respond: func(req llm.CompletionRequest) (string, error) {
		if fn, ok := answers[req.Purpose]; ok {
			return fn(req.UserPrompt)
		}
		return "", llm.ErrMalformed
	}}
}

// Contains reports whether prompt mentions every needle.
func Contains(prompt string, needles ...string) bool {
	for _, n := range needles {
		if !strings.Contains(prompt, n) {
			return false
		}
	}
	return true
}
