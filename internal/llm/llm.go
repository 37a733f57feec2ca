package llm

import "context"

// Client abstracts the LLM completion layer for wish analysis.
type Client interface {
	Complete(ctx context.Context, req Request) (Completion, error)
}

// Request captures one logical completion request.
type Request struct {
	System      string
	User        string
	Temperature float32
	MaxTokens   int
}

// Completion is the raw model output plus the provider that served it.
type Completion struct {
	Content  string
	Provider string
}
