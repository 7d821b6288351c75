// Package llm defines the contract between the translator and the
// language-model providers.
package llm

import "context"

// Backend turns a prompt into a completion using the named model.
type Backend interface {
	Complete(ctx context.Context, model, prompt string) (*Completion, error)
}

// Completion is the text a backend produced for one prompt.
type Completion struct {
	Text  string
	Usage Usage
}

// Usage holds token usage information.
type Usage struct {
	InputTokens    int
	OutputTokens   int
	TotalTokens    int
	WebSearchCount int
}

// Add accumulates other into u.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.TotalTokens += other.TotalTokens
	u.WebSearchCount += other.WebSearchCount
}
