package llm

import (
	"context"
	"sync"
)

// MockBackend for testing
type MockBackend struct {
	Response *Completion
	Error    error

	mu         sync.Mutex
	LastModel  string
	LastPrompt string
	calls      int
}

func (m *MockBackend) Complete(ctx context.Context, model, prompt string) (*Completion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.LastModel = model
	m.LastPrompt = prompt
	return m.Response, m.Error
}

// Calls returns how many times Complete was invoked.
func (m *MockBackend) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

var _ Backend = (*MockBackend)(nil)
