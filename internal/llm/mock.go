package llm

import (
	"context"
	"sync"
)

// MockCompleter is a test double returning canned replies in order. When the
// replies run out it repeats the last one. Safe for concurrent use.
type MockCompleter struct {
	mu      sync.Mutex
	replies []string
	err     error

	// Prompts records every prompt received, in call order.
	Prompts []string
}

// NewMockCompleter returns a completer that replies with the given strings.
func NewMockCompleter(replies ...string) *MockCompleter {
	return &MockCompleter{replies: replies}
}

// NewFailingCompleter returns a completer whose every call fails with err.
func NewFailingCompleter(err error) *MockCompleter {
	return &MockCompleter{err: err}
}

// Complete implements Completer.
func (m *MockCompleter) Complete(ctx context.Context, prompt string, _ CallSpec) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Prompts = append(m.Prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	if len(m.replies) == 0 {
		return "", nil
	}
	reply := m.replies[0]
	if len(m.replies) > 1 {
		m.replies = m.replies[1:]
	}
	return reply, nil
}

// CallCount returns how many completions have been requested.
func (m *MockCompleter) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Prompts)
}
