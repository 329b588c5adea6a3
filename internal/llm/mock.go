package llm

import (
	"context"
	"sync"
)

// MockClient is a test double for the LLM Client interface.
// Responses are returned in order; once exhausted, Response and Err are
// returned for every further call.
type MockClient struct {
	mu        sync.Mutex
	Responses []string
	Errs      []error // Errs[i] fails call i when non-nil
	Response  *Response
	Err       error
	Calls     []Request // records requests sent
}

// Complete records the call and returns the next scripted response.
func (m *MockClient) Complete(ctx context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := len(m.Calls)
	m.Calls = append(m.Calls, req)

	if i < len(m.Errs) && m.Errs[i] != nil {
		return nil, m.Errs[i]
	}
	if i < len(m.Responses) {
		return &Response{Content: m.Responses[i], Provider: "mock"}, nil
	}
	return m.Response, m.Err
}

// CallCount returns how many completions were requested.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
