package model

import (
	"context"
	"sync"
)

// MockResponse is a canned reply for MockClient.
type MockResponse struct {
	Text string
	Err  error
}

// MockCall records one Generate invocation.
type MockCall struct {
	Prompt string
	Image  Image
}

// MockClient returns canned responses in FIFO order and records every call.
type MockClient struct {
	mu        sync.Mutex
	responses []MockResponse
	closed    bool
	Calls     []MockCall
}

func NewMockClient(responses ...MockResponse) *MockClient {
	return &MockClient{responses: responses}
}

// Generate returns the next canned response, or ErrEmptyResponse when the
// queue is drained.
func (m *MockClient) Generate(_ context.Context, prompt string, img Image) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockCall{Prompt: prompt, Image: img})
	if len(m.responses) == 0 {
		return "", ErrEmptyResponse
	}
	resp := m.responses[0]
	m.responses = m.responses[1:]
	if resp.Err != nil {
		return "", resp.Err
	}
	return resp.Text, nil
}

func (m *MockClient) ModelID() string {
	return "mock"
}

// Close marks the client released.
func (m *MockClient) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

// Closed reports whether Close was called.
func (m *MockClient) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *MockClient) AddResponse(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, resp)
}

func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// LastCall returns the most recent call, if any.
func (m *MockClient) LastCall() (MockCall, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Calls) == 0 {
		return MockCall{}, false
	}
	return m.Calls[len(m.Calls)-1], true
}
