package generator

import (
	"context"
	"sync"

	"scene-orchestrator/internal/assembly"
)

// MockClient returns canned fragments in order. Used in tests and for running
// the service without a provider configured.
type MockClient struct {
	mu        sync.Mutex
	Responses []string
	Err       error
	calls     int
}

// Name implements Client.
func (m *MockClient) Name() string { return "mock" }

// Generate implements Client. With no canned responses it returns a minimal
// valid scene for the first round and a sentinel-led wait for later rounds.
func (m *MockClient) Generate(_ context.Context, previous, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return "", m.Err
	}
	if m.calls < len(m.Responses) {
		out := m.Responses[m.calls]
		m.calls++
		return out, nil
	}
	m.calls++

	if previous == "" {
		return "from manim import *\n\n" +
			"class GeneratedScene(Scene):\n" +
			"    def construct(self):\n" +
			"        self.wait(1)\n", nil
	}
	return assembly.SectionMarker + "\nself.wait(1)\n", nil
}

// Calls reports how many times Generate has been invoked.
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
