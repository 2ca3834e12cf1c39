package model

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Request captures a normalized generation input. Instructions carries the
// system prompt; Prompt is the user turn. Both are constructed
// deterministically by callers so identical emails produce identical
// requests.
type Request struct {
	Instructions string
	Prompt       string
}

// Response is the final text produced for a Request.
type Response struct {
	Text string
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string
	Provider string // "openai", "anthropic", "mock", etc.
}

// Model is the interface required to drive classification and generation.
// Calls are synchronous and blocking; request timeouts surface as ordinary
// errors.
type Model interface {
	Generate(ctx context.Context, req Request) (Response, error)

	// Info returns information about the model implementation.
	Info() Info
}

// Embedder produces fixed-length embedding vectors for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// MockModel is a lightweight in-memory Model useful for tests. Responses are
// keyed by substring match against the prompt; unmatched prompts get a
// generic echo.
type MockModel struct {
	mu        sync.Mutex
	info      Info
	responses map[string]string
	requests  []Request
	err       error
}

// NewMockModel constructs a MockModel.
func NewMockModel(name string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: "mock"},
		responses: make(map[string]string),
	}
}

// AddResponse registers a canned completion returned when the prompt
// contains key.
func (m *MockModel) AddResponse(key, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[key] = response
}

// FailWith makes every subsequent Generate call return err.
func (m *MockModel) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Requests returns all generation requests seen so far.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// Generate implements Model.
func (m *MockModel) Generate(_ context.Context, req Request) (Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.err != nil {
		return Response{}, m.err
	}
	for key, resp := range m.responses {
		if strings.Contains(req.Prompt, key) {
			return Response{Text: resp}, nil
		}
	}
	return Response{Text: fmt.Sprintf("Mock response to: %s", req.Prompt)}, nil
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }

// MockEmbedder returns deterministic vectors for tests. Texts registered via
// SetVector get their fixed vector; everything else hashes characters into a
// small stable vector so distinct texts differ.
type MockEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float64
	calls   int
	err     error
}

// NewMockEmbedder constructs a MockEmbedder.
func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{vectors: make(map[string][]float64)}
}

// SetVector pins the vector returned for text.
func (m *MockEmbedder) SetVector(text string, vec []float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectors[text] = vec
}

// FailWith makes every subsequent Embed call return err.
func (m *MockEmbedder) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls reports how many Embed calls were made.
func (m *MockEmbedder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Embed implements Embedder.
func (m *MockEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if vec, ok := m.vectors[text]; ok {
		return append([]float64(nil), vec...), nil
	}
	vec := make([]float64, 8)
	for i, r := range text {
		vec[i%8] += float64(r%31) / 31
	}
	return vec, nil
}
