package retrieval

import (
	"context"
	"sync"
)

type mockEmbedder struct {
	mu     sync.Mutex
	calls  []string
	vector []float32
	err    error
}

func (m *mockEmbedder) CreateEmbedding(_ context.Context, text, model string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, model+":"+text)
	if m.err != nil {
		return nil, m.err
	}
	return m.vector, nil
}

type mockIndex struct {
	requests []SearchRequest
	results  []ReferencePair
	err      error
}

func (m *mockIndex) Search(_ context.Context, req SearchRequest) ([]ReferencePair, error) {
	m.requests = append(m.requests, req)
	return m.results, m.err
}

type mockWriter struct {
	collection string
	records    []Record
	err        error
}

func (m *mockWriter) Insert(_ context.Context, collection string, records []Record) error {
	m.collection = collection
	m.records = append(m.records, records...)
	return m.err
}

// taggedIndex filters its entries the way backends without a filter
// language do.
type taggedIndex struct {
	entries []Record
}

func (m *taggedIndex) Search(_ context.Context, req SearchRequest) ([]ReferencePair, error) {
	var out []ReferencePair
	for _, e := range m.entries {
		if req.Filter.Matches(e.Tags) {
			out = append(out, ReferencePair{Question: e.Question, SQL: e.SQL})
		}
	}
	return out, nil
}
