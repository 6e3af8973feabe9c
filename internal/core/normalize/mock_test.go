package normalize

import (
	"context"
	"sync"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type MockDriver struct {
	QueryExecuted string
	QueryParams   map[string]interface{}
	MockResult    neo4j.EagerResult
	Err           error
}

func (m *MockDriver) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	m.QueryExecuted = query
	m.QueryParams = params
	if m.Err != nil {
		return neo4j.EagerResult{}, m.Err
	}
	return m.MockResult, nil
}

func (m *MockDriver) BuildIndices(ctx context.Context) error {
	return nil
}

func (m *MockDriver) Close(ctx context.Context) error {
	return nil
}

type MockService struct {
	mu      sync.Mutex
	Records map[string]*Record
	Err     error
	Calls   [][]string
}

func (m *MockService) Lookup(ctx context.Context, curies []string) (map[string]*Record, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, append([]string(nil), curies...))
	m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := make(map[string]*Record)
	for _, c := range curies {
		if rec, ok := m.Records[c]; ok {
			out[c] = rec
		}
	}
	return out, nil
}
