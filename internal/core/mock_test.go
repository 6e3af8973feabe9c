package core

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/agenthands/expand/internal/core/model"
)

type MockDriver struct {
	QueryExecuted string
	QueryParams   map[string]interface{}
	MockResult    neo4j.EagerResult
	Err           error
	Closed        bool
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
	m.Closed = true
	return nil
}

// MockKP answers every request with the same canned JSON body.
type MockKP struct {
	mu       sync.Mutex
	Body     string
	Requests []model.Request
}

func (m *MockKP) Query(ctx context.Context, req model.Request) (*model.Response, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	m.mu.Unlock()

	var resp model.Response
	if err := json.Unmarshal([]byte(m.Body), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (m *MockKP) Sent() []model.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Request(nil), m.Requests...)
}
