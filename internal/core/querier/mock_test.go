package querier

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/agenthands/expand/internal/core/model"
	"github.com/agenthands/expand/internal/core/normalize"
)

// MockClient answers with canned JSON, optionally chosen by the first curie
// of FanKey in the request.
type MockClient struct {
	mu       sync.Mutex
	Body     string
	ByCurie  map[string]string
	FanKey   string
	Err      error
	Requests []model.Request
}

func (m *MockClient) Query(ctx context.Context, req model.Request) (*model.Response, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}

	body := m.Body
	if m.ByCurie != nil && req.Message.QueryGraph != nil {
		ids := req.Message.QueryGraph.Nodes[m.FanKey].IDs
		if len(ids) > 0 {
			body = m.ByCurie[ids[0]]
		}
	}
	var resp model.Response
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (m *MockClient) Sent() []model.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Request(nil), m.Requests...)
}

type MockService struct {
	Records map[string]*normalize.Record
	Err     error
	Calls   int
}

func (m *MockService) Lookup(ctx context.Context, curies []string) (map[string]*normalize.Record, error) {
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	out := make(map[string]*normalize.Record)
	for _, c := range curies {
		if rec, ok := m.Records[c]; ok {
			out[c] = rec
		}
	}
	return out, nil
}
