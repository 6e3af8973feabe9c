package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/expand/internal/config"
	"github.com/agenthands/expand/internal/core"
	"github.com/agenthands/expand/internal/core/model"
	"github.com/agenthands/expand/internal/kp"
)

const kpBody = `{"message": {
	"knowledge_graph": {
		"nodes": {"DOID:1": {"name": "disease one"}, "HP:1": {"name": "phenotype one"}},
		"edges": {"kg:edge1": {"subject": "HP:1", "object": "DOID:1", "predicate": "has_phenotype"}}
	},
	"results": [{"node_bindings": {"n0": [{"id": "DOID:1"}], "n1": [{"id": "HP:1"}]}, "edge_bindings": {"e0": [{"id": "kg:edge1"}]}}]
}}`

const oneHopQuery = `{
	"kp": "TestKP",
	"query_graph": {
		"nodes": {"n0": {"id": "DOID:1", "category": "disease"}, "n1": {"category": "phenotypic_feature"}},
		"edges": {"e0": {"subject": "n0", "object": "n1"}}
	}
}`

type stubKP struct {
	body string
}

func (s stubKP) Query(ctx context.Context, req model.Request) (*model.Response, error) {
	var resp model.Response
	if err := json.Unmarshal([]byte(s.body), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	e, err := core.NewExpander(config.Default(), map[string]kp.Client{"TestKP": stubKP{body: kpBody}}, nil, nil)
	require.NoError(t, err)
	return NewServer(e, nil).SetupRouter()
}

func post(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestOneHop(t *testing.T) {
	r := setupRouter(t)
	w := post(r, "/one_hop", oneHopQuery)
	require.Equal(t, http.StatusOK, w.Code)

	var got AnswerResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "OK", got.Status)
	assert.Equal(t, map[string]string{"n0": "DOID:1", "n1": "HP:1"}, got.EdgeToNodes["TestKP:HP:1-has_phenotype-DOID:1"])
	require.Contains(t, got.KnowledgeGraph.Nodes, "DOID:1")
	assert.Equal(t, []string{"n0"}, got.KnowledgeGraph.Nodes["DOID:1"].QNodeKeys)
	assert.Equal(t, []string{"e0"}, got.KnowledgeGraph.Edges["TestKP:HP:1-has_phenotype-DOID:1"].QEdgeKeys)
	assert.NotEmpty(t, got.ID)
}

func TestOneHop_AcrossKPs(t *testing.T) {
	r := setupRouter(t)
	w := post(r, "/one_hop", strings.Replace(oneHopQuery, `"kp": "TestKP"`, `"kps": ["TestKP"]`, 1))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "TestKP:HP:1-has_phenotype-DOID:1")
}

func TestOneHop_InvalidQuery(t *testing.T) {
	r := setupRouter(t)
	body := `{"kp": "TestKP", "query_graph": {"nodes": {"n0": {}}, "edges": {}}}`
	w := post(r, "/one_hop", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var got AnswerResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "ERROR", got.Status)
	assert.Equal(t, "InvalidQuery", got.ErrorCode)
	assert.NotEmpty(t, got.Logs)
}

func TestOneHop_BadJSON(t *testing.T) {
	r := setupRouter(t)
	w := post(r, "/one_hop", `{"kp": `)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSingleNode(t *testing.T) {
	r := setupRouter(t)
	body := `{"kp": "TestKP", "query_graph": {"nodes": {"n0": {"id": "DOID:1"}}, "edges": {}}}`
	w := post(r, "/single_node", body)
	require.Equal(t, http.StatusOK, w.Code)

	var got AnswerResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Contains(t, got.KnowledgeGraph.Nodes, "DOID:1")

	w = post(r, "/single_node", `{"query_graph": {"nodes": {"n0": {}}}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCheck(t *testing.T) {
	r := setupRouter(t)
	body := `{
		"query_graph": {
			"nodes": {"n0": {}, "n1": {}},
			"edges": {"e0": {"subject": "n0", "object": "n1"}}
		},
		"knowledge_graph": {
			"nodes": {"DOID:1": {"qnode_keys": ["n0"]}},
			"edges": {}
		}
	}`
	w := post(r, "/query_graph/check", body)
	require.Equal(t, http.StatusOK, w.Code)

	var got struct {
		Connected   bool     `json:"connected"`
		Fulfilled   bool     `json:"fulfilled"`
		Unfulfilled []string `json:"unfulfilled"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.True(t, got.Connected)
	assert.False(t, got.Fulfilled)
	assert.Equal(t, []string{"e0", "n1"}, got.Unfulfilled)
}

func TestHealthAndMetrics(t *testing.T) {
	r := setupRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/healthz", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/metrics", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "expand_http_requests_total")

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/kps", nil)
	r.ServeHTTP(w, req)
	assert.JSONEq(t, `{"kps": ["TestKP"]}`, w.Body.String())
}
