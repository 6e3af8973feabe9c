package core

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/expand/internal/config"
	"github.com/agenthands/expand/internal/core/model"
	"github.com/agenthands/expand/internal/core/normalize"
	"github.com/agenthands/expand/internal/core/response"
	"github.com/agenthands/expand/internal/driver"
	"github.com/agenthands/expand/internal/errs"
	"github.com/agenthands/expand/internal/kp"
)

const phenotypeBody = `{"message": {
	"knowledge_graph": {
		"nodes": {"DOID:1": {"name": "disease one"}, "HP:1": {"name": "phenotype one"}},
		"edges": {"kg:edge1": {"subject": "HP:1", "object": "DOID:1", "predicate": "has_phenotype"}}
	},
	"results": [{"node_bindings": {"n0": [{"id": "DOID:1"}], "n1": [{"id": "HP:1"}]}, "edge_bindings": {"e0": [{"id": "kg:edge1"}]}}]
}}`

const otherPhenotypeBody = `{"message": {
	"knowledge_graph": {
		"nodes": {"DOID:1": {}, "HP:2": {}},
		"edges": {"e": {"subject": "DOID:1", "object": "HP:2", "predicate": "has_phenotype"}}
	},
	"results": [{"node_bindings": {"n0": [{"id": "DOID:1"}], "n1": [{"id": "HP:2"}]}, "edge_bindings": {"e0": [{"id": "e"}]}}]
}}`

func diseaseToPhenotype() model.QueryGraph {
	qg := model.NewQueryGraph()
	qg.Nodes["n0"] = model.QNode{IDs: model.StringList{"DOID:1"}, Categories: model.StringList{"disease"}}
	qg.Nodes["n1"] = model.QNode{Categories: model.StringList{"phenotypic_feature"}}
	qg.Edges["e0"] = model.QEdge{Subject: "n0", Object: "n1"}
	return qg
}

func newExpander(t *testing.T, cfg *config.Config, clients map[string]kp.Client, normalizer *normalize.Normalizer) *Expander {
	t.Helper()
	e, err := NewExpander(cfg, clients, normalizer, nil)
	require.NoError(t, err)
	return e
}

func TestExpander_AnswerOneHop(t *testing.T) {
	e := newExpander(t, config.Default(), map[string]kp.Client{"KP1": &MockKP{Body: phenotypeBody}}, nil)
	resp := response.New(nil)

	kg, bindings, err := e.AnswerOneHop(context.Background(), "KP1", diseaseToPhenotype(), resp)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"n0": "DOID:1", "n1": "HP:1"}, bindings["KP1:HP:1-has_phenotype-DOID:1"])
	assert.Equal(t, map[string]int{"n0": 1, "n1": 1, "e0": 1}, kg.CountsByQGID())
	assert.Equal(t, []string{"KP1"}, e.KPs())
}

func TestExpander_UnknownKP(t *testing.T) {
	e := newExpander(t, config.Default(), map[string]kp.Client{"KP1": &MockKP{Body: phenotypeBody}}, nil)
	resp := response.New(nil)

	kg, _, err := e.AnswerOneHop(context.Background(), "Nope", diseaseToPhenotype(), resp)
	assert.ErrorIs(t, err, &errs.Error{Kind: errs.InvalidQuery})
	assert.True(t, kg.IsEmpty())
	assert.Equal(t, string(errs.InvalidQuery), resp.ErrorCode())

	_, err = e.AnswerSingleNode(context.Background(), "Nope", diseaseToPhenotype(), response.New(nil))
	assert.ErrorIs(t, err, &errs.Error{Kind: errs.InvalidQuery})
}

func TestExpander_AcrossKPs_MergesAnswers(t *testing.T) {
	kp1 := &MockKP{Body: phenotypeBody}
	kp2 := &MockKP{Body: otherPhenotypeBody}
	e := newExpander(t, config.Default(), map[string]kp.Client{"KP1": kp1, "KP2": kp2}, nil)
	resp := response.New(nil)

	kg, bindings, err := e.AnswerOneHopAcrossKPs(context.Background(), nil, diseaseToPhenotype(), resp)
	require.NoError(t, err)
	assert.True(t, resp.OK())

	assert.Len(t, kg.Nodes("n0"), 1)
	assert.Len(t, kg.Nodes("n1"), 2)
	assert.Len(t, kg.Edges("e0"), 2)
	assert.Equal(t, map[string]string{"n0": "DOID:1", "n1": "HP:1"}, bindings["KP1:HP:1-has_phenotype-DOID:1"])
	assert.Equal(t, map[string]string{"n0": "DOID:1", "n1": "HP:2"}, bindings["KP2:DOID:1-has_phenotype-HP:2"])
	assert.Len(t, kp1.Sent(), 1)
	assert.Len(t, kp2.Sent(), 1)
}

func TestExpander_AcrossKPs_SkipsUnsupported(t *testing.T) {
	cfg := config.Default()
	cfg.KPs["Genetics"] = config.KPConfig{Endpoint: "http://genetics", AcceptedCategories: []string{"gene"}}
	genetics := &MockKP{Body: otherPhenotypeBody}
	e := newExpander(t, cfg, map[string]kp.Client{"KP1": &MockKP{Body: phenotypeBody}, "Genetics": genetics}, nil)
	resp := response.New(nil)

	kg, bindings, err := e.AnswerOneHopAcrossKPs(context.Background(), []string{"KP1", "Genetics"}, diseaseToPhenotype(), resp)
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.Len(t, bindings, 1)
	assert.Len(t, kg.Edges("e0"), 1)
	assert.Empty(t, genetics.Sent())

	var skipped bool
	for _, m := range resp.MessagesAt(response.LevelWarning) {
		if strings.HasPrefix(m.Text, "Skipping Genetics") {
			skipped = true
		}
	}
	assert.True(t, skipped)
}

func TestExpander_AcrossKPs_NoneSupported(t *testing.T) {
	cfg := config.Default()
	cfg.KPs["Genetics"] = config.KPConfig{Endpoint: "http://genetics", AcceptedCategories: []string{"gene"}}
	e := newExpander(t, cfg, map[string]kp.Client{"Genetics": &MockKP{Body: phenotypeBody}}, nil)
	resp := response.New(nil)

	_, _, err := e.AnswerOneHopAcrossKPs(context.Background(), nil, diseaseToPhenotype(), resp)
	kind, _ := errs.KindOf(err)
	assert.Equal(t, errs.UnsupportedQueryForKP, kind)
	assert.Equal(t, response.StatusError, resp.Status())
}

func TestExpander_AcrossKPs_InvalidQuery(t *testing.T) {
	e := newExpander(t, config.Default(), map[string]kp.Client{"KP1": &MockKP{Body: phenotypeBody}, "KP2": &MockKP{Body: phenotypeBody}}, nil)
	resp := response.New(nil)

	qg := diseaseToPhenotype()
	delete(qg.Nodes, "n1")

	kg, _, err := e.AnswerOneHopAcrossKPs(context.Background(), nil, qg, resp)
	assert.ErrorIs(t, err, &errs.Error{Kind: errs.InvalidQuery})
	assert.True(t, kg.IsEmpty())
	assert.Equal(t, string(errs.InvalidQuery), resp.ErrorCode())
}

func TestExpander_GraphBackedNormalizer(t *testing.T) {
	mockDriver := &MockDriver{
		MockResult: neo4j.EagerResult{
			Records: []*neo4j.Record{
				{
					Keys:   []string{"input", "id", "name", "category", "equivalents"},
					Values: []interface{}{"DOID:1", "DOID:1", "disease one", "biolink:Disease", []interface{}{"MONDO:0000001"}},
				},
			},
		},
	}
	normalizer := normalize.New(normalize.NewGraphService(mockDriver, nil), time.Second, nil)

	cfg := config.Default()
	cfg.KPs["KP1"] = config.KPConfig{Endpoint: "http://kp1", PreferredPrefixes: map[string]string{"disease": "MONDO"}}
	client := &MockKP{Body: phenotypeBody}
	e := newExpander(t, cfg, map[string]kp.Client{"KP1": client}, normalizer)
	e.Driver = mockDriver

	_, _, err := e.AnswerOneHop(context.Background(), "KP1", diseaseToPhenotype(), response.New(nil))
	require.NoError(t, err)
	assert.Equal(t, driver.GetEquivalentCuriesQuery, mockDriver.QueryExecuted)
	require.Len(t, client.Sent(), 1)
	assert.Equal(t, model.StringList{"MONDO:0000001"}, client.Sent()[0].Message.QueryGraph.Nodes["n0"].IDs)

	require.NoError(t, e.Close(context.Background()))
	assert.True(t, mockDriver.Closed)
}

func TestNewNormalizer(t *testing.T) {
	cfg := config.Default()
	n, d, err := NewNormalizer(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.NotNil(t, n)
	assert.Nil(t, d)

	cfg.Normalizer.Provider = "cache"
	_, _, err = NewNormalizer(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestExpander_Check(t *testing.T) {
	e := newExpander(t, config.Default(), map[string]kp.Client{"KP1": &MockKP{Body: phenotypeBody}}, nil)
	kg, _, err := e.AnswerOneHop(context.Background(), "KP1", diseaseToPhenotype(), response.New(nil))
	require.NoError(t, err)

	report := e.Check(diseaseToPhenotype(), kg)
	assert.True(t, report.Connected)
	assert.True(t, report.Fulfilled)
	assert.Empty(t, report.Unfulfilled)
}

func TestNewExpander_ZeroConfig(t *testing.T) {
	_, err := NewExpander(nil, map[string]kp.Client{"KP1": &MockKP{Body: phenotypeBody}}, nil, nil)
	assert.Error(t, err)

	cfg := &config.Config{}
	e := newExpander(t, cfg, map[string]kp.Client{"KP1": &MockKP{Body: phenotypeBody}}, nil)
	assert.Equal(t, 0, cfg.Concurrency.KPs)

	type result struct {
		bindings int
		err      error
	}
	done := make(chan result, 1)
	go func() {
		_, bindings, err := e.AnswerOneHopAcrossKPs(context.Background(), nil, diseaseToPhenotype(), response.New(nil))
		done <- result{bindings: len(bindings), err: err}
	}()

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Equal(t, 1, r.bindings)
	case <-time.After(3 * time.Second):
		t.Fatal("AnswerOneHopAcrossKPs did not return with a zero KP concurrency")
	}
}

func TestExpander_AcrossKPs_NoKPsConfigured(t *testing.T) {
	e := newExpander(t, config.Default(), map[string]kp.Client{}, nil)
	resp := response.New(nil)

	kg, bindings, err := e.AnswerOneHopAcrossKPs(context.Background(), nil, diseaseToPhenotype(), resp)
	require.NoError(t, err)
	assert.True(t, kg.IsEmpty())
	assert.Empty(t, bindings)

	warnings := resp.MessagesAt(response.LevelWarning)
	require.Len(t, warnings, 1)
	assert.Equal(t, "No KPs are configured; nothing was asked", warnings[0].Text)
}
