package normalize

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/expand/internal/core/response"
	"github.com/agenthands/expand/internal/errs"
)

func parkinsonService() *MockService {
	return &MockService{Records: map[string]*Record{
		"DOID:14330": {
			Identifier:  "MONDO:0005180",
			Label:       "Parkinson disease",
			Equivalents: []string{"MONDO:0005180", "DOID:14330", "UMLS:C0030567", "MESH:D010300"},
			Types:       []string{"biolink:Disease", "biolink:DiseaseOrPhenotypicFeature"},
		},
		"NCBIGene:1017": {
			Identifier:  "NCBIGene:1017",
			Label:       "CDK2",
			Equivalents: []string{"NCBIGene:1017", "HGNC:1771", "UniProtKB:P24941"},
			Types:       []string{"biolink:Gene"},
		},
	}}
}

func TestSynonyms(t *testing.T) {
	svc := parkinsonService()
	n := New(svc, time.Second, nil)
	resp := response.New(nil)

	got, err := n.Synonyms(context.Background(), []string{"DOID:14330", "FAKE:1", "DOID:14330"}, resp)
	require.NoError(t, err)

	// unknown inputs are still represented
	assert.Equal(t, []string{"DOID:14330", "FAKE:1", "MESH:D010300", "MONDO:0005180", "UMLS:C0030567"}, got)
	require.Len(t, svc.Calls, 1)
	assert.Equal(t, []string{"DOID:14330", "FAKE:1"}, svc.Calls[0])
	assert.True(t, resp.OK())
}

func TestSynonyms_ServiceFailure(t *testing.T) {
	n := New(&MockService{Err: errors.New("connection refused")}, time.Second, nil)
	resp := response.New(nil)

	got, err := n.Synonyms(context.Background(), []string{"DOID:14330"}, resp)
	assert.Empty(t, got)
	require.Error(t, err)

	kind, ok := errs.KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, errs.NormalizationServiceFailure, kind)
	assert.False(t, errs.IsTerminal(err))

	assert.True(t, resp.OK())
	assert.Len(t, resp.MessagesAt(response.LevelWarning), 1)
}

func TestSynonyms_Empty(t *testing.T) {
	svc := parkinsonService()
	got, err := New(svc, 0, nil).Synonyms(context.Background(), nil, response.New(nil))
	assert.NoError(t, err)
	assert.Nil(t, got)
	assert.Empty(t, svc.Calls)
}

func TestCanonicalize(t *testing.T) {
	n := New(parkinsonService(), time.Second, nil)
	resp := response.New(nil)

	got, err := n.Canonicalize(context.Background(), []string{"DOID:14330", "NCBIGene:1017", "FAKE:1"}, resp)
	require.NoError(t, err)

	assert.Equal(t, Canonical{
		PreferredCurie: "MONDO:0005180",
		Name:           "Parkinson disease",
		Category:       "disease",
		AllCategories:  []string{"disease", "disease_or_phenotypic_feature"},
	}, got["DOID:14330"])
	assert.Equal(t, "gene", got["NCBIGene:1017"].Category)

	// no canonical curie is made up for unknown input
	assert.NotContains(t, got, "FAKE:1")
	warnings := resp.MessagesAt(response.LevelWarning)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Text, "FAKE:1")
}

func TestPreferredCurie(t *testing.T) {
	n := New(parkinsonService(), time.Second, nil)
	resp := response.New(nil)
	ctx := context.Background()

	got, err := n.PreferredCurie(ctx, "DOID:14330", resp)
	require.NoError(t, err)
	assert.Equal(t, "DOID:14330", got)

	// UniProtKB is ranked through its upper-cased prefix
	got, err = n.PreferredCurie(ctx, "NCBIGene:1017", resp)
	require.NoError(t, err)
	assert.Equal(t, "UniProtKB:P24941", got)

	got, err = n.PreferredCurie(ctx, "FAKE:1", resp)
	require.NoError(t, err)
	assert.Equal(t, "FAKE:1", got)
}

func TestPreferredCurie_Fallbacks(t *testing.T) {
	n := New(&MockService{Records: map[string]*Record{
		"ZZZ:1": {Identifier: "YYY:1", Equivalents: []string{"XXX:9", "YYY:1"}},
	}}, 0, nil)

	got, err := n.PreferredCurie(context.Background(), "ZZZ:1", response.New(nil))
	require.NoError(t, err)
	assert.Equal(t, "XXX:9", got)

	failing := New(&MockService{Err: errors.New("timeout")}, 0, nil)
	got, err = failing.PreferredCurie(context.Background(), "ZZZ:1", response.New(nil))
	assert.Error(t, err)
	assert.Equal(t, "ZZZ:1", got)
}

func TestPreferredCurie_CustomRanking(t *testing.T) {
	n := New(parkinsonService(), 0, []string{"mesh", "DOID"})
	got, _ := n.PreferredCurie(context.Background(), "DOID:14330", response.New(nil))
	assert.Equal(t, "MESH:D010300", got)
}

type slowService struct{}

func (slowService) Lookup(ctx context.Context, curies []string) (map[string]*Record, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestSynonyms_Timeout(t *testing.T) {
	n := New(slowService{}, 10*time.Millisecond, nil)
	resp := response.New(nil)

	_, err := n.Synonyms(context.Background(), []string{"DOID:1"}, resp)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, resp.OK())
}
