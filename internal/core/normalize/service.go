// Package normalize resolves curies to their synonym sets and canonical
// representatives using an external identifier service.
package normalize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/agenthands/expand/internal/core/common"
	"github.com/agenthands/expand/internal/core/curie"
	"github.com/agenthands/expand/internal/driver"
)

// Record is what a Service knows about one curie.
type Record struct {
	Identifier  string
	Label       string
	Equivalents []string
	Types       []string
}

// Service performs one batched lookup. Curies the service does not recognize
// are absent from the returned map or map to nil.
type Service interface {
	Lookup(ctx context.Context, curies []string) (map[string]*Record, error)
}

// NodeNormService talks to an SRI-style node normalization API.
type NodeNormService struct {
	baseURL string
	client  *http.Client
}

func NewNodeNormService(baseURL string, client *http.Client) *NodeNormService {
	if client == nil {
		client = http.DefaultClient
	}
	return &NodeNormService{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

type nodeNormIdentifier struct {
	Identifier string `json:"identifier"`
	Label      string `json:"label"`
}

type nodeNormEntry struct {
	ID                    nodeNormIdentifier   `json:"id"`
	EquivalentIdentifiers []nodeNormIdentifier `json:"equivalent_identifiers"`
	Type                  []string             `json:"type"`
}

func (s *NodeNormService) Lookup(ctx context.Context, curies []string) (map[string]*Record, error) {
	body, err := json.Marshal(map[string][]string{"curies": curies})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/get_normalized_nodes", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("node normalizer request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read node normalizer response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("node normalizer returned %d: %s", resp.StatusCode, common.Snippet(data))
	}

	entries, err := common.ParseJSON[map[string]*nodeNormEntry](data)
	if err != nil {
		return nil, err
	}

	out := make(map[string]*Record, len(entries))
	for input, entry := range entries {
		if entry == nil || entry.ID.Identifier == "" {
			continue
		}
		rec := &Record{
			Identifier: entry.ID.Identifier,
			Label:      entry.ID.Label,
			Types:      entry.Type,
		}
		for _, eq := range entry.EquivalentIdentifiers {
			if eq.Identifier != "" {
				rec.Equivalents = append(rec.Equivalents, eq.Identifier)
			}
		}
		out[input] = rec
	}
	return out, nil
}

// GraphService reads equivalent curies from a KG2 store, following same_as
// relationships one hop. Inputs are converted to the store's prefix
// convention before lookup and results are keyed by the original input.
type GraphService struct {
	driver    driver.GraphDriver
	converter *curie.Converter
}

func NewGraphService(d driver.GraphDriver, converter *curie.Converter) *GraphService {
	if converter == nil {
		converter = curie.Default()
	}
	return &GraphService{driver: d, converter: converter}
}

func (s *GraphService) Lookup(ctx context.Context, curies []string) (map[string]*Record, error) {
	internal := make([]string, 0, len(curies))
	originals := make(map[string][]string, len(curies))
	for _, c := range curies {
		ic := s.converter.ToInternal(c)
		if _, ok := originals[ic]; !ok {
			internal = append(internal, ic)
		}
		originals[ic] = append(originals[ic], c)
	}

	res, err := s.driver.ExecuteQuery(ctx, driver.GetEquivalentCuriesQuery, map[string]interface{}{
		"curies": internal,
	})
	if err != nil {
		return nil, fmt.Errorf("kg2 synonym lookup failed: %w", err)
	}

	out := make(map[string]*Record, len(res.Records))
	for _, rec := range res.Records {
		input, _ := stringValue(rec.Get("input"))
		id, _ := stringValue(rec.Get("id"))
		if input == "" || id == "" {
			continue
		}
		name, _ := stringValue(rec.Get("name"))
		category, _ := rec.Get("category")
		equivalents, _ := rec.Get("equivalents")

		r := &Record{
			Identifier:  id,
			Label:       name,
			Equivalents: append([]string{id}, stringSlice(equivalents)...),
			Types:       stringSlice(category),
		}
		keys, ok := originals[input]
		if !ok {
			keys = []string{input}
		}
		for _, key := range keys {
			out[key] = r
		}
	}
	return out, nil
}

func stringValue(v any, ok bool) (string, bool) {
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// stringSlice accepts a single string or a list, as KG2 stores category both ways.
func stringSlice(v any) []string {
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
