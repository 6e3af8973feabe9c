package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// QueryGraph is an abstract graph whose nodes and edges are keyed by query id.
type QueryGraph struct {
	Nodes map[string]QNode `json:"nodes"`
	Edges map[string]QEdge `json:"edges"`
}

func NewQueryGraph() QueryGraph {
	return QueryGraph{Nodes: make(map[string]QNode), Edges: make(map[string]QEdge)}
}

// Clone returns a deep copy of the query graph.
func (qg QueryGraph) Clone() QueryGraph {
	out := QueryGraph{
		Nodes: make(map[string]QNode, len(qg.Nodes)),
		Edges: make(map[string]QEdge, len(qg.Edges)),
	}
	for key, qnode := range qg.Nodes {
		out.Nodes[key] = qnode.Copy()
	}
	for key, qedge := range qg.Edges {
		out.Edges[key] = qedge.Copy()
	}
	return out
}

func (qg QueryGraph) NodeKeys() []string {
	return sortedKeys(qg.Nodes)
}

func (qg QueryGraph) EdgeKeys() []string {
	return sortedKeys(qg.Edges)
}

// KnowledgeGraph is the flat, id-keyed graph used on the wire.
type KnowledgeGraph struct {
	Nodes map[string]Node `json:"nodes"`
	Edges map[string]Edge `json:"edges"`
}

func NewKnowledgeGraph() KnowledgeGraph {
	return KnowledgeGraph{Nodes: make(map[string]Node), Edges: make(map[string]Edge)}
}

func (kg KnowledgeGraph) NodeKeys() []string {
	return sortedKeys(kg.Nodes)
}

func (kg KnowledgeGraph) EdgeKeys() []string {
	return sortedKeys(kg.Edges)
}

// UnmarshalJSON accepts nodes and edges either as an id-keyed object or as
// a list of items carrying their own "id". Items in a list without an id
// are kept under a positional key with an empty ID so callers can report them.
func (kg *KnowledgeGraph) UnmarshalJSON(data []byte) error {
	var raw struct {
		Nodes json.RawMessage `json:"nodes"`
		Edges json.RawMessage `json:"edges"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	nodes, err := decodeItems[Node](raw.Nodes, func(n *Node) *string { return &n.ID })
	if err != nil {
		return fmt.Errorf("knowledge_graph.nodes: %w", err)
	}
	edges, err := decodeItems[Edge](raw.Edges, func(e *Edge) *string { return &e.ID })
	if err != nil {
		return fmt.Errorf("knowledge_graph.edges: %w", err)
	}
	kg.Nodes = nodes
	kg.Edges = edges
	return nil
}

func decodeItems[T any](data json.RawMessage, id func(*T) *string) (map[string]T, error) {
	out := make(map[string]T)
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return out, nil
	}

	if data[0] == '[' {
		var list []T
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, err
		}
		for i := range list {
			key := *id(&list[i])
			if key == "" {
				key = fmt.Sprintf("#%d", i)
			}
			out[key] = list[i]
		}
		return out, nil
	}

	var byKey map[string]T
	if err := json.Unmarshal(data, &byKey); err != nil {
		return nil, err
	}
	for key, item := range byKey {
		if p := id(&item); *p == "" {
			*p = key
		}
		out[key] = item
	}
	return out, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
