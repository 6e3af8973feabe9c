package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

type NodeBinding struct {
	ID string `json:"id"`
}

type EdgeBinding struct {
	ID string `json:"id"`
}

// Result binds knowledge graph ids to query graph ids.
type Result struct {
	NodeBindings map[string][]NodeBinding `json:"node_bindings"`
	EdgeBindings map[string][]EdgeBinding `json:"edge_bindings"`
}

// UnmarshalJSON accepts bindings keyed by query id as well as the older
// list form of {"qg_id": ..., "kg_id": ...} pairs.
func (r *Result) UnmarshalJSON(data []byte) error {
	var raw struct {
		NodeBindings json.RawMessage `json:"node_bindings"`
		EdgeBindings json.RawMessage `json:"edge_bindings"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	nodes, err := decodeBindings(raw.NodeBindings)
	if err != nil {
		return fmt.Errorf("node_bindings: %w", err)
	}
	edges, err := decodeBindings(raw.EdgeBindings)
	if err != nil {
		return fmt.Errorf("edge_bindings: %w", err)
	}

	r.NodeBindings = make(map[string][]NodeBinding, len(nodes))
	for qid, ids := range nodes {
		for _, id := range ids {
			r.NodeBindings[qid] = append(r.NodeBindings[qid], NodeBinding{ID: id})
		}
	}
	r.EdgeBindings = make(map[string][]EdgeBinding, len(edges))
	for qid, ids := range edges {
		for _, id := range ids {
			r.EdgeBindings[qid] = append(r.EdgeBindings[qid], EdgeBinding{ID: id})
		}
	}
	return nil
}

func decodeBindings(data json.RawMessage) (map[string][]string, error) {
	out := make(map[string][]string)
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return out, nil
	}

	if data[0] == '[' {
		var pairs []struct {
			QGID string     `json:"qg_id"`
			KGID StringList `json:"kg_id"`
		}
		if err := json.Unmarshal(data, &pairs); err != nil {
			return nil, err
		}
		for _, p := range pairs {
			out[p.QGID] = append(out[p.QGID], p.KGID...)
		}
		return out, nil
	}

	var byQID map[string][]struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &byQID); err != nil {
		return nil, err
	}
	for qid, bindings := range byQID {
		for _, b := range bindings {
			out[qid] = append(out[qid], b.ID)
		}
	}
	return out, nil
}

type Message struct {
	QueryGraph     *QueryGraph     `json:"query_graph,omitempty"`
	KnowledgeGraph *KnowledgeGraph `json:"knowledge_graph,omitempty"`
	Results        []Result        `json:"results,omitempty"`
}

// Append concatenates other's knowledge graph and results onto m. Nodes
// with the same id are merged. An edge whose id is already taken by a
// different edge is renamed, along with other's bindings to it, so partial
// answers that reuse local edge ids do not overwrite each other.
func (m *Message) Append(other *Message) {
	if other == nil {
		return
	}
	renamed := make(map[string]string)
	if other.KnowledgeGraph != nil {
		if m.KnowledgeGraph == nil {
			kg := NewKnowledgeGraph()
			m.KnowledgeGraph = &kg
		}
		for key, node := range other.KnowledgeGraph.Nodes {
			m.KnowledgeGraph.Nodes[key] = node
		}
		for _, key := range other.KnowledgeGraph.EdgeKeys() {
			edge := other.KnowledgeGraph.Edges[key]
			target := key
			if existing, ok := m.KnowledgeGraph.Edges[key]; ok && !reflect.DeepEqual(existing, edge) {
				for i := len(m.KnowledgeGraph.Edges); ; i++ {
					target = fmt.Sprintf("%s#%d", key, i)
					if _, taken := m.KnowledgeGraph.Edges[target]; !taken {
						break
					}
				}
				renamed[key] = target
			}
			m.KnowledgeGraph.Edges[target] = edge
		}
	}
	for _, result := range other.Results {
		if len(renamed) > 0 {
			result = result.renameEdges(renamed)
		}
		m.Results = append(m.Results, result)
	}
	if m.QueryGraph == nil {
		m.QueryGraph = other.QueryGraph
	}
}

func (r Result) renameEdges(renamed map[string]string) Result {
	out := Result{
		NodeBindings: r.NodeBindings,
		EdgeBindings: make(map[string][]EdgeBinding, len(r.EdgeBindings)),
	}
	for qedgeKey, bindings := range r.EdgeBindings {
		rewritten := make([]EdgeBinding, len(bindings))
		for i, b := range bindings {
			if to, ok := renamed[b.ID]; ok {
				b.ID = to
			}
			rewritten[i] = b
		}
		out.EdgeBindings[qedgeKey] = rewritten
	}
	return out
}

// Request is the body POSTed to a KP's /query endpoint.
type Request struct {
	Message Message `json:"message"`
}

// Response is a KP's answer. Message is nil when the KP sent none.
type Response struct {
	Message     *Message `json:"message,omitempty"`
	Status      string   `json:"status,omitempty"`
	Description string   `json:"description,omitempty"`
}

// UnmarshalJSON also accepts the older layout where knowledge_graph and
// results sit at the top level instead of inside a message.
func (r *Response) UnmarshalJSON(data []byte) error {
	var raw struct {
		Message        *Message        `json:"message"`
		Status         string          `json:"status"`
		Description    string          `json:"description"`
		KnowledgeGraph *KnowledgeGraph `json:"knowledge_graph"`
		Results        []Result        `json:"results"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Message = raw.Message
	r.Status = raw.Status
	r.Description = raw.Description
	if r.Message == nil && (raw.KnowledgeGraph != nil || raw.Results != nil) {
		r.Message = &Message{KnowledgeGraph: raw.KnowledgeGraph, Results: raw.Results}
	}
	return nil
}
