// Package aggregate holds retrieved nodes and edges filed under the query
// graph keys they fulfill.
package aggregate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agenthands/expand/internal/core/curie"
	"github.com/agenthands/expand/internal/core/model"
)

// KnowledgeGraph maps qnode key -> node id -> node and qedge key -> edge id
// -> edge. It is not safe for concurrent writes; concurrent producers each
// fill their own graph and Merge afterwards.
type KnowledgeGraph struct {
	nodes map[string]map[string]model.Node
	edges map[string]map[string]model.Edge
}

func New() *KnowledgeGraph {
	return &KnowledgeGraph{
		nodes: make(map[string]map[string]model.Node),
		edges: make(map[string]map[string]model.Edge),
	}
}

// AddNode files node under qnodeKey, replacing any node with the same id
// already in that bucket.
func (kg *KnowledgeGraph) AddNode(node model.Node, qnodeKey string) {
	bucket, ok := kg.nodes[qnodeKey]
	if !ok {
		bucket = make(map[string]model.Node)
		kg.nodes[qnodeKey] = bucket
	}
	stored := node.Copy()
	stored.QNodeKeys = nil
	bucket[node.ID] = stored
}

// AddEdge files edge under qedgeKey, replacing any edge with the same id
// already in that bucket.
func (kg *KnowledgeGraph) AddEdge(edge model.Edge, qedgeKey string) {
	bucket, ok := kg.edges[qedgeKey]
	if !ok {
		bucket = make(map[string]model.Edge)
		kg.edges[qedgeKey] = bucket
	}
	stored := edge.Copy()
	stored.QEdgeKeys = nil
	bucket[edge.ID] = stored
}

// Nodes returns a copy of the bucket for qnodeKey.
func (kg *KnowledgeGraph) Nodes(qnodeKey string) map[string]model.Node {
	out := make(map[string]model.Node, len(kg.nodes[qnodeKey]))
	for id, node := range kg.nodes[qnodeKey] {
		out[id] = node.Copy()
	}
	return out
}

// Edges returns a copy of the bucket for qedgeKey.
func (kg *KnowledgeGraph) Edges(qedgeKey string) map[string]model.Edge {
	out := make(map[string]model.Edge, len(kg.edges[qedgeKey]))
	for id, edge := range kg.edges[qedgeKey] {
		out[id] = edge.Copy()
	}
	return out
}

func (kg *KnowledgeGraph) Node(qnodeKey, id string) (model.Node, bool) {
	node, ok := kg.nodes[qnodeKey][id]
	return node.Copy(), ok
}

func (kg *KnowledgeGraph) Edge(qedgeKey, id string) (model.Edge, bool) {
	edge, ok := kg.edges[qedgeKey][id]
	return edge.Copy(), ok
}

func (kg *KnowledgeGraph) HasNodes(qnodeKey string) bool {
	return len(kg.nodes[qnodeKey]) > 0
}

func (kg *KnowledgeGraph) HasEdges(qedgeKey string) bool {
	return len(kg.edges[qedgeKey]) > 0
}

// QNodeKeys returns the qnode keys that have a bucket, sorted.
func (kg *KnowledgeGraph) QNodeKeys() []string {
	return keys(kg.nodes)
}

// QEdgeKeys returns the qedge keys that have a bucket, sorted.
func (kg *KnowledgeGraph) QEdgeKeys() []string {
	return keys(kg.edges)
}

// CountsByQGID returns the number of items filed under each query key.
func (kg *KnowledgeGraph) CountsByQGID() map[string]int {
	counts := make(map[string]int, len(kg.nodes)+len(kg.edges))
	for qnodeKey, bucket := range kg.nodes {
		counts[qnodeKey] = len(bucket)
	}
	for qedgeKey, bucket := range kg.edges {
		counts[qedgeKey] = len(bucket)
	}
	return counts
}

// PrintableCounts renders CountsByQGID as "e0: 2, n0: 1, n1: 2".
func (kg *KnowledgeGraph) PrintableCounts() string {
	counts := kg.CountsByQGID()
	parts := make([]string, 0, len(counts))
	for _, key := range keys(counts) {
		parts = append(parts, fmt.Sprintf("%s: %d", key, counts[key]))
	}
	return strings.Join(parts, ", ")
}

func (kg *KnowledgeGraph) IsEmpty() bool {
	for _, bucket := range kg.nodes {
		if len(bucket) > 0 {
			return false
		}
	}
	for _, bucket := range kg.edges {
		if len(bucket) > 0 {
			return false
		}
	}
	return true
}

// NodeIDsReferencedByEdges returns every subject and object id of every
// stored edge, sorted and deduplicated.
func (kg *KnowledgeGraph) NodeIDsReferencedByEdges() []string {
	var ids []string
	for _, bucket := range kg.edges {
		for _, edge := range bucket {
			ids = append(ids, edge.Subject, edge.Object)
		}
	}
	return model.Unique(ids)
}

// ToFlat returns the id-keyed form where every item lists the query keys it
// fulfills, sorted.
func (kg *KnowledgeGraph) ToFlat() model.KnowledgeGraph {
	flat := model.NewKnowledgeGraph()
	for _, qnodeKey := range keys(kg.nodes) {
		for id, node := range kg.nodes[qnodeKey] {
			existing, ok := flat.Nodes[id]
			if !ok {
				existing = node.Copy()
			}
			existing.QNodeKeys = append(existing.QNodeKeys, qnodeKey)
			flat.Nodes[id] = existing
		}
	}
	for _, qedgeKey := range keys(kg.edges) {
		for id, edge := range kg.edges[qedgeKey] {
			existing, ok := flat.Edges[id]
			if !ok {
				existing = edge.Copy()
			}
			existing.QEdgeKeys = append(existing.QEdgeKeys, qedgeKey)
			flat.Edges[id] = existing
		}
	}
	return flat
}

// FromFlat files every item under each query key it lists. Items listing no
// keys are not stored.
func FromFlat(flat model.KnowledgeGraph) *KnowledgeGraph {
	kg := New()
	for id, node := range flat.Nodes {
		if node.ID == "" {
			node.ID = id
		}
		for _, qnodeKey := range node.QNodeKeys {
			kg.AddNode(node, qnodeKey)
		}
	}
	for id, edge := range flat.Edges {
		if edge.ID == "" {
			edge.ID = id
		}
		for _, qedgeKey := range edge.QEdgeKeys {
			kg.AddEdge(edge, qedgeKey)
		}
	}
	return kg
}

// Merge adds everything in other to kg.
func (kg *KnowledgeGraph) Merge(other *KnowledgeGraph) {
	if other == nil {
		return
	}
	for qnodeKey, bucket := range other.nodes {
		for _, node := range bucket {
			kg.AddNode(node, qnodeKey)
		}
	}
	for qedgeKey, bucket := range other.edges {
		for _, edge := range bucket {
			kg.AddEdge(edge, qedgeKey)
		}
	}
}

// SwitchToInternalFormat returns a copy with node ids and edge endpoints
// rewritten into the internal prefix convention.
func (kg *KnowledgeGraph) SwitchToInternalFormat(converter *curie.Converter) *KnowledgeGraph {
	out := New()
	for qnodeKey, bucket := range kg.nodes {
		out.nodes[qnodeKey] = make(map[string]model.Node, len(bucket))
		for _, node := range bucket {
			node = node.Copy()
			node.ID = converter.ToInternal(node.ID)
			out.AddNode(node, qnodeKey)
		}
	}
	for qedgeKey, bucket := range kg.edges {
		out.edges[qedgeKey] = make(map[string]model.Edge, len(bucket))
		for _, edge := range bucket {
			edge = edge.Copy()
			edge.Subject = converter.ToInternal(edge.Subject)
			edge.Object = converter.ToInternal(edge.Object)
			out.AddEdge(edge, qedgeKey)
		}
	}
	return out
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
