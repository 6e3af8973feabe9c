// Package querygraph holds structural checks on query graphs.
package querygraph

import (
	"sort"

	"github.com/agenthands/expand/internal/core/aggregate"
	"github.com/agenthands/expand/internal/core/model"
)

// IsConnected expands a visited set from an arbitrary node, one neighbor at
// a time, until no unvisited node touches it. A graph with zero or one node
// is connected. Edges pointing at unknown nodes are ignored.
func IsConnected(qg model.QueryGraph) bool {
	keys := qg.NodeKeys()
	if len(keys) <= 1 {
		return true
	}
	adj := adjacency(qg)

	visited := map[string]bool{keys[0]: true}
	frontier := []string{keys[0]}
	for len(frontier) > 0 {
		current := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]
		for _, next := range adj[current] {
			if !visited[next] {
				visited[next] = true
				frontier = append(frontier, next)
			}
		}
	}
	return len(visited) == len(keys)
}

// Components groups qnode keys into connected components. Keys inside a
// component are sorted and components are ordered by their first key.
func Components(qg model.QueryGraph) [][]string {
	adj := adjacency(qg)
	visited := make(map[string]bool, len(qg.Nodes))
	var components [][]string

	for _, key := range qg.NodeKeys() {
		if visited[key] {
			continue
		}
		var component []string
		dfs(key, adj, visited, &component)
		sort.Strings(component)
		components = append(components, component)
	}
	return components
}

func dfs(u string, adj map[string][]string, visited map[string]bool, component *[]string) {
	visited[u] = true
	*component = append(*component, u)
	for _, v := range adj[u] {
		if !visited[v] {
			dfs(v, adj, visited, component)
		}
	}
}

func adjacency(qg model.QueryGraph) map[string][]string {
	adj := make(map[string][]string, len(qg.Nodes))
	for _, qedgeKey := range qg.EdgeKeys() {
		qedge := qg.Edges[qedgeKey]
		if _, ok := qg.Nodes[qedge.Subject]; !ok {
			continue
		}
		if _, ok := qg.Nodes[qedge.Object]; !ok {
			continue
		}
		adj[qedge.Subject] = append(adj[qedge.Subject], qedge.Object)
		adj[qedge.Object] = append(adj[qedge.Object], qedge.Subject)
	}
	return adj
}

// WithoutExcludedEdges returns a copy without excluded edges and without
// nodes that only excluded edges touch. Nodes no edge touches are kept.
func WithoutExcludedEdges(qg model.QueryGraph) model.QueryGraph {
	out := model.NewQueryGraph()
	usedByKept := make(map[string]bool)
	usedByExcluded := make(map[string]bool)

	for key, qedge := range qg.Edges {
		if qedge.Exclude {
			usedByExcluded[qedge.Subject] = true
			usedByExcluded[qedge.Object] = true
			continue
		}
		usedByKept[qedge.Subject] = true
		usedByKept[qedge.Object] = true
		out.Edges[key] = qedge.Copy()
	}
	for key, qnode := range qg.Nodes {
		if usedByExcluded[key] && !usedByKept[key] {
			continue
		}
		out.Nodes[key] = qnode.Copy()
	}
	return out
}

// RequiredOnly returns a copy without nodes and edges that belong to an
// option group.
func RequiredOnly(qg model.QueryGraph) model.QueryGraph {
	out := model.NewQueryGraph()
	for key, qnode := range qg.Nodes {
		if qnode.OptionGroupID == "" {
			out.Nodes[key] = qnode.Copy()
		}
	}
	for key, qedge := range qg.Edges {
		if qedge.OptionGroupID == "" {
			out.Edges[key] = qedge.Copy()
		}
	}
	return out
}

// IsFulfilled reports whether every qnode and qedge key has at least one
// entry in kg. With requiredOnly, excluded edges and option groups are
// removed from qg first.
func IsFulfilled(qg model.QueryGraph, kg *aggregate.KnowledgeGraph, requiredOnly bool) bool {
	if requiredOnly {
		qg = RequiredOnly(WithoutExcludedEdges(qg))
	}
	if kg == nil {
		kg = aggregate.New()
	}
	for key := range qg.Nodes {
		if !kg.HasNodes(key) {
			return false
		}
	}
	for key := range qg.Edges {
		if !kg.HasEdges(key) {
			return false
		}
	}
	return true
}

// Unfulfilled lists, sorted, the qnode and qedge keys with no entry in kg.
func Unfulfilled(qg model.QueryGraph, kg *aggregate.KnowledgeGraph) []string {
	var missing []string
	for key := range qg.Nodes {
		if kg == nil || !kg.HasNodes(key) {
			missing = append(missing, key)
		}
	}
	for key := range qg.Edges {
		if kg == nil || !kg.HasEdges(key) {
			missing = append(missing, key)
		}
	}
	sort.Strings(missing)
	return missing
}

// Report bundles the structural checks of a query graph against an answer.
type Report struct {
	Connected   bool       `json:"connected"`
	Fulfilled   bool       `json:"fulfilled"`
	Required    bool       `json:"required_fulfilled"`
	Unfulfilled []string   `json:"unfulfilled"`
	Components  [][]string `json:"components"`
}

func Check(qg model.QueryGraph, kg *aggregate.KnowledgeGraph) Report {
	return Report{
		Connected:   IsConnected(qg),
		Fulfilled:   IsFulfilled(qg, kg, false),
		Required:    IsFulfilled(qg, kg, true),
		Unfulfilled: Unfulfilled(qg, kg),
		Components:  Components(qg),
	}
}
