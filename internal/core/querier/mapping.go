package querier

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agenthands/expand/internal/core/aggregate"
	"github.com/agenthands/expand/internal/core/model"
	"github.com/agenthands/expand/internal/core/response"
	"github.com/agenthands/expand/internal/metrics"
)

// qgMappings records, for each KP-local id, the query keys its result
// bindings assign it to.
type qgMappings struct {
	nodes map[string]map[string]bool
	edges map[string]map[string]bool
}

func mappingsFromResults(results []model.Result) qgMappings {
	m := qgMappings{
		nodes: make(map[string]map[string]bool),
		edges: make(map[string]map[string]bool),
	}
	for _, result := range results {
		for qnodeKey, bindings := range result.NodeBindings {
			for _, b := range bindings {
				add(m.nodes, b.ID, qnodeKey)
			}
		}
		for qedgeKey, bindings := range result.EdgeBindings {
			for _, b := range bindings {
				add(m.edges, b.ID, qedgeKey)
			}
		}
	}
	return m
}

func add(m map[string]map[string]bool, id, key string) {
	if m[id] == nil {
		m[id] = make(map[string]bool)
	}
	m[id][key] = true
}

func sortedSet(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// mapResponse files the KP's nodes and edges into kg under the query keys
// their result bindings name. bindings is nil for single-node queries.
func (q *Querier) mapResponse(msg *model.Message, qg model.QueryGraph, kg *aggregate.KnowledgeGraph, bindings BindingMap, resp *response.Response) {
	if msg == nil {
		return
	}
	if len(msg.Results) == 0 {
		resp.Warning(fmt.Sprintf("No 'results' were returned from %s", q.kpName))
		return
	}
	if msg.KnowledgeGraph == nil {
		resp.Warning(fmt.Sprintf("No knowledge graph is present in the response from %s", q.kpName))
		return
	}

	mappings := mappingsFromResults(msg.Results)
	returned := msg.KnowledgeGraph

	var qedge *model.QEdge
	if bindings != nil {
		for _, key := range qg.EdgeKeys() {
			e := qg.Edges[key]
			qedge = &e
			break
		}
	}

	unknownScores := make(map[string]bool)
	for _, key := range returned.EdgeKeys() {
		edge := returned.Edges[key]
		if edge.ID == "" {
			resp.Warning(fmt.Sprintf("Edge returned from %s is lacking an ID; skipping it", q.kpName))
			metrics.DroppedItems.WithLabelValues(q.kpName, "edge_missing_id").Inc()
			continue
		}
		if edge.Subject == "" || edge.Object == "" {
			resp.Warning(fmt.Sprintf("Edge %s returned from %s is lacking a subject and/or object; skipping it", key, q.kpName))
			metrics.DroppedItems.WithLabelValues(q.kpName, "edge_missing_endpoint").Inc()
			continue
		}
		qedgeKeys := mappings.edges[key]
		if len(qedgeKeys) == 0 {
			resp.Debug(fmt.Sprintf("Edge %s from %s is not bound to any qedge; skipping it", key, q.kpName))
			continue
		}
		scoreName := edge.ScoreName
		if !q.applyScore(&edge, unknownScores) {
			resp.Debug(fmt.Sprintf("Skipping %s edge %s since only %s scores are included", scoreName, key, q.cfg.PrimaryScore))
			continue
		}

		rawSubject, rawObject := edge.Subject, edge.Object
		edge.Subject = q.internal(rawSubject)
		edge.Object = q.internal(rawObject)
		edge.OriginalID = edge.ID
		if edge.ProvidedBy == "" {
			edge.ProvidedBy = q.kpName
		}
		edge.ID = q.edgeKey(edge, scoreName)

		for _, qedgeKey := range sortedSet(qedgeKeys) {
			kg.AddEdge(edge, qedgeKey)
		}

		if qedge != nil {
			if mappings.nodes[rawSubject][qedge.Subject] && mappings.nodes[rawObject][qedge.Object] {
				bindings[edge.ID] = map[string]string{qedge.Subject: edge.Subject, qedge.Object: edge.Object}
			} else {
				bindings[edge.ID] = map[string]string{qedge.Subject: edge.Object, qedge.Object: edge.Subject}
			}
		}
	}
	if len(unknownScores) > 0 {
		resp.Warning(fmt.Sprintf("Encountered unknown score(s) from %s: %s. Not sure what data type to assign these.",
			q.kpName, strings.Join(sortedSet(unknownScores), ", ")))
	}

	for _, key := range returned.NodeKeys() {
		node := returned.Nodes[key]
		if node.ID == "" {
			resp.Warning(fmt.Sprintf("Node returned from %s is lacking an ID; skipping it", q.kpName))
			metrics.DroppedItems.WithLabelValues(q.kpName, "node_missing_id").Inc()
			continue
		}
		qnodeKeys := mappings.nodes[key]
		if len(qnodeKeys) == 0 {
			resp.Debug(fmt.Sprintf("Node %s from %s is not bound to any qnode; skipping it", key, q.kpName))
			continue
		}
		node.ID = q.internal(node.ID)
		for _, qnodeKey := range sortedSet(qnodeKeys) {
			kg.AddNode(node, qnodeKey)
		}
	}

	resp.Debug(fmt.Sprintf("Got results back from %s: %s", q.kpName, kg.PrintableCounts()))
}

// applyScore turns a legacy score_name/score pair into a typed attribute and
// reports whether the edge should be kept.
func (q *Querier) applyScore(edge *model.Edge, unknown map[string]bool) bool {
	if edge.ScoreName == "" {
		return true
	}
	if q.cfg.PrimaryScore != "" && !q.cfg.IncludeAllScores && edge.ScoreName != q.cfg.PrimaryScore {
		return false
	}
	scoreType, known := q.cfg.ScoreTypes[edge.ScoreName]
	if !known {
		unknown[edge.ScoreName] = true
	}
	// some KPs send a score name with no value
	if edge.Score != nil {
		edge.Attributes = append([]model.Attribute{{
			Name:  edge.ScoreName,
			Type:  scoreType,
			Value: edge.Score,
		}}, edge.Attributes...)
	}
	edge.ScoreName = ""
	edge.Score = nil
	return true
}

// edgeKey builds an id unique across KPs: kp:subject-kind-object. kind is
// the score name for score edges, so that scores between the same pair stay
// apart, then the predicate, then the first attribute name.
func (q *Querier) edgeKey(edge model.Edge, scoreName string) string {
	kind := scoreName
	if kind == "" {
		kind = edge.Predicate
	}
	if kind == "" && len(edge.Attributes) > 0 {
		kind = edge.Attributes[0].Name
	}
	return fmt.Sprintf("%s:%s-%s-%s", q.kpName, edge.Subject, kind, edge.Object)
}

func (q *Querier) internal(id string) string {
	if !q.cfg.ConvertCuries {
		return id
	}
	return q.converter.ToInternal(id)
}
