// Package querier answers one-hop and single-node query graphs against a
// single knowledge provider.
package querier

import (
	"context"
	"fmt"
	"strings"

	"github.com/agenthands/expand/internal/config"
	"github.com/agenthands/expand/internal/core/aggregate"
	"github.com/agenthands/expand/internal/core/curie"
	"github.com/agenthands/expand/internal/core/model"
	"github.com/agenthands/expand/internal/core/normalize"
	"github.com/agenthands/expand/internal/core/response"
	"github.com/agenthands/expand/internal/errs"
	"github.com/agenthands/expand/internal/kp"
	"github.com/agenthands/expand/internal/metrics"
)

// BindingMap tells, for each KP-namespaced edge id, which node fills which
// qnode key: {"GeneticsKP:NCBIGene:1-MAGMA-pvalue-EFO:1": {"n0": "NCBIGene:1", "n1": "EFO:1"}}.
type BindingMap map[string]map[string]string

// Querier is bound to one KP. It holds no state between calls besides its
// configuration, so one Querier may serve concurrent calls when they each
// pass their own response.
type Querier struct {
	kpName     string
	cfg        config.KPConfig
	client     kp.Client
	normalizer *normalize.Normalizer
	converter  *curie.Converter
	fanOut     int
}

// New builds a Querier. normalizer may be nil, in which case curies are
// sent as given. fanOut caps parallel requests for KPs without batch support.
func New(kpName string, cfg config.KPConfig, client kp.Client, normalizer *normalize.Normalizer, fanOut int) (*Querier, error) {
	if client == nil {
		return nil, fmt.Errorf("querier %s: client is required", kpName)
	}
	converter, err := curie.NewConverter(cfg.PrefixRenames)
	if err != nil {
		return nil, fmt.Errorf("querier %s: %w", kpName, err)
	}
	if fanOut <= 0 {
		fanOut = config.DefaultPerKPRequests
	}
	return &Querier{
		kpName:     kpName,
		cfg:        cfg,
		client:     client,
		normalizer: normalizer,
		converter:  converter,
		fanOut:     fanOut,
	}, nil
}

func (q *Querier) Name() string {
	return q.kpName
}

// AnswerOneHop sends a one-edge, two-node query graph to the KP. The only
// returned errors are InvalidQuery and UnsupportedQueryForKP; every other
// problem is recorded on resp and yields a partial or empty graph.
func (q *Querier) AnswerOneHop(ctx context.Context, qg model.QueryGraph, resp *response.Response) (*aggregate.KnowledgeGraph, BindingMap, error) {
	kg := aggregate.New()
	bindings := make(BindingMap)

	if err := q.check(resp, verifyOneHop(qg)); err != nil {
		return kg, bindings, err
	}
	prepared, err := q.prepare(ctx, qg, resp)
	if err != nil {
		return kg, bindings, err
	}

	msg := q.dispatch(ctx, prepared, resp)
	q.mapResponse(msg, prepared, kg, bindings, resp)
	q.record(kg)
	return kg, bindings, nil
}

// AnswerSingleNode sends an edge-less, one-node query graph to the KP.
func (q *Querier) AnswerSingleNode(ctx context.Context, qg model.QueryGraph, resp *response.Response) (*aggregate.KnowledgeGraph, error) {
	kg := aggregate.New()

	if err := q.check(resp, verifySingleNode(qg)); err != nil {
		return kg, err
	}
	prepared, err := q.prepare(ctx, qg, resp)
	if err != nil {
		return kg, err
	}

	msg := q.dispatch(ctx, prepared, resp)
	q.mapResponse(msg, prepared, kg, nil, resp)
	q.record(kg)
	return kg, nil
}

// prepare returns a rewritten copy of qg. Checks that need no network run
// before any synonym lookup.
func (q *Querier) prepare(ctx context.Context, qg model.QueryGraph, resp *response.Response) (model.QueryGraph, error) {
	prepared := qg.Clone()
	q.overrideCategories(prepared)
	if err := q.check(resp, q.verifyAccepted(prepared)); err != nil {
		return prepared, err
	}
	q.convertToPreferredPrefixes(ctx, prepared, resp)
	if q.cfg.ConvertCuries {
		for key, qnode := range prepared.Nodes {
			for i, id := range qnode.IDs {
				qnode.IDs[i] = q.converter.ToExternal(id)
			}
			prepared.Nodes[key] = qnode
		}
	}
	return prepared, nil
}

// check records a terminal error on resp. It also stops when resp already
// carries an error from an earlier step.
func (q *Querier) check(resp *response.Response, err error) error {
	if err != nil {
		kind, _ := errs.KindOf(err)
		resp.Error(err.Error(), string(kind))
		metrics.OneHopQueries.WithLabelValues(q.kpName, outcomeFor(kind)).Inc()
		return err
	}
	if !resp.OK() {
		return errs.New(errs.Kind(resp.ErrorCode()), "querier."+q.kpName, "response is already in error state")
	}
	return nil
}

func (q *Querier) record(kg *aggregate.KnowledgeGraph) {
	outcome := metrics.OutcomeOK
	if kg.IsEmpty() {
		outcome = metrics.OutcomeEmpty
	}
	metrics.OneHopQueries.WithLabelValues(q.kpName, outcome).Inc()
}

func outcomeFor(kind errs.Kind) string {
	switch kind {
	case errs.InvalidQuery:
		return metrics.OutcomeInvalid
	case errs.UnsupportedQueryForKP:
		return metrics.OutcomeUnsupported
	default:
		return metrics.OutcomeError
	}
}

func verifyOneHop(qg model.QueryGraph) error {
	const op = "AnswerOneHop"
	switch {
	case len(qg.Edges) != 1:
		return errs.New(errs.InvalidQuery, op, "query graph is not one-hop: it has %d edges", len(qg.Edges))
	case len(qg.Nodes) > 2:
		return errs.New(errs.InvalidQuery, op, "query graph has more than two nodes: %s", strings.Join(qg.NodeKeys(), ", "))
	case len(qg.Nodes) < 2:
		return errs.New(errs.InvalidQuery, op, "query graph has fewer than two nodes")
	}
	for key, qedge := range qg.Edges {
		if _, ok := qg.Nodes[qedge.Subject]; !ok {
			return errs.New(errs.InvalidQuery, op, "qedge %s references unknown subject %q", key, qedge.Subject)
		}
		if _, ok := qg.Nodes[qedge.Object]; !ok {
			return errs.New(errs.InvalidQuery, op, "qedge %s references unknown object %q", key, qedge.Object)
		}
	}
	return nil
}

func verifySingleNode(qg model.QueryGraph) error {
	const op = "AnswerSingleNode"
	if len(qg.Edges) > 0 {
		return errs.New(errs.InvalidQuery, op, "query graph has %d edges", len(qg.Edges))
	}
	if len(qg.Nodes) != 1 {
		return errs.New(errs.InvalidQuery, op, "query graph must have exactly one node, got %d", len(qg.Nodes))
	}
	return nil
}

// overrideCategories treats categories the KP does not distinguish as the
// ones it does, e.g. protein as gene.
func (q *Querier) overrideCategories(qg model.QueryGraph) {
	if len(q.cfg.CategoryOverrides) == 0 {
		return
	}
	for key, qnode := range qg.Nodes {
		if len(qnode.Categories) == 0 {
			continue
		}
		overridden := make([]string, 0, len(qnode.Categories))
		for _, category := range qnode.Categories {
			if to, ok := q.cfg.CategoryOverrides[category]; ok {
				category = to
			}
			overridden = append(overridden, category)
		}
		qnode.Categories = model.StringList(model.Dedupe(overridden))
		qg.Nodes[key] = qnode
	}
}

// verifyAccepted narrows qnode categories to the ones the KP accepts and
// fails when nothing is left. Unconstrained qnodes and qedges pass.
func (q *Querier) verifyAccepted(qg model.QueryGraph) error {
	op := "querier." + q.kpName
	if len(q.cfg.AcceptedCategories) > 0 {
		accepted := model.StringList(q.cfg.AcceptedCategories)
		for _, key := range qg.NodeKeys() {
			qnode := qg.Nodes[key]
			if len(qnode.Categories) == 0 {
				continue
			}
			var kept []string
			for _, category := range qnode.Categories {
				if accepted.Contains(category) {
					kept = append(kept, category)
				}
			}
			if len(kept) == 0 {
				return errs.New(errs.UnsupportedQueryForKP, op,
					"%s can only be used for queries involving %v and qnode %s has category %v",
					q.kpName, q.cfg.AcceptedCategories, key, []string(qnode.Categories))
			}
			qnode.Categories = model.StringList(kept)
			qg.Nodes[key] = qnode
		}
	}
	if len(q.cfg.AcceptedPredicates) > 0 {
		accepted := model.StringList(q.cfg.AcceptedPredicates)
		for _, key := range qg.EdgeKeys() {
			qedge := qg.Edges[key]
			if len(qedge.Predicates) == 0 {
				continue
			}
			ok := false
			for _, predicate := range qedge.Predicates {
				if accepted.Contains(predicate) {
					ok = true
					break
				}
			}
			if !ok {
				return errs.New(errs.UnsupportedQueryForKP, op,
					"%s does not support predicate %v for qedge %s; supported predicates are %v",
					q.kpName, []string(qedge.Predicates), key, q.cfg.AcceptedPredicates)
			}
		}
	}
	return nil
}

// convertToPreferredPrefixes swaps each qnode's curies for the synonyms
// using the prefix this KP prefers for the qnode's first category.
func (q *Querier) convertToPreferredPrefixes(ctx context.Context, qg model.QueryGraph, resp *response.Response) {
	if q.normalizer == nil || len(q.cfg.PreferredPrefixes) == 0 {
		return
	}
	for _, key := range qg.NodeKeys() {
		qnode := qg.Nodes[key]
		if len(qnode.IDs) == 0 || len(qnode.Categories) == 0 {
			continue
		}
		prefix, ok := q.cfg.PreferredPrefixes[qnode.Categories[0]]
		if !ok || prefix == "" {
			continue
		}

		synonyms, err := q.normalizer.Synonyms(ctx, qnode.IDs, resp)
		if err != nil {
			resp.Warning(fmt.Sprintf("Sending qnode %s to %s with its original curies", key, q.kpName))
			continue
		}
		var desired []string
		for _, s := range synonyms {
			if curie.HasPrefix(s, prefix) {
				desired = append(desired, s)
			}
		}
		if len(desired) == 0 {
			resp.Warning(fmt.Sprintf("Could not convert qnode %s curie(s) to preferred prefix (%s)", key, prefix))
			continue
		}
		qnode.IDs = model.StringList(desired)
		qg.Nodes[key] = qnode
		resp.Debug(fmt.Sprintf("Converted qnode %s curie to %v", key, desired))
	}
}
