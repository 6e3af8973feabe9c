package querier

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/agenthands/expand/internal/core/model"
	"github.com/agenthands/expand/internal/core/response"
)

// dispatch sends qg to the KP and returns the merged message, or nil when
// no usable answer came back. Failures are recorded as warnings.
func (q *Querier) dispatch(ctx context.Context, qg model.QueryGraph, resp *response.Response) *model.Message {
	ctx, span := otel.Tracer("querier").Start(ctx, "querier.Querier.dispatch",
		trace.WithAttributes(
			attribute.String("kp", q.kpName),
			attribute.Bool("batch", q.cfg.SupportsBatch()),
		),
	)
	defer span.End()

	fanKey := ""
	if !q.cfg.SupportsBatch() {
		fanKey = fanOutQNode(qg)
	}
	if fanKey == "" {
		resp.Debug(fmt.Sprintf("Sending query to %s API", q.kpName))
		return q.send(ctx, qg, resp)
	}

	inputs := append([]string(nil), qg.Nodes[fanKey].IDs...)
	span.SetAttributes(attribute.Int("requests", len(inputs)))
	parts := make([]*model.Message, len(inputs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(q.fanOut)
	for i, input := range inputs {
		i, input := i, input
		single := qg.Clone()
		qnode := single.Nodes[fanKey]
		qnode.IDs = model.StringList{input}
		single.Nodes[fanKey] = qnode

		g.Go(func() error {
			resp.Debug(fmt.Sprintf("Sending query to %s for %s", q.kpName, input))
			parts[i] = q.send(gctx, single, resp)
			return nil
		})
	}
	_ = g.Wait()

	var merged *model.Message
	for _, part := range parts {
		if part == nil {
			continue
		}
		if merged == nil {
			merged = &model.Message{}
		}
		merged.Append(part)
	}
	return merged
}

// send issues one bounded request.
func (q *Querier) send(ctx context.Context, qg model.QueryGraph, resp *response.Response) *model.Message {
	ctx, cancel := context.WithTimeout(ctx, q.cfg.Timeout())
	defer cancel()

	kpResp, err := q.client.Query(ctx, model.Request{Message: model.Message{QueryGraph: &qg}})
	if err != nil {
		resp.Warning(fmt.Sprintf("%s API call failed: %v", q.kpName, err))
		return nil
	}
	if kpResp.Message == nil {
		resp.Warning(fmt.Sprintf("No 'message' was included in the response from %s", q.kpName))
		return nil
	}
	return kpResp.Message
}

// fanOutQNode picks the qnode whose curies are sent one per request: the
// first multi-curie qnode, trying edge subjects, then edge objects, then
// the remaining qnodes in key order.
func fanOutQNode(qg model.QueryGraph) string {
	var order []string
	for _, key := range qg.EdgeKeys() {
		order = append(order, qg.Edges[key].Subject)
	}
	for _, key := range qg.EdgeKeys() {
		order = append(order, qg.Edges[key].Object)
	}
	order = append(order, qg.NodeKeys()...)

	for _, key := range order {
		if qnode, ok := qg.Nodes[key]; ok && len(qnode.IDs) > 1 {
			return key
		}
	}
	return ""
}
