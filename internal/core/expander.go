package core

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/agenthands/expand/internal/config"
	"github.com/agenthands/expand/internal/core/aggregate"
	"github.com/agenthands/expand/internal/core/model"
	"github.com/agenthands/expand/internal/core/normalize"
	"github.com/agenthands/expand/internal/core/querier"
	"github.com/agenthands/expand/internal/core/querygraph"
	"github.com/agenthands/expand/internal/core/response"
	"github.com/agenthands/expand/internal/driver"
	"github.com/agenthands/expand/internal/errs"
	"github.com/agenthands/expand/internal/kp"
	"github.com/agenthands/expand/internal/logger"
)

// Expander answers query graphs against the configured KPs.
type Expander struct {
	Driver     driver.GraphDriver
	Normalizer *normalize.Normalizer

	cfg      *config.Config
	log      *logger.Logger
	queriers map[string]*querier.Querier
}

// NewExpander wires one querier per client. Clients without a matching KP
// section in cfg use an empty KP configuration. A non-positive KP
// concurrency falls back to config.DefaultConcurrentKPs.
func NewExpander(cfg *config.Config, clients map[string]kp.Client, normalizer *normalize.Normalizer, log *logger.Logger) (*Expander, error) {
	if cfg == nil {
		return nil, fmt.Errorf("expander requires a config")
	}
	if log == nil {
		log = logger.NewNop()
	}
	if cfg.Concurrency.KPs <= 0 {
		c := *cfg
		c.Concurrency.KPs = config.DefaultConcurrentKPs
		cfg = &c
	}
	e := &Expander{
		Normalizer: normalizer,
		cfg:        cfg,
		log:        log,
		queriers:   make(map[string]*querier.Querier, len(clients)),
	}
	for name, client := range clients {
		kpCfg, _ := cfg.KP(name)
		q, err := querier.New(name, kpCfg, client, normalizer, cfg.Concurrency.PerKPRequests)
		if err != nil {
			return nil, err
		}
		e.queriers[name] = q
	}
	return e, nil
}

// New builds an Expander from configuration alone: HTTP clients for every
// KP and the configured normalizer backend.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Expander, error) {
	normalizer, d, err := NewNormalizer(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	e, err := NewExpander(cfg, kp.NewClients(cfg), normalizer, log)
	if err != nil {
		if d != nil {
			_ = d.Close(ctx)
		}
		return nil, err
	}
	e.Driver = d
	return e, nil
}

// NewNormalizer picks the synonym backend named by cfg.Normalizer.Provider.
// The kg2 backend also returns the graph driver it opened; the caller owns it.
func NewNormalizer(ctx context.Context, cfg *config.Config, log *logger.Logger) (*normalize.Normalizer, driver.GraphDriver, error) {
	if log == nil {
		log = logger.NewNop()
	}
	nc := cfg.Normalizer
	switch nc.Provider {
	case config.NormalizerNodeNorm:
		svc := normalize.NewNodeNormService(nc.URL, &http.Client{Timeout: nc.Timeout()})
		return normalize.New(svc, nc.Timeout(), nc.PreferredPrefixes), nil, nil
	case config.NormalizerKG2:
		d, err := driver.NewNeo4jDriver(ctx, cfg.Neo4j.URI, cfg.Neo4j.User, cfg.Neo4j.Password, log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open kg2 synonym store: %w", err)
		}
		if err := d.BuildIndices(ctx); err != nil {
			log.Warn("could not build kg2 indexes", "error", err)
		}
		svc := normalize.NewGraphService(d, nil)
		return normalize.New(svc, nc.Timeout(), nc.PreferredPrefixes), d, nil
	default:
		return nil, nil, fmt.Errorf("unsupported normalizer provider %q", nc.Provider)
	}
}

// Close releases the graph driver, if any.
func (e *Expander) Close(ctx context.Context) error {
	if e.Driver == nil {
		return nil
	}
	return e.Driver.Close(ctx)
}

// KPs lists the configured KP names, sorted.
func (e *Expander) KPs() []string {
	names := make([]string, 0, len(e.queriers))
	for name := range e.queriers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (e *Expander) querier(name string, resp *response.Response) (*querier.Querier, error) {
	q, ok := e.queriers[name]
	if !ok {
		err := errs.New(errs.InvalidQuery, "core.Expander", "unknown KP %q; known KPs are %v", name, e.KPs())
		resp.Error(err.Error(), string(errs.InvalidQuery))
		return nil, err
	}
	return q, nil
}

func (e *Expander) AnswerOneHop(ctx context.Context, kpName string, qg model.QueryGraph, resp *response.Response) (*aggregate.KnowledgeGraph, querier.BindingMap, error) {
	q, err := e.querier(kpName, resp)
	if err != nil {
		return aggregate.New(), querier.BindingMap{}, err
	}
	return q.AnswerOneHop(ctx, qg, resp)
}

func (e *Expander) AnswerSingleNode(ctx context.Context, kpName string, qg model.QueryGraph, resp *response.Response) (*aggregate.KnowledgeGraph, error) {
	q, err := e.querier(kpName, resp)
	if err != nil {
		return aggregate.New(), err
	}
	return q.AnswerSingleNode(ctx, qg, resp)
}

type kpAnswer struct {
	kg       *aggregate.KnowledgeGraph
	bindings querier.BindingMap
	resp     *response.Response
	err      error
}

// AnswerOneHopAcrossKPs asks every named KP concurrently, each into its own
// aggregate and response, and merges them once all have finished. A KP that
// cannot answer the query is skipped with a warning; the call only fails
// when the query is invalid or no KP supports it.
func (e *Expander) AnswerOneHopAcrossKPs(ctx context.Context, kpNames []string, qg model.QueryGraph, resp *response.Response) (*aggregate.KnowledgeGraph, querier.BindingMap, error) {
	kg := aggregate.New()
	bindings := make(querier.BindingMap)
	if len(kpNames) == 0 {
		kpNames = e.KPs()
	}
	kpNames = model.Unique(kpNames)
	if len(kpNames) == 0 {
		resp.Warning("No KPs are configured; nothing was asked")
		return kg, bindings, nil
	}

	queriers := make([]*querier.Querier, len(kpNames))
	for i, name := range kpNames {
		q, err := e.querier(name, resp)
		if err != nil {
			return kg, bindings, err
		}
		queriers[i] = q
	}

	answers := make([]kpAnswer, len(queriers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency.KPs)
	for i, q := range queriers {
		i, q := i, q
		g.Go(func() error {
			child := response.New(e.log.With("kp", q.Name()))
			answerKG, answerBindings, err := q.AnswerOneHop(gctx, qg, child)
			answers[i] = kpAnswer{kg: answerKG, bindings: answerBindings, resp: child, err: err}
			return nil
		})
	}
	_ = g.Wait()

	var firstUnsupported error
	answered := 0
	for i, a := range answers {
		name := kpNames[i]
		switch kind, _ := errs.KindOf(a.err); {
		case a.err == nil:
			resp.Absorb(a.resp)
			kg.Merge(a.kg)
			for id, nodes := range a.bindings {
				bindings[id] = nodes
			}
			answered++
		case kind == errs.UnsupportedQueryForKP:
			resp.Warning(fmt.Sprintf("Skipping %s: %v", name, a.err))
			if firstUnsupported == nil {
				firstUnsupported = a.err
			}
		default:
			resp.Absorb(a.resp)
			return aggregate.New(), querier.BindingMap{}, a.err
		}
	}
	if answered == 0 && firstUnsupported != nil {
		resp.Error(fmt.Sprintf("None of %v can answer this query", kpNames), string(errs.UnsupportedQueryForKP))
		return kg, bindings, firstUnsupported
	}
	resp.Debug(fmt.Sprintf("Merged answers from %d KP(s): %s", answered, kg.PrintableCounts()))
	return kg, bindings, nil
}

// Check runs the structural checks of qg against kg.
func (e *Expander) Check(qg model.QueryGraph, kg *aggregate.KnowledgeGraph) querygraph.Report {
	return querygraph.Check(qg, kg)
}
