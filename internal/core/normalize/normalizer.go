package normalize

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/agenthands/expand/internal/core/curie"
	"github.com/agenthands/expand/internal/core/model"
	"github.com/agenthands/expand/internal/core/response"
	"github.com/agenthands/expand/internal/errs"
	"github.com/agenthands/expand/internal/metrics"
)

// DefaultPreferredPrefixes ranks vocabularies for PreferredCurie, best first.
var DefaultPreferredPrefixes = []string{
	"DOID", "UNIPROTKB", "CHEMBL.COMPOUND", "NCBIGENE", "CHEBI", "MONDO", "OMIM",
	"HP", "ENSEMBL", "HGNC", "GO", "REACT", "REACTOME", "FMA", "CL", "MESH",
}

// Canonical is the representative the service chose for one input curie.
type Canonical struct {
	PreferredCurie string
	Name           string
	Category       string
	AllCategories  []string
}

// Normalizer wraps a Service with timeouts, ranking and failure reporting.
// It holds no cache and is safe for concurrent use.
type Normalizer struct {
	service Service
	timeout time.Duration
	ranking map[string]int
}

// New builds a Normalizer. An empty preferred list uses DefaultPreferredPrefixes.
func New(service Service, timeout time.Duration, preferred []string) *Normalizer {
	if len(preferred) == 0 {
		preferred = DefaultPreferredPrefixes
	}
	ranking := make(map[string]int, len(preferred))
	for i, p := range preferred {
		p = strings.ToUpper(p)
		if _, ok := ranking[p]; !ok {
			ranking[p] = i
		}
	}
	return &Normalizer{service: service, timeout: timeout, ranking: ranking}
}

// Synonyms returns the union of every synonym of curies plus the curies
// themselves, sorted. When the service fails a warning is recorded on resp
// and a NormalizationServiceFailure error is returned with a nil result.
func (n *Normalizer) Synonyms(ctx context.Context, curies []string, resp *response.Response) ([]string, error) {
	curies = model.Unique(curies)
	if len(curies) == 0 {
		return nil, nil
	}

	records, err := n.lookup(ctx, "synonyms", curies)
	if err != nil {
		resp.Warning(fmt.Sprintf("Failed to get synonyms for %v: %v", curies, err))
		return nil, err
	}

	all := append([]string(nil), curies...)
	for _, input := range curies {
		rec := records[input]
		if rec == nil {
			resp.Debug(fmt.Sprintf("Normalizer has no synonyms for %s", input))
			continue
		}
		all = append(all, rec.Identifier)
		all = append(all, rec.Equivalents...)
	}
	return model.Unique(all), nil
}

// Canonicalize looks up the canonical curie of each input. Inputs the
// service does not know are reported as warnings and left out of the result.
func (n *Normalizer) Canonicalize(ctx context.Context, curies []string, resp *response.Response) (map[string]Canonical, error) {
	curies = model.Unique(curies)
	if len(curies) == 0 {
		return map[string]Canonical{}, nil
	}

	records, err := n.lookup(ctx, "canonicalize", curies)
	if err != nil {
		resp.Warning(fmt.Sprintf("Failed to get canonical curies for %v: %v", curies, err))
		return nil, err
	}

	out := make(map[string]Canonical, len(curies))
	var missing []string
	for _, input := range curies {
		rec := records[input]
		if rec == nil || rec.Identifier == "" {
			missing = append(missing, input)
			continue
		}
		categories := make([]string, 0, len(rec.Types))
		for _, t := range rec.Types {
			categories = append(categories, categoryName(t))
		}
		c := Canonical{
			PreferredCurie: rec.Identifier,
			Name:           rec.Label,
			AllCategories:  categories,
		}
		if len(categories) > 0 {
			c.Category = categories[0]
		}
		out[input] = c
	}
	if len(missing) > 0 {
		resp.Warning(fmt.Sprintf("Normalizer did not return canonical curies for: %s", strings.Join(missing, ", ")))
	}
	return out, nil
}

// PreferredCurie picks the synonym of c whose prefix ranks best. Without a
// ranked prefix it falls back to the smallest synonym, and to c itself when
// there are none. The error is that of Synonyms; c is still returned with it.
func (n *Normalizer) PreferredCurie(ctx context.Context, c string, resp *response.Response) (string, error) {
	synonyms, err := n.Synonyms(ctx, []string{c}, resp)
	return n.pick(c, synonyms), err
}

func (n *Normalizer) pick(original string, synonyms []string) string {
	best, bestRank := "", len(n.ranking)+1
	for _, s := range synonyms {
		rank, ok := n.ranking[strings.ToUpper(curie.Prefix(s))]
		if ok && rank < bestRank {
			best, bestRank = s, rank
		}
	}
	if best != "" {
		return best
	}
	if len(synonyms) > 0 {
		return synonyms[0]
	}
	return original
}

func (n *Normalizer) lookup(ctx context.Context, op string, curies []string) (map[string]*Record, error) {
	ctx, span := otel.Tracer("normalize").Start(ctx, "normalize.Normalizer."+op,
		trace.WithAttributes(attribute.Int("curies", len(curies))),
	)
	defer span.End()

	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	start := time.Now()
	records, err := n.service.Lookup(ctx, curies)
	metrics.NormalizerDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.NormalizerCalls.WithLabelValues(op, metrics.OutcomeError).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup failed")
		return nil, errs.Wrap(errs.NormalizationServiceFailure, "normalize."+op, err)
	}
	metrics.NormalizerCalls.WithLabelValues(op, metrics.OutcomeOK).Inc()
	span.SetAttributes(attribute.Int("records", len(records)))
	return records, nil
}

// categoryName turns "biolink:ChemicalSubstance" into "chemical_substance".
func categoryName(t string) string {
	return curie.SnakeCase(strings.TrimPrefix(t, "biolink:"))
}
