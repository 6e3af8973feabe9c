package driver

import (
	"context"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/agenthands/expand/internal/logger"
)

// Neo4jDriver runs Cypher against a KG2 store over Bolt.
type Neo4jDriver struct {
	Driver neo4j.DriverWithContext
	log    *logger.Logger
}

func NewNeo4jDriver(ctx context.Context, uri, username, password string, log *logger.Logger) (*Neo4jDriver, error) {
	if log == nil {
		log = logger.NewNop()
	}
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("failed to connect to %s: %w", uri, err)
	}

	log.Info("Connected to Neo4j", "uri", uri)
	return &Neo4jDriver{Driver: driver, log: log}, nil
}

func (d *Neo4jDriver) Close(ctx context.Context) error {
	return d.Driver.Close(ctx)
}

func (d *Neo4jDriver) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	result, err := neo4j.ExecuteQuery(ctx, d.Driver, query, params, neo4j.EagerResultTransformer)
	if err != nil {
		return neo4j.EagerResult{}, fmt.Errorf("failed to execute query: %w", err)
	}
	return *result, nil
}

// BuildIndices indexes IndexedNodeProperties on every node label and makes
// id unique per label. Failures are logged and skipped since most of them
// mean the index already exists.
func (d *Neo4jDriver) BuildIndices(ctx context.Context) error {
	labels, err := d.nodeLabels(ctx)
	if err != nil {
		return err
	}

	for _, q := range indexQueries(labels) {
		if _, err := d.ExecuteQuery(ctx, q, nil); err != nil {
			d.log.Warn("failed to create index", "query", q, "error", err)
		}
	}
	return nil
}

func (d *Neo4jDriver) nodeLabels(ctx context.Context) ([]string, error) {
	res, err := d.ExecuteQuery(ctx, NodeLabelsQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list node labels: %w", err)
	}
	seen := make(map[string]struct{})
	var labels []string
	for _, rec := range res.Records {
		raw, _ := rec.Get("labels")
		list, _ := raw.([]interface{})
		for _, l := range list {
			label, ok := l.(string)
			if !ok {
				continue
			}
			if _, dup := seen[label]; dup {
				continue
			}
			seen[label] = struct{}{}
			labels = append(labels, label)
		}
	}
	return labels, nil
}

// indexQueries skips labels containing a colon, which Cypher cannot name
// without quoting.
func indexQueries(labels []string) []string {
	var out []string
	for _, label := range labels {
		if label == "" || strings.Contains(label, ":") {
			continue
		}
		for _, prop := range IndexedNodeProperties {
			if prop == "id" {
				continue
			}
			out = append(out, fmt.Sprintf("CREATE INDEX IF NOT EXISTS FOR (n:%s) ON (n.%s)", label, prop))
		}
		out = append(out, fmt.Sprintf("CREATE CONSTRAINT IF NOT EXISTS FOR (n:%s) REQUIRE n.id IS UNIQUE", label))
	}
	return out
}
