package driver

const (
	// GetEquivalentCuriesQuery returns, for every input curie found in the
	// store, its own record plus the ids reachable over one same_as hop in
	// either direction. Curies absent from the store produce no row.
	GetEquivalentCuriesQuery = `
		UNWIND $curies AS curie
		MATCH (n {id: curie})
		OPTIONAL MATCH (n)-[:same_as]-(m)
		RETURN curie AS input,
			n.id AS id,
			n.name AS name,
			n.category AS category,
			collect(DISTINCT m.id) AS equivalents
	`

	NodeLabelsQuery = `MATCH (n) RETURN DISTINCT labels(n) AS labels`
)

// IndexedNodeProperties are indexed on every node label by BuildIndices.
var IndexedNodeProperties = []string{"id", "category", "name"}
