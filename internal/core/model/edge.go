package model

import "encoding/json"

// QEdge is an edge of an abstract query graph. Exclude marks an edge that
// must not be matched.
type QEdge struct {
	Subject       string     `json:"subject"`
	Object        string     `json:"object"`
	Predicates    StringList `json:"predicate,omitempty"`
	Relation      string     `json:"relation,omitempty"`
	Exclude       bool       `json:"exclude,omitempty"`
	OptionGroupID string     `json:"option_group_id,omitempty"`
}

// Copy returns a field-by-field copy that shares no slices with q.
func (q QEdge) Copy() QEdge {
	return QEdge{
		Subject:       q.Subject,
		Object:        q.Object,
		Predicates:    q.Predicates.Copy(),
		Relation:      q.Relation,
		Exclude:       q.Exclude,
		OptionGroupID: q.OptionGroupID,
	}
}

type Attribute struct {
	Name   string `json:"name,omitempty"`
	Type   string `json:"type,omitempty"`
	Value  any    `json:"value,omitempty"`
	URL    string `json:"url,omitempty"`
	Source string `json:"source,omitempty"`
}

// Edge is an edge returned by a knowledge provider.
type Edge struct {
	ID         string      `json:"id,omitempty"`
	Subject    string      `json:"subject"`
	Object     string      `json:"object"`
	Predicate  string      `json:"predicate,omitempty"`
	Relation   string      `json:"relation,omitempty"`
	ProvidedBy string      `json:"provided_by,omitempty"`
	OriginalID string      `json:"original_id,omitempty"`
	Attributes []Attribute `json:"attributes,omitempty"`
	// QEdgeKeys is only populated in the flat knowledge graph form.
	QEdgeKeys []string `json:"qedge_keys,omitempty"`

	// Score fields sent by providers that predate typed attributes.
	ScoreName string `json:"score_name,omitempty"`
	Score     any    `json:"score,omitempty"`
}

// Copy returns a copy that shares no slices with e.
func (e Edge) Copy() Edge {
	out := e
	out.Attributes = copyAttributes(e.Attributes)
	if e.QEdgeKeys != nil {
		out.QEdgeKeys = append([]string(nil), e.QEdgeKeys...)
	}
	return out
}

func (e *Edge) UnmarshalJSON(data []byte) error {
	type plain Edge
	var raw struct {
		plain
		SourceID string `json:"source_id"`
		TargetID string `json:"target_id"`
		Type     string `json:"type"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = Edge(raw.plain)
	if e.Subject == "" {
		e.Subject = raw.SourceID
	}
	if e.Object == "" {
		e.Object = raw.TargetID
	}
	if e.Predicate == "" {
		e.Predicate = raw.Type
	}
	return nil
}

func copyAttributes(attrs []Attribute) []Attribute {
	if attrs == nil {
		return nil
	}
	out := make([]Attribute, len(attrs))
	copy(out, attrs)
	return out
}
