package model

import "encoding/json"

// QNode is a node of an abstract query graph.
type QNode struct {
	IDs           StringList `json:"id,omitempty"`
	Categories    StringList `json:"category,omitempty"`
	IsSet         bool       `json:"is_set,omitempty"`
	OptionGroupID string     `json:"option_group_id,omitempty"`
}

// Copy returns a field-by-field copy that shares no slices with q.
func (q QNode) Copy() QNode {
	return QNode{
		IDs:           q.IDs.Copy(),
		Categories:    q.Categories.Copy(),
		IsSet:         q.IsSet,
		OptionGroupID: q.OptionGroupID,
	}
}

// Node is a node returned by a knowledge provider.
type Node struct {
	ID         string      `json:"id,omitempty"`
	Name       string      `json:"name,omitempty"`
	Categories StringList  `json:"category,omitempty"`
	Attributes []Attribute `json:"attributes,omitempty"`
	// QNodeKeys is only populated in the flat knowledge graph form.
	QNodeKeys []string `json:"qnode_keys,omitempty"`
}

// Copy returns a copy that shares no slices with n.
func (n Node) Copy() Node {
	out := Node{
		ID:         n.ID,
		Name:       n.Name,
		Categories: n.Categories.Copy(),
		Attributes: copyAttributes(n.Attributes),
	}
	if n.QNodeKeys != nil {
		out.QNodeKeys = append([]string(nil), n.QNodeKeys...)
	}
	return out
}

func (n *Node) UnmarshalJSON(data []byte) error {
	type plain Node
	var raw struct {
		plain
		Type StringList `json:"type"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*n = Node(raw.plain)
	if len(n.Categories) == 0 && len(raw.Type) > 0 {
		n.Categories = raw.Type
	}
	return nil
}
