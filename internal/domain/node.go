package domain

import (
	"encoding/json"
	"fmt"
)

// Reserved top-level keys of a node document.
const (
	FieldID       = "id"
	FieldInternal = "internal"
	FieldParent   = "parent"
	FieldChildren = "children"
)

// Internal carries node bookkeeping owned by the node store.
type Internal struct {
	Type          string `json:"type"`
	ContentDigest string `json:"contentDigest,omitempty"`
	Owner         string `json:"owner,omitempty"`
}

// Node represents a schema-typed document held by a node store
type Node struct {
	ID       string
	Internal Internal
	Parent   string
	Children []string
	Fields   map[string]any
}

// NewNode creates a new node with immutable pattern
func NewNode(id, typeName string, fields map[string]any) *Node {
	return &Node{
		ID:       id,
		Internal: Internal{Type: typeName},
		Fields:   copyFields(fields),
	}
}

// Type returns the schema type the node conforms to.
func (n *Node) Type() string {
	if n == nil {
		return ""
	}
	return n.Internal.Type
}

// Get returns the value stored under name. Reserved keys are served from the
// node header so that filters can address them like any other field, unless
// a resolved value for the key was overlaid with WithFields.
func (n *Node) Get(name string) (any, bool) {
	if n == nil {
		return nil, false
	}
	if value, ok := n.Fields[name]; ok && IsReservedField(name) {
		return value, true
	}
	switch name {
	case FieldID:
		return n.ID, true
	case FieldInternal:
		internal := map[string]any{"type": n.Internal.Type}
		if n.Internal.ContentDigest != "" {
			internal["contentDigest"] = n.Internal.ContentDigest
		}
		if n.Internal.Owner != "" {
			internal["owner"] = n.Internal.Owner
		}
		return internal, true
	case FieldParent:
		if n.Parent == "" {
			return nil, false
		}
		return n.Parent, true
	case FieldChildren:
		if n.Children == nil {
			return nil, false
		}
		children := make([]any, len(n.Children))
		for i, child := range n.Children {
			children[i] = child
		}
		return children, true
	}
	value, ok := n.Fields[name]
	return value, ok
}

// IsReservedField reports whether name is one of the node header keys.
func IsReservedField(name string) bool {
	switch name {
	case FieldID, FieldInternal, FieldParent, FieldChildren:
		return true
	}
	return false
}

// WithFields returns a new snapshot whose fields are the node's fields
// overlaid with resolved. Keys mapped to nil are removed from the snapshot.
// Resolved reserved keys shadow the header in Get; the header itself is kept.
func (n *Node) WithFields(resolved map[string]any) *Node {
	snapshot := &Node{
		ID:       n.ID,
		Internal: n.Internal,
		Parent:   n.Parent,
		Children: n.Children,
		Fields:   copyFields(n.Fields),
	}
	for key, value := range resolved {
		if value == nil {
			delete(snapshot.Fields, key)
			continue
		}
		snapshot.Fields[key] = value
	}
	return snapshot
}

// Document returns the flat document form of the node.
func (n *Node) Document() map[string]any {
	doc := make(map[string]any, len(n.Fields)+4)
	for key, value := range n.Fields {
		doc[key] = value
	}
	for _, key := range []string{FieldID, FieldInternal, FieldParent, FieldChildren} {
		if value, ok := n.Get(key); ok {
			doc[key] = value
		} else {
			delete(doc, key)
		}
	}
	return doc
}

// MarshalJSON encodes the node as its flat document.
func (n *Node) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.Document())
}

// UnmarshalJSON decodes a flat node document.
func (n *Node) UnmarshalJSON(data []byte) error {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	parsed, err := NodeFromDocument(doc)
	if err != nil {
		return err
	}
	*n = *parsed
	return nil
}

// NodeFromDocument builds a node from its flat document form.
func NodeFromDocument(doc map[string]any) (*Node, error) {
	node := &Node{Fields: make(map[string]any, len(doc))}
	for key, value := range doc {
		switch key {
		case FieldID:
			id, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("node id must be a string, got %T", value)
			}
			node.ID = id
		case FieldInternal:
			internal, ok := value.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("node internal must be an object, got %T", value)
			}
			node.Internal.Type, _ = internal["type"].(string)
			node.Internal.ContentDigest, _ = internal["contentDigest"].(string)
			node.Internal.Owner, _ = internal["owner"].(string)
		case FieldParent:
			node.Parent, _ = value.(string)
		case FieldChildren:
			list, ok := value.([]any)
			if !ok {
				return nil, fmt.Errorf("node children must be a list, got %T", value)
			}
			for _, child := range list {
				if id, ok := child.(string); ok {
					node.Children = append(node.Children, id)
				}
			}
		default:
			node.Fields[key] = value
		}
	}
	if node.Internal.Type == "" {
		return nil, fmt.Errorf("node %q is missing internal.type", node.ID)
	}
	return node, nil
}

// copyFields creates a shallow copy of the fields map
func copyFields(fields map[string]any) map[string]any {
	copied := make(map[string]any, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	return copied
}
