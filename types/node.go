package types

import (
	"bytes"
	"encoding/json"
)

// Node is one element of a deck or routine node list.
//
// Nodes are open values: any JSON value is accepted and stored verbatim.
// Well-formed nodes are objects carrying "id", "type" and "config", where
// config is a free-form key/value bag interpreted by the client.
type Node struct {
	raw json.RawMessage
}

// NewNode wraps a raw JSON value.
func NewNode(raw json.RawMessage) Node {
	return Node{raw: append(json.RawMessage(nil), raw...)}
}

// Raw returns the node exactly as it was received.
func (n Node) Raw() json.RawMessage {
	return n.raw
}

// HasShape reports whether the node is an object with id, type and config keys.
func (n Node) HasShape() bool {
	trimmed := bytes.TrimSpace(n.raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return false
	}
	for _, key := range []string{"id", "type", "config"} {
		if _, ok := fields[key]; !ok {
			return false
		}
	}
	return true
}

func (n Node) MarshalJSON() ([]byte, error) {
	if len(n.raw) == 0 {
		return []byte("null"), nil
	}
	return n.raw, nil
}

func (n *Node) UnmarshalJSON(data []byte) error {
	n.raw = append(n.raw[:0], data...)
	return nil
}

// Nodes is an ordered node list. A nil list renders as an empty array.
type Nodes []Node

func (ns Nodes) MarshalJSON() ([]byte, error) {
	if ns == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Node(ns))
}
