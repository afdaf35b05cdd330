package jsonview

import (
	"strconv"

	"gopkg.in/yaml.v3"
)

// Field is one key/value pair of an object under construction.
type Field struct {
	Key   string
	Value *yaml.Node
}

// Object builds a mapping node that keeps the given field order.
func Object(fields ...Field) *yaml.Node {
	n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, f := range fields {
		n.Content = append(n.Content, Quoted(f.Key), f.Value)
	}
	return n
}

// Append adds fields to an existing mapping node.
func Append(obj *yaml.Node, fields ...Field) {
	for _, f := range fields {
		obj.Content = append(obj.Content, Quoted(f.Key), f.Value)
	}
}

// Quoted builds a string scalar.
func Quoted(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s, Style: yaml.DoubleQuotedStyle}
}

func QuotedList(ss ...string) *yaml.Node {
	n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	for _, s := range ss {
		n.Content = append(n.Content, Quoted(s))
	}
	return n
}

func Array(items ...*yaml.Node) *yaml.Node {
	return &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Content: items}
}

func Int(i int) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(i)}
}

// Unwrap follows document and alias nodes down to the value.
func Unwrap(n *yaml.Node) *yaml.Node {
	for n != nil {
		switch n.Kind {
		case yaml.DocumentNode:
			if len(n.Content) == 0 {
				return nil
			}
			n = n.Content[0]
		case yaml.AliasNode:
			n = n.Alias
		default:
			return n
		}
	}
	return nil
}

// Lookup returns the value stored under key in a mapping node.
func Lookup(n *yaml.Node, key string) (*yaml.Node, bool) {
	n = Unwrap(n)
	if n == nil || n.Kind != yaml.MappingNode {
		return nil, false
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1], true
		}
	}
	return nil, false
}

// Path walks nested mappings by key.
func Path(n *yaml.Node, keys ...string) (*yaml.Node, bool) {
	cur := n
	for _, k := range keys {
		next, ok := Lookup(cur, k)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return Unwrap(cur), cur != nil
}

// Keys lists the keys of a mapping node in authored order.
func Keys(n *yaml.Node) []string {
	n = Unwrap(n)
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	keys := make([]string, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		keys = append(keys, n.Content[i].Value)
	}
	return keys
}

// Items returns the elements of a sequence node.
func Items(n *yaml.Node) []*yaml.Node {
	n = Unwrap(n)
	if n == nil || n.Kind != yaml.SequenceNode {
		return nil
	}
	return n.Content
}

// TextAt returns the scalar value stored under key.
func TextAt(n *yaml.Node, key string) (string, bool) {
	v, ok := Lookup(n, key)
	v = Unwrap(v)
	if !ok || v == nil || v.Kind != yaml.ScalarNode {
		return "", false
	}
	return v.Value, true
}

// Float decodes a numeric scalar.
func Float(n *yaml.Node) (float64, bool) {
	n = Unwrap(n)
	if n == nil || n.Kind != yaml.ScalarNode {
		return 0, false
	}
	switch n.ShortTag() {
	case "!!int", "!!float":
	default:
		return 0, false
	}
	var f float64
	if err := n.Decode(&f); err != nil {
		return 0, false
	}
	return f, true
}
