// Package jsonview prints ordered document trees as JSON. The printer walks
// the parsed tree and tags every token with its kind, so highlighting never
// depends on pattern matching over the printed text.
package jsonview

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Kind int

const (
	Punct Kind = iota
	Space
	Key
	String
	Number
	Bool
	Null
)

func (k Kind) String() string {
	switch k {
	case Punct:
		return "punct"
	case Space:
		return "space"
	case Key:
		return "key"
	case String:
		return "string"
	case Number:
		return "number"
	case Bool:
		return "boolean"
	case Null:
		return "null"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Token is a JSON lexeme. Text is already valid JSON for its kind.
type Token struct {
	Kind Kind
	Text string
}

// Printer controls layout. An empty Indent prints compact JSON.
type Printer struct {
	Indent string
}

// Indented is the layout used for display.
var Indented = Printer{Indent: "  "}

// Tokens walks n with the indented layout.
func Tokens(n *yaml.Node) ([]Token, error) {
	return Indented.Tokens(n)
}

func (p Printer) Tokens(n *yaml.Node) ([]Token, error) {
	w := &walker{indent: p.Indent}
	if err := w.node(n, 0); err != nil {
		return nil, err
	}
	return w.out, nil
}

type walker struct {
	indent string
	out    []Token
}

func (w *walker) emit(k Kind, text string) {
	w.out = append(w.out, Token{Kind: k, Text: text})
}

func (w *walker) newline(depth int) {
	if w.indent == "" {
		return
	}
	w.emit(Space, "\n"+strings.Repeat(w.indent, depth))
}

func (w *walker) node(n *yaml.Node, depth int) error {
	if n == nil {
		w.emit(Null, "null")
		return nil
	}
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			w.emit(Null, "null")
			return nil
		}
		return w.node(n.Content[0], depth)
	case yaml.AliasNode:
		return w.node(n.Alias, depth)
	case yaml.MappingNode:
		return w.mapping(n, depth)
	case yaml.SequenceNode:
		return w.sequence(n, depth)
	case yaml.ScalarNode:
		return w.scalar(n)
	default:
		return fmt.Errorf("line %d: unsupported node kind %d", n.Line, n.Kind)
	}
}

func (w *walker) mapping(n *yaml.Node, depth int) error {
	if len(n.Content) == 0 {
		w.emit(Punct, "{}")
		return nil
	}
	if len(n.Content)%2 != 0 {
		return fmt.Errorf("line %d: mapping has a key without value", n.Line)
	}
	w.emit(Punct, "{")
	for i := 0; i < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if k.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: mapping key must be a scalar", k.Line)
		}
		if i > 0 {
			w.emit(Punct, ",")
		}
		w.newline(depth + 1)
		w.emit(Key, quote(k.Value))
		w.emit(Punct, ":")
		if w.indent != "" {
			w.emit(Space, " ")
		}
		if err := w.node(v, depth+1); err != nil {
			return err
		}
	}
	w.newline(depth)
	w.emit(Punct, "}")
	return nil
}

func (w *walker) sequence(n *yaml.Node, depth int) error {
	if len(n.Content) == 0 {
		w.emit(Punct, "[]")
		return nil
	}
	w.emit(Punct, "[")
	for i, item := range n.Content {
		if i > 0 {
			w.emit(Punct, ",")
		}
		w.newline(depth + 1)
		if err := w.node(item, depth+1); err != nil {
			return err
		}
	}
	w.newline(depth)
	w.emit(Punct, "]")
	return nil
}

func (w *walker) scalar(n *yaml.Node) error {
	switch n.ShortTag() {
	case "!!null":
		w.emit(Null, "null")
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
		w.emit(Bool, strconv.FormatBool(b))
	case "!!int", "!!float":
		num, err := number(n)
		if err != nil {
			return err
		}
		w.emit(Number, num)
	default:
		w.emit(String, quote(n.Value))
	}
	return nil
}

// number keeps the authored lexeme when it is already a JSON number so
// values like 1950.0 print as written.
func number(n *yaml.Node) (string, error) {
	v := strings.TrimPrefix(n.Value, "+")
	if v != "" && (v[0] == '-' || (v[0] >= '0' && v[0] <= '9')) && json.Valid([]byte(v)) {
		return v, nil
	}
	if n.ShortTag() == "!!int" {
		var i int64
		if err := n.Decode(&i); err != nil {
			return "", fmt.Errorf("line %d: %w", n.Line, err)
		}
		return strconv.FormatInt(i, 10), nil
	}
	var f float64
	if err := n.Decode(&f); err != nil {
		return "", fmt.Errorf("line %d: %w", n.Line, err)
	}
	out, err := json.Marshal(f)
	if err != nil {
		return "", fmt.Errorf("line %d: %s is not representable in JSON", n.Line, n.Value)
	}
	return string(out), nil
}

func quote(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return strings.TrimSuffix(buf.String(), "\n")
}
