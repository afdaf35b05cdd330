package jsonview

import (
	"encoding/json"
	"html"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"
)

// CSS classes emitted by HTML, one per value kind.
var htmlClass = map[Kind]string{
	Key:    "json-key",
	String: "json-string",
	Number: "json-number",
	Bool:   "json-boolean",
	Null:   "json-null",
}

// Text joins tokens into plain JSON.
func Text(tokens []Token) string {
	var b strings.Builder
	for _, t := range tokens {
		b.WriteString(t.Text)
	}
	return b.String()
}

// HTML escapes every token and wraps values in classed spans.
func HTML(tokens []Token) string {
	var b strings.Builder
	for _, t := range tokens {
		text := html.EscapeString(t.Text)
		class, ok := htmlClass[t.Kind]
		if !ok {
			b.WriteString(text)
			continue
		}
		b.WriteString(`<span class="`)
		b.WriteString(class)
		b.WriteString(`">`)
		b.WriteString(text)
		b.WriteString(`</span>`)
	}
	return b.String()
}

// Theme maps token kinds to terminal styles.
type Theme map[Kind]lipgloss.Style

// DefaultTheme builds styles bound to r. A nil renderer uses the default
// lipgloss renderer.
func DefaultTheme(r *lipgloss.Renderer) Theme {
	if r == nil {
		r = lipgloss.DefaultRenderer()
	}
	return Theme{
		Key:    r.NewStyle().Foreground(lipgloss.Color("33")).Bold(true),
		String: r.NewStyle().Foreground(lipgloss.Color("35")),
		Number: r.NewStyle().Foreground(lipgloss.Color("208")),
		Bool:   r.NewStyle().Foreground(lipgloss.Color("141")),
		Null:   r.NewStyle().Foreground(lipgloss.Color("245")).Italic(true),
		Punct:  r.NewStyle().Foreground(lipgloss.Color("250")),
	}
}

// ANSI renders tokens with terminal colors.
func ANSI(tokens []Token, theme Theme) string {
	var b strings.Builder
	for _, t := range tokens {
		style, ok := theme[t.Kind]
		if !ok || t.Kind == Space {
			b.WriteString(t.Text)
			continue
		}
		b.WriteString(style.Render(t.Text))
	}
	return b.String()
}

// Format names an output flavor.
type Format string

const (
	FormatText Format = "text"
	FormatHTML Format = "html"
	FormatANSI Format = "ansi"
)

// ParseFormat accepts text, html or ansi; empty means text.
func ParseFormat(s string) (Format, bool) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatText:
		return FormatText, true
	case FormatHTML:
		return FormatHTML, true
	case FormatANSI:
		return FormatANSI, true
	}
	return "", false
}

// Render prints n indented in the given format.
func Render(n *yaml.Node, f Format, theme Theme) (string, error) {
	tokens, err := Tokens(n)
	if err != nil {
		return "", err
	}
	switch f {
	case FormatHTML:
		return HTML(tokens), nil
	case FormatANSI:
		if theme == nil {
			theme = DefaultTheme(nil)
		}
		return ANSI(tokens, theme), nil
	default:
		return Text(tokens), nil
	}
}

// Compact prints n as compact JSON, keeping authored key order.
func Compact(n *yaml.Node) (json.RawMessage, error) {
	tokens, err := Printer{}.Tokens(n)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(Text(tokens)), nil
}

// Value decodes n into plain Go values (maps lose key order).
func Value(n *yaml.Node) (any, error) {
	raw, err := Compact(n)
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}
